//go:build !linux

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "hioload-httpd: the epoll reactor requires linux")
	os.Exit(1)
}
