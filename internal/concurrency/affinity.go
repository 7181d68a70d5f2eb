// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CPU affinity for pool workers.

package concurrency

import "runtime"

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// WorkerCPU maps a worker index onto a logical CPU, round robin.
func WorkerCPU(worker int) int {
	n := NumCPUs()
	if n <= 0 || worker < 0 {
		return 0
	}
	return worker % n
}

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to cpuID. The goroutine stays locked even when binding fails.
func PinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	return platformPinCurrentThread(cpuID)
}

// UnpinCurrentThread releases the thread lock taken by PinCurrentThread.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}
