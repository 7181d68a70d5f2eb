// File: internal/httpconn/outcome.go
// Author: momentics <momentics@gmail.com>

package httpconn

// CheckState is the parser position within a request.
type CheckState uint8

const (
	StateRequestLine CheckState = iota
	StateHeader
	StateContent
)

func (s CheckState) String() string {
	switch s {
	case StateRequestLine:
		return "request_line"
	case StateHeader:
		return "header"
	case StateContent:
		return "content"
	default:
		return "unknown"
	}
}

// Outcome is the result of one parse/dispatch pass over the read buffer.
type Outcome uint8

const (
	IncompleteRequest Outcome = iota // need more bytes
	CompleteRequest
	MalformedRequest
	ResourceMissing
	ResourceForbidden
	FileReady
	InternalError
	PeerClosed
)

func (o Outcome) String() string {
	switch o {
	case IncompleteRequest:
		return "incomplete"
	case CompleteRequest:
		return "complete"
	case MalformedRequest:
		return "malformed"
	case ResourceMissing:
		return "missing"
	case ResourceForbidden:
		return "forbidden"
	case FileReady:
		return "file_ready"
	case InternalError:
		return "internal_error"
	case PeerClosed:
		return "peer_closed"
	default:
		return "unknown"
	}
}

// Method is the request method. Only GET is served.
type Method uint8

const (
	MethodGet Method = iota
)

// lineStatus is the line scanner result.
type lineStatus uint8

const (
	lineOK lineStatus = iota
	lineBad
	lineOpen
)

type cannedResponse struct {
	status int
	title  string
	body   string
}

var responses = map[Outcome]cannedResponse{
	FileReady:         {200, "OK", ""},
	MalformedRequest:  {400, "Bad Request", "Your request has bad syntax or is inherently impossible to satisfy.\n"},
	ResourceForbidden: {403, "Forbidden", "You do not have permission to get file from this server.\n"},
	ResourceMissing:   {404, "Not Found", "The requested file was not found on this server.\n"},
	InternalError:     {500, "Internal Error", "There was an unusual problem serving the requested file.\n"},
}

// StatusOf maps a terminal outcome to its HTTP status, or 0 when the
// outcome produces no response.
func StatusOf(o Outcome) int {
	if r, ok := responses[o]; ok {
		return r.status
	}
	return 0
}
