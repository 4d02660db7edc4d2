package core

import "fmt"

// StatusType describes the outcome of a trial as reported by the caller.
type StatusType int

const (
	StatusRunning StatusType = iota
	StatusSuccess
	StatusCrashed
	StatusTimeout
	StatusMemoryOut
	StatusDoNotAdvance
	StatusStop
)

var statusNames = [...]string{
	"RUNNING",
	"SUCCESS",
	"CRASHED",
	"TIMEOUT",
	"MEMORYOUT",
	"DONOTADVANCE",
	"STOP",
}

// String provides the human-readable status name.
func (s StatusType) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("StatusType(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus converts a status name back to its StatusType.
func ParseStatus(name string) (StatusType, error) {
	for i, n := range statusNames {
		if n == name {
			return StatusType(i), nil
		}
	}
	return StatusRunning, fmt.Errorf("unknown status %q", name)
}

// IsFinal reports whether the status marks a completed trial. RUNNING entries
// are placeholders for trials that were launched but have not reported back.
func (s StatusType) IsFinal() bool {
	return s != StatusRunning
}
