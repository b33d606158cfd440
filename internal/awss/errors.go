package awss

import "fmt"

// Error is returned when a provisioning SDK call fails.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("awss %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Operations reported in Error.Op.
const (
	OpStart  = "start"
	OpReport = "report_reset"
	OpClear  = "clear_ap_config"
	OpReboot = "reboot"
)

func newError(op string, cause error) *Error {
	return &Error{Op: op, Cause: cause}
}
