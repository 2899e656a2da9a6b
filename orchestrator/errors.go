package orchestrator

import "fmt"

// Code is one of the abstract failure kinds spec §7 classifies orchestrator
// errors into. It drives the HTTP status mapping for any surface that
// reports process_payment_request results (the operator HTTP server's
// errors).
type Code string

const (
	CodeInputValidation  Code = "input_validation"
	CodeStateMachine     Code = "state_machine"
	CodeExternalProtocol Code = "external_protocol"
	CodeInvariantBreach  Code = "invariant_breach"
	CodeDuplicateWork    Code = "duplicate_work"
)

// Failure wraps an orchestration error with its abstract classification,
// matching spec §7's taxonomy so callers can map it to an HTTP status
// without inspecting the underlying error string.
type Failure struct {
	Code Code
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Code, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(code Code, err error) *Failure {
	return &Failure{Code: code, Err: err}
}
