package wims

import (
	"fmt"
)

// RemoteError reports a failed adm/raw call: a transport failure, a non-JSON
// reply or a response whose status is not OK. Timeouts surface as a
// RemoteError wrapping the transport error.
type RemoteError struct {
	// Job is the adm/raw job that failed, e.g. "addclass".
	Job string
	// Message is the error message returned by the WIMS server, or a
	// description of the transport failure.
	Message string
	// Err is the underlying transport or decoding error, if any.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wims: job %q failed: %s: %v", e.Job, e.Message, e.Err)
	}
	return fmt.Sprintf("wims: job %q failed: %s", e.Job, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
