package submit

import "errors"

var (
	// ErrDuplicateSubmission is returned when a request id has already been submitted.
	ErrDuplicateSubmission = errors.New("transfer request was already submitted")
	// ErrUnknownReference is returned when resolving a reference that is not pending.
	ErrUnknownReference = errors.New("no pending transfer with this reference")
	// ErrInvalidResolution is returned when a pending transfer is resolved to anything
	// other than completed or failed.
	ErrInvalidResolution = errors.New("pending transfers resolve to completed or failed")
)

// SubmissionFailedError reports a transfer the provider rejected.
type SubmissionFailedError struct {
	Reference string
	Reason    string
}

func (e *SubmissionFailedError) Error() string {
	return "transfer failed: " + e.Reason
}
