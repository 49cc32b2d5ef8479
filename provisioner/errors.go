package provisioner

import "fmt"

// PartialSuccessError reports a delete whose server-side drop succeeded
// but whose catalog row could not be removed. The row is flagged for
// reconciliation; surfacing this distinctly lets operators tell bounded
// drift from total failure.
type PartialSuccessError struct {
	Detail string
	Cause  error
}

func (e *PartialSuccessError) Error() string {
	return fmt.Sprintf("partial success: %s: %s", e.Detail, e.Cause)
}

func (e *PartialSuccessError) Unwrap() error {
	return e.Cause
}
