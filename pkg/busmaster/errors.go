package busmaster

import "errors"

// ErrBusy is returned by IssueRead/IssueWrite when a transaction is
// already outstanding; the caller is responsible for the resulting
// CSR.EBUSY semantics.
var ErrBusy = errors.New("busmaster: transaction already outstanding")
