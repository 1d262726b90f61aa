package http

import "fmt"

// GatewayError reports a malformed request or a register-unit fault
// surfaced through the debug gateway, distinct from the wire-level
// errors latched in the CSR sticky bits (pkg/csr).
type GatewayError struct {
	Code int
	Msg  string
}

var (
	ErrGwBadRoute   = &GatewayError{Code: 100, Msg: "unknown route"}
	ErrGwBadMethod  = &GatewayError{Code: 101, Msg: "method not allowed"}
	ErrGwBadBody    = &GatewayError{Code: 102, Msg: "malformed request body"}
	ErrGwNotRunning = &GatewayError{Code: 103, Msg: "device not attached"}
)

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %d %s", e.Code, e.Msg)
}
