package csr

// CSR field bit positions, reconstructed from the original testbench's
// CSR_*_BITS/CSR_*_LSB constants so positions match the register layout
// exactly.
const (
	bitEParity      = 18
	bitEBusFault    = 17
	bitEBusy        = 16
	bitAincr        = 12
	bitBusy         = 8
	bitNDTMResetAck = 5
	bitNDTMReset    = 4
)

const versionField = 0x1
