package gateway

import "errors"

// Custom WebSocket close codes. Standard codes (1000, 1001) are defined by RFC 6455; the 4000 range is reserved for
// application use.
const (
	CloseUnknownError  = 4000
	CloseUnknownOpcode = 4001
	CloseDecodeError   = 4002
	CloseRateLimited   = 4008
)

// Sentinel errors for gateway failure modes. Each maps to a close code above.
var (
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrDecodeError    = errors.New("payload decode error")
	ErrMaxConnections = errors.New("maximum connections reached")
)
