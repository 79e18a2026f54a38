package core

import (
	"github.com/pkg/errors"
)

// ErrorCode is the 16-bit code carried by a TFTP ERROR packet.
type ErrorCode uint16

const (
	CodeNotDefined ErrorCode = iota
	CodeFileNotFound
	CodeAccessViolation
	CodeDiskFull
	CodeIllegalOperation
	CodeUnknownTransferID
	CodeFileExists
	CodeNoSuchUser
)

var (
	// ErrTimeout is returned by a transport when no datagram arrives
	// within the receive timeout. It is the only recoverable error the
	// session sees; everything else is terminal.
	ErrTimeout = errors.New("receive timed out")

	// ErrPeerUnreachable is returned once the retransmission budget for a
	// single wait is exhausted.
	ErrPeerUnreachable = errors.New("peer unreachable")
)

// Message translates an error code into a human-readable message. Unknown
// codes map to a generic string.
func (c ErrorCode) Message() string {
	switch c {
	case CodeNotDefined:
		return "Not defined, see error message (if any)."
	case CodeFileNotFound:
		return "File not found."
	case CodeAccessViolation:
		return "Access violation."
	case CodeDiskFull:
		return "Disk full or allocation exceeded."
	case CodeIllegalOperation:
		return "Illegal TFTP operation."
	case CodeUnknownTransferID:
		return "Unknown transfer ID."
	case CodeFileExists:
		return "File already exists."
	case CodeNoSuchUser:
		return "No such user."
	default:
		return "Unknown error"
	}
}

// ProtocolError is an ERROR packet received from the peer. Receiving one
// always ends the transfer.
type ProtocolError struct {
	Code ErrorCode

	// WireMessage is the message the peer sent. Reporting uses the
	// translated code message; the wire message only reaches the logs.
	WireMessage string
}

func (e *ProtocolError) Error() string {
	return e.Code.Message()
}
