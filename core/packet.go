package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Opcode identifies a TFTP packet type (RFC 1350).
type Opcode uint16

const (
	OpRRQ Opcode = iota + 1
	OpWRQ
	OpData
	OpAck
	OpError
)

const (
	// BlockSize is the maximum payload of one DATA packet. A shorter
	// payload marks the final block of a transfer.
	BlockSize = 512

	// DataPacketSize is the largest datagram a transfer can produce:
	// 2-byte opcode, 2-byte block number, up to 512 bytes of payload.
	DataPacketSize = 4 + BlockSize

	AckPacketSize = 4

	headerSize = 2

	// ModeOctet is the binary transfer mode. No other mode is supported.
	ModeOctet = "octet"

	DefaultPort = 69
)

var (
	ErrPacketTooShort = errors.New("packet too short")
	ErrInvalidField   = errors.New("field is empty or contains a null byte")
)

func (o Opcode) String() string {
	switch o {
	case OpRRQ:
		return "RRQ"
	case OpWRQ:
		return "WRQ"
	case OpData:
		return "DATA"
	case OpAck:
		return "ACK"
	case OpError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(o))
	}
}

// EncodeRequest builds an RRQ or WRQ packet:
// opcode(2B) | filename | 0x00 | mode | 0x00.
// Filename and mode are null-terminated on the wire, so neither may be
// empty or contain a null byte.
func EncodeRequest(op Opcode, filename, mode string) ([]byte, error) {
	if op != OpRRQ && op != OpWRQ {
		return nil, errors.Errorf("opcode %s is not a request", op)
	}
	if filename == "" || strings.ContainsRune(filename, 0) {
		return nil, errors.Wrap(ErrInvalidField, "filename")
	}
	if mode == "" || strings.ContainsRune(mode, 0) {
		return nil, errors.Wrap(ErrInvalidField, "mode")
	}

	var opcode [headerSize]byte
	binary.BigEndian.PutUint16(opcode[:], uint16(op))

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(filename)+1+len(mode)+1))
	buf.Write(opcode[:])
	buf.WriteString(filename)
	buf.WriteByte(0)
	buf.WriteString(mode)
	buf.WriteByte(0)

	return buf.Bytes(), nil
}

// EncodeData builds a DATA packet: opcode(2B) | block(2B) | payload.
func EncodeData(block uint16, payload []byte) ([]byte, error) {
	if len(payload) > BlockSize {
		return nil, errors.Errorf("payload is %d bytes, max %d", len(payload), BlockSize)
	}

	pkt := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint16(pkt[0:2], uint16(OpData))
	binary.BigEndian.PutUint16(pkt[2:4], block)

	return append(pkt, payload...), nil
}

// EncodeAck builds an ACK packet: opcode(2B) | block(2B).
func EncodeAck(block uint16) []byte {
	pkt := make([]byte, AckPacketSize)
	binary.BigEndian.PutUint16(pkt[0:2], uint16(OpAck))
	binary.BigEndian.PutUint16(pkt[2:4], block)

	return pkt
}

// DecodeHeader reads the 2-byte big-endian opcode and returns it with the
// remainder of the datagram.
func DecodeHeader(data []byte) (Opcode, []byte, error) {
	if len(data) < headerSize {
		return 0, nil, ErrPacketTooShort
	}

	return Opcode(binary.BigEndian.Uint16(data[:headerSize])), data[headerSize:], nil
}

// DecodeData returns the block number and payload of a DATA packet. The
// payload may be empty.
func DecodeData(data []byte) (uint16, []byte, error) {
	if len(data) < 4 {
		return 0, nil, ErrPacketTooShort
	}

	return binary.BigEndian.Uint16(data[2:4]), data[4:], nil
}

// DecodeAck returns the block number of an ACK packet. Trailing bytes
// beyond the 4-byte packet are tolerated and ignored.
func DecodeAck(data []byte) (uint16, error) {
	if len(data) < AckPacketSize {
		return 0, ErrPacketTooShort
	}

	return binary.BigEndian.Uint16(data[2:4]), nil
}

// DecodeError returns the error code and message of an ERROR packet. The
// message runs to the terminating null byte, or to the end of the datagram
// when the peer omits it.
func DecodeError(data []byte) (ErrorCode, string, error) {
	if len(data) < 4 {
		return 0, "", ErrPacketTooShort
	}

	msg := data[4:]
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}

	return ErrorCode(binary.BigEndian.Uint16(data[2:4])), string(msg), nil
}
