package core

import (
	"context"
	"io"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/zo0mini/gotftp/logger"
)

// DefaultRetries is how many times a wait is retried before the peer is
// declared unreachable.
const DefaultRetries = 5

// Session drives a single GET or PUT transfer to completion. It owns the
// local file and the peer address for the lifetime of the transfer and is
// strictly sequential: one datagram in flight, one blocking wait at a time.
// A Session is single use.
type Session struct {
	transport Transport

	// server starts as the well-known request address and is replaced by
	// the sender of the server's first reply, which fixes the transfer
	// TID for the rest of the session.
	server  *net.UDPAddr
	learned bool

	filename string
	id       string
	retries  int
	log      logger.Logger
	bar      *progressbar.ProgressBar
}

type Option func(*Session)

func WithLogger(log logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithRetries(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.retries = n
		}
	}
}

func WithProgress(bar *progressbar.ProgressBar) Option {
	return func(s *Session) { s.bar = bar }
}

// NewSession prepares a transfer of filename against the server at addr.
// The transport is injected and stays owned by the caller.
func NewSession(t Transport, addr *net.UDPAddr, filename string, opts ...Option) *Session {
	s := &Session{
		transport: t,
		server:    addr,
		filename:  filename,
		id:        uuid.New().String(),
		retries:   DefaultRetries,
		log:       logger.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.WithStr("session", s.id).WithStr("file", filename)

	return s
}

// Get downloads the session's file into dst. On any failure the partially
// written destination file is removed. Cancelling ctx aborts the transfer
// at the next wait.
func (s *Session) Get(ctx context.Context, dst string) (err error) {
	file, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "create destination")
	}

	defer func() {
		file.Close()
		if err != nil {
			os.Remove(dst)
		}
		s.finishBar(err)
	}()

	req, err := EncodeRequest(OpRRQ, s.filename, ModeOctet)
	if err != nil {
		return err
	}
	if err = s.transport.Send(req, s.server); err != nil {
		return err
	}
	s.log.WithStr("server", s.server.String()).Info("read request sent")

	last := req
	expected := uint16(1)
	accepted := 0

	for {
		pkt, rerr := s.recv(ctx, last)
		if rerr != nil {
			return rerr
		}

		op, _, derr := DecodeHeader(pkt)
		if derr != nil {
			s.log.Warn("malformed packet, ignoring")
			continue
		}

		switch op {
		case OpData:
			block, payload, derr := DecodeData(pkt)
			if derr != nil {
				s.log.Warn("malformed data packet, ignoring")
				continue
			}

			if block != expected {
				if accepted == 0 {
					s.log.WithInt("block", int(block)).Debug("data before first block, ignoring")
					continue
				}
				// re-acknowledge the last accepted block so a server
				// retransmitting a duplicate can make progress
				dup := EncodeAck(expected - 1)
				if err = s.transport.Send(dup, s.server); err != nil {
					return err
				}
				last = dup
				s.log.WithInt("block", int(block)).WithInt("want", int(expected)).Warn("unexpected block, re-acked last")
				continue
			}

			ack := EncodeAck(block)
			if err = s.transport.Send(ack, s.server); err != nil {
				return err
			}
			last = ack

			if _, err = file.Write(payload); err != nil {
				return errors.Wrap(err, "write destination")
			}
			if s.bar != nil {
				s.bar.Add(len(payload))
			}

			accepted++
			expected++ // uint16, wraps at 65536

			if len(payload) < BlockSize {
				s.log.WithInt("blocks", accepted).Info("transfer complete")
				return nil
			}

		case OpError:
			code, msg, derr := DecodeError(pkt)
			if derr != nil {
				s.log.Warn("malformed error packet, ignoring")
				continue
			}
			s.log.WithInt("code", int(code)).WithStr("message", msg).Error("server error")
			return &ProtocolError{Code: code, WireMessage: msg}

		default:
			s.log.WithStr("opcode", op.String()).Warn("unexpected opcode, ignoring")
		}
	}
}

// Put uploads src to the server under the session's filename. A missing
// source file fails before any packet is sent. Cancelling ctx aborts the
// transfer at the next wait.
func (s *Session) Put(ctx context.Context, src string) (err error) {
	defer func() { s.finishBar(err) }()

	file, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open source")
	}
	defer file.Close()

	req, err := EncodeRequest(OpWRQ, s.filename, ModeOctet)
	if err != nil {
		return err
	}
	if err := s.transport.Send(req, s.server); err != nil {
		return err
	}
	s.log.WithStr("server", s.server.String()).Info("write request sent")

	// the write request is acknowledged with block 0 from the server's
	// transfer TID; data cannot flow until that TID is known
	if err := s.awaitAck(ctx, 0, req); err != nil {
		return err
	}

	var block uint16
	chunk := make([]byte, BlockSize)

	for {
		n, rerr := file.Read(chunk)
		if rerr != nil && rerr != io.EOF {
			return errors.Wrap(rerr, "read source")
		}

		block++
		data, err := EncodeData(block, chunk[:n])
		if err != nil {
			return err
		}
		if err := s.transport.Send(data, s.server); err != nil {
			return err
		}
		if err := s.awaitAck(ctx, block, data); err != nil {
			return err
		}
		if s.bar != nil {
			s.bar.Add(n)
		}

		if n < BlockSize {
			s.log.WithInt("blocks", int(block)).Info("transfer complete")
			return nil
		}
	}
}

// awaitAck waits for the acknowledgement of block. A mismatched block
// number triggers a retransmission of last instead of advancing, bounded
// like the timeout budget.
func (s *Session) awaitAck(ctx context.Context, block uint16, last []byte) error {
	mismatches := 0

	for {
		pkt, err := s.recv(ctx, last)
		if err != nil {
			return err
		}

		op, _, derr := DecodeHeader(pkt)
		if derr != nil {
			s.log.Warn("malformed packet, ignoring")
			continue
		}

		switch op {
		case OpAck:
			got, derr := DecodeAck(pkt)
			if derr != nil {
				s.log.Warn("malformed ack packet, ignoring")
				continue
			}
			if got == block {
				return nil
			}

			mismatches++
			if mismatches > s.retries {
				return ErrPeerUnreachable
			}
			s.log.WithInt("block", int(got)).WithInt("want", int(block)).Warn("ack mismatch, retransmitting")
			if err := s.transport.Send(last, s.server); err != nil {
				return err
			}

		case OpError:
			code, msg, derr := DecodeError(pkt)
			if derr != nil {
				s.log.Warn("malformed error packet, ignoring")
				continue
			}
			s.log.WithInt("code", int(code)).WithStr("message", msg).Error("server error")
			return &ProtocolError{Code: code, WireMessage: msg}

		default:
			s.log.WithStr("opcode", op.String()).Warn("unexpected opcode, ignoring")
		}
	}
}

// recv waits for the next datagram belonging to this transfer. On timeout
// it retransmits last byte-for-byte, up to the retry budget. The first
// reply fixes the peer TID; datagrams from any other sender afterwards are
// stray and skipped without consuming the budget. A cancelled ctx ends the
// wait before the next read.
func (s *Session) recv(ctx context.Context, last []byte) ([]byte, error) {
	attempts := 0

	for {
		if cerr := ctx.Err(); cerr != nil {
			s.log.Warn("transfer canceled")
			return nil, cerr
		}

		pkt, sender, err := s.transport.Receive(DataPacketSize)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				attempts++
				if attempts > s.retries {
					s.log.Error("retransmission budget exhausted")
					return nil, ErrPeerUnreachable
				}
				s.log.WithInt("attempt", attempts).Warn("timeout, retransmitting")
				if err := s.transport.Send(last, s.server); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		if s.learned {
			if !sameAddr(sender, s.server) {
				s.log.WithStr("sender", sender.String()).Debug("datagram from unknown TID, ignoring")
				continue
			}
			return pkt, nil
		}

		s.server = sender
		s.learned = true
		s.log.WithStr("tid", sender.String()).Debug("learned transfer TID")

		return pkt, nil
	}
}

// finishBar closes out the progress display: a completed transfer gets its
// final render and newline, a failed one has the stale line cleared.
func (s *Session) finishBar(err error) {
	if s.bar == nil {
		return
	}
	if err != nil {
		s.bar.Clear()
		return
	}
	s.bar.Finish()
}

func sameAddr(a, b *net.UDPAddr) bool {
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
