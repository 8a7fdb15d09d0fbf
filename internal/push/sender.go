// Package push orchestrates single and bulk notification sends over
// one certificate-authenticated channel per operation.
package push

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pushgate/apns/internal/channel"
	"github.com/pushgate/apns/internal/observability"
	"github.com/pushgate/apns/internal/protocol"
)

// Conn is the write side of an open channel. *channel.Channel satisfies
// it; tests substitute a recording double.
type Conn interface {
	Write(b []byte) error
	Close() error
}

// OpenFunc opens a channel to the gateway.
type OpenFunc func(ctx context.Context, addr string, cfg channel.Config) (Conn, error)

func defaultOpen(ctx context.Context, addr string, cfg channel.Config) (Conn, error) {
	ch, err := channel.Open(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Sender sends notifications to one push gateway endpoint. A Sender is
// stateless between calls; every send owns its channel from open to
// close.
type Sender struct {
	addr string
	cfg  channel.Config
	open OpenFunc
	log  zerolog.Logger
}

func NewSender(addr string, cfg channel.Config) *Sender {
	return &Sender{
		addr: addr,
		cfg:  cfg,
		open: defaultOpen,
		log:  log.With().Str("component", "push.Sender").Str("gateway", addr).Logger(),
	}
}

// WithOpenFunc overrides how channels are opened. Used by tests and by
// callers that pool connections externally.
func (s *Sender) WithOpenFunc(open OpenFunc) *Sender {
	s.open = open
	return s
}

// Send encodes and transmits one notification. Encoding runs first so a
// payload overflow never costs a connection.
func (s *Sender) Send(ctx context.Context, n protocol.Notification) error {
	frame, err := protocol.EncodePush(n)
	if err != nil {
		observability.RecordPush("encode_error", 0)
		return err
	}

	conn, err := s.open(ctx, s.addr, s.cfg)
	if err != nil {
		observability.RecordPush("open_error", 0)
		return err
	}
	defer conn.Close()

	if err := conn.Write(frame); err != nil {
		observability.RecordPush("write_error", 0)
		return err
	}
	observability.RecordPush("ok", len(frame))
	s.log.Debug().Int("frame_bytes", len(frame)).Msg("notification sent")
	return nil
}

// SendBulk transmits the same notification to every token, in input
// order, over a single channel. The first encode or write failure
// aborts the remaining tokens; the channel is closed on every path.
func (s *Sender) SendBulk(ctx context.Context, tokens []string, n protocol.Notification) error {
	conn, err := s.open(ctx, s.addr, s.cfg)
	if err != nil {
		observability.RecordPush("open_error", 0)
		return err
	}
	defer conn.Close()

	observability.RecordBulkBatch(len(tokens))
	for i, token := range tokens {
		item := n
		item.Token = token
		frame, err := protocol.EncodePush(item)
		if err != nil {
			observability.RecordPush("encode_error", 0)
			return fmt.Errorf("token %d/%d: %w", i+1, len(tokens), err)
		}
		if err := conn.Write(frame); err != nil {
			observability.RecordPush("write_error", 0)
			return fmt.Errorf("token %d/%d: %w", i+1, len(tokens), err)
		}
		observability.RecordPush("ok", len(frame))
	}
	s.log.Debug().Int("tokens", len(tokens)).Msg("bulk send complete")
	return nil
}
