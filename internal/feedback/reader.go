// Package feedback drains the gateway's feedback stream of
// device-invalidation records.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pushgate/apns/internal/channel"
	"github.com/pushgate/apns/internal/observability"
	"github.com/pushgate/apns/internal/protocol"
)

// Conn is the read side of an open channel. *channel.Channel satisfies
// it; tests substitute an in-memory stream.
type Conn interface {
	io.Reader
	Close() error
}

// OpenFunc opens a channel to the feedback endpoint.
type OpenFunc func(ctx context.Context, addr string, cfg channel.Config) (Conn, error)

func defaultOpen(ctx context.Context, addr string, cfg channel.Config) (Conn, error) {
	ch, err := channel.Open(ctx, addr, cfg)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Reader reads the full feedback stream in one pass.
type Reader struct {
	addr string
	cfg  channel.Config
	open OpenFunc
	log  zerolog.Logger
}

func NewReader(addr string, cfg channel.Config) *Reader {
	return &Reader{
		addr: addr,
		cfg:  cfg,
		open: defaultOpen,
		log:  log.With().Str("component", "feedback.Reader").Str("endpoint", addr).Logger(),
	}
}

// WithOpenFunc overrides how the feedback channel is opened.
func (r *Reader) WithOpenFunc(open OpenFunc) *Reader {
	r.open = open
	return r
}

// ReadAll opens the feedback channel and reads fixed-size records until
// the peer closes the stream. Records come back in stream order; an
// immediately closed stream yields an empty slice. A short trailing
// read counts as end-of-stream. The channel is closed exactly once on
// every path.
func (r *Reader) ReadAll(ctx context.Context) ([]protocol.FeedbackRecord, error) {
	conn, err := r.open(ctx, r.addr, r.cfg)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var records []protocol.FeedbackRecord
	buf := make([]byte, protocol.FeedbackRecordSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := io.ReadFull(conn, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read feedback: %v", channel.ErrConnection, err)
		}
		rec, err := protocol.DecodeFeedback(buf)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	observability.RecordFeedback(len(records))
	r.log.Debug().Int("records", len(records)).Msg("feedback stream drained")
	return records, nil
}
