package push

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/pushgate/apns/internal/channel"
	"github.com/pushgate/apns/internal/protocol"
	"github.com/pushgate/apns/internal/testutil/testlog"
)

type fakeConn struct {
	frames     [][]byte
	closes     int
	writeErrAt int // 1-based index of the write that fails; 0 = never
}

func (f *fakeConn) Write(b []byte) error {
	if f.writeErrAt > 0 && len(f.frames)+1 == f.writeErrAt {
		return errors.New("broken pipe")
	}
	frame := make([]byte, len(b))
	copy(frame, b)
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) Close() error {
	f.closes++
	return nil
}

type fakeOpener struct {
	conn  *fakeConn
	opens int
	err   error
}

func (f *fakeOpener) open(ctx context.Context, addr string, cfg channel.Config) (Conn, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func testToken(b string) string {
	return strings.Repeat(b, protocol.TokenSize)
}

func frameToken(frame []byte) []byte {
	return frame[3:35]
}

func TestSendWritesOneFrame(t *testing.T) {
	testlog.Start(t)
	opener := &fakeOpener{conn: &fakeConn{}}
	s := NewSender("gateway.push.example.com:2195", channel.Config{}).WithOpenFunc(opener.open)

	n := protocol.NewNotification(testToken("ab"), "hello")
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("send: %v", err)
	}
	if opener.opens != 1 {
		t.Fatalf("expected 1 open, got %d", opener.opens)
	}
	if len(opener.conn.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(opener.conn.frames))
	}
	if opener.conn.closes != 1 {
		t.Fatalf("expected 1 close, got %d", opener.conn.closes)
	}
	if opener.conn.frames[0][0] != protocol.CommandSend {
		t.Fatalf("unexpected command byte %d", opener.conn.frames[0][0])
	}
}

func TestSendOverflowNeverOpensChannel(t *testing.T) {
	testlog.Start(t)
	opener := &fakeOpener{conn: &fakeConn{}}
	s := NewSender("gateway.push.example.com:2195", channel.Config{}).WithOpenFunc(opener.open)

	n := protocol.NewNotification(testToken("ab"), strings.Repeat("x", protocol.MaxPayloadSize))
	err := s.Send(context.Background(), n)
	if !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if opener.opens != 0 {
		t.Fatalf("overflow must not open a channel, got %d opens", opener.opens)
	}
}

func TestSendBulkOrderAndSingleChannel(t *testing.T) {
	testlog.Start(t)
	opener := &fakeOpener{conn: &fakeConn{}}
	s := NewSender("gateway.push.example.com:2195", channel.Config{}).WithOpenFunc(opener.open)

	tokens := []string{testToken("aa"), testToken("bb"), testToken("cc")}
	n := protocol.NewNotification("", "bulk hello")
	if err := s.SendBulk(context.Background(), tokens, n); err != nil {
		t.Fatalf("send bulk: %v", err)
	}

	if opener.opens != 1 {
		t.Fatalf("expected exactly 1 open, got %d", opener.opens)
	}
	if opener.conn.closes != 1 {
		t.Fatalf("expected exactly 1 close, got %d", opener.conn.closes)
	}
	if len(opener.conn.frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(opener.conn.frames))
	}
	for i, token := range tokens {
		want, err := protocol.DecodeToken(token)
		if err != nil {
			t.Fatalf("decode token: %v", err)
		}
		got := frameToken(opener.conn.frames[i])
		if string(got) != string(want) {
			t.Fatalf("frame %d token mismatch", i)
		}
		payloadLen := binary.BigEndian.Uint16(opener.conn.frames[i][35:37])
		if int(payloadLen)+37 != len(opener.conn.frames[i]) {
			t.Fatalf("frame %d length field mismatch", i)
		}
	}
}

func TestSendBulkAbortsOnWriteFailureAndStillCloses(t *testing.T) {
	testlog.Start(t)
	opener := &fakeOpener{conn: &fakeConn{writeErrAt: 2}}
	s := NewSender("gateway.push.example.com:2195", channel.Config{}).WithOpenFunc(opener.open)

	tokens := []string{testToken("aa"), testToken("bb"), testToken("cc")}
	err := s.SendBulk(context.Background(), tokens, protocol.NewNotification("", "hi"))
	if err == nil {
		t.Fatalf("expected write failure")
	}
	if !strings.Contains(err.Error(), "token 2/3") {
		t.Fatalf("error should name the failing token: %v", err)
	}
	if len(opener.conn.frames) != 1 {
		t.Fatalf("remaining tokens must not be sent, got %d frames", len(opener.conn.frames))
	}
	if opener.conn.closes != 1 {
		t.Fatalf("channel must be closed exactly once, got %d", opener.conn.closes)
	}
}

func TestSendBulkAbortsOnEncodeFailure(t *testing.T) {
	testlog.Start(t)
	opener := &fakeOpener{conn: &fakeConn{}}
	s := NewSender("gateway.push.example.com:2195", channel.Config{}).WithOpenFunc(opener.open)

	tokens := []string{testToken("aa"), "bogus", testToken("cc")}
	err := s.SendBulk(context.Background(), tokens, protocol.NewNotification("", "hi"))
	if !errors.Is(err, protocol.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if len(opener.conn.frames) != 1 {
		t.Fatalf("expected send to stop after first frame, got %d", len(opener.conn.frames))
	}
	if opener.conn.closes != 1 {
		t.Fatalf("channel must be closed exactly once, got %d", opener.conn.closes)
	}
}
