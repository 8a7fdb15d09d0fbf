package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestEncodePushFrameLayout(t *testing.T) {
	tokenHex := strings.Repeat("ab", TokenSize)
	n := NewNotification(tokenHex, "hello")

	frame, err := EncodePush(n)
	if err != nil {
		t.Fatalf("encode push: %v", err)
	}

	if frame[0] != CommandSend {
		t.Fatalf("command byte: got %d", frame[0])
	}
	if got := binary.BigEndian.Uint16(frame[1:3]); got != TokenSize {
		t.Fatalf("token length field: got %d", got)
	}
	wantToken, _ := hex.DecodeString(tokenHex)
	if !bytes.Equal(frame[3:35], wantToken) {
		t.Fatalf("token bytes mismatch")
	}
	payloadLen := binary.BigEndian.Uint16(frame[35:37])
	payload := frame[37:]
	if int(payloadLen) != len(payload) {
		t.Fatalf("payload length field %d != %d actual", payloadLen, len(payload))
	}
	want, err := n.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !bytes.Equal(payload, want) {
		t.Fatalf("payload mismatch: %s", payload)
	}
}

func TestEncodePushOverflowBeforeTokenDecode(t *testing.T) {
	n := Notification{
		Token: "not-hex",
		Alert: strings.Repeat("a", MaxPayloadSize),
	}
	if _, err := EncodePush(n); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeTokenRejectsBadInput(t *testing.T) {
	if _, err := DecodeToken("zz"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for non-hex, got %v", err)
	}
	if _, err := DecodeToken("abcd"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for short token, got %v", err)
	}
	token, err := DecodeToken(strings.Repeat("0f", TokenSize))
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if len(token) != TokenSize {
		t.Fatalf("token length: got %d", len(token))
	}
}
