package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// CommandSend is the command byte of a simple-format push frame.
	CommandSend byte = 0

	// TokenSize is the binary device token length.
	TokenSize = 32

	pushHeaderSize = 1 + 2 + TokenSize + 2
)

// DecodeToken converts a hex device token into its 32 raw bytes.
func DecodeToken(tokenHex string) ([]byte, error) {
	token, err := hex.DecodeString(tokenHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(token) != TokenSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidToken, len(token), TokenSize)
	}
	return token, nil
}

// EncodePush builds the complete wire frame for one notification:
//
//	[command=0][uint16 token length=32][32 token bytes][uint16 payload length][payload]
//
// all multi-byte fields big-endian. Payload overflow and token errors are
// reported before any frame bytes are produced.
func EncodePush(n Notification) ([]byte, error) {
	payload, err := n.Payload()
	if err != nil {
		return nil, err
	}
	token, err := DecodeToken(n.Token)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, pushHeaderSize+len(payload))
	buf[0] = CommandSend
	binary.BigEndian.PutUint16(buf[1:3], TokenSize)
	copy(buf[3:3+TokenSize], token)
	binary.BigEndian.PutUint16(buf[35:37], uint16(len(payload)))
	copy(buf[37:], payload)
	return buf, nil
}
