package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// FeedbackRecordSize is the fixed size of one feedback stream record.
const FeedbackRecordSize = 4 + 2 + TokenSize

// FeedbackRecord is one device-invalidation report from the feedback
// stream: the device stopped accepting pushes at Timestamp.
type FeedbackRecord struct {
	Epoch     int32
	Timestamp time.Time
	TokenLen  uint16
	Token     []byte
}

// TokenHex returns the invalidated device token in the hex form callers
// registered it with.
func (r FeedbackRecord) TokenHex() string {
	return hex.EncodeToString(r.Token)
}

// DecodeFeedback interprets exactly 38 bytes as
//
//	[int32 timestamp][uint16 token length][32 token bytes]
//
// big-endian. Any other length is rejected with ErrBadFeedbackLength;
// callers reading the stream must treat a short read as end-of-stream
// rather than decoding it.
func DecodeFeedback(b []byte) (FeedbackRecord, error) {
	if len(b) != FeedbackRecordSize {
		return FeedbackRecord{}, fmt.Errorf("%w: %d bytes, want %d", ErrBadFeedbackLength, len(b), FeedbackRecordSize)
	}
	epoch := int32(binary.BigEndian.Uint32(b[0:4]))
	token := make([]byte, TokenSize)
	copy(token, b[6:FeedbackRecordSize])
	return FeedbackRecord{
		Epoch:     epoch,
		Timestamp: time.Unix(int64(epoch), 0).UTC(),
		TokenLen:  binary.BigEndian.Uint16(b[4:6]),
		Token:     token,
	}, nil
}
