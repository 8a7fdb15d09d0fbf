package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func feedbackRecordBytes(epoch int32, token byte) []byte {
	buf := make([]byte, FeedbackRecordSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(epoch))
	binary.BigEndian.PutUint16(buf[4:6], TokenSize)
	for i := 6; i < FeedbackRecordSize; i++ {
		buf[i] = token
	}
	return buf
}

func TestDecodeFeedback(t *testing.T) {
	rec, err := DecodeFeedback(feedbackRecordBytes(1700000000, 0xAB))
	if err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if rec.Epoch != 1700000000 {
		t.Fatalf("epoch: got %d", rec.Epoch)
	}
	if !rec.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("timestamp: got %v", rec.Timestamp)
	}
	if rec.TokenLen != TokenSize {
		t.Fatalf("token length field: got %d", rec.TokenLen)
	}
	if !bytes.Equal(rec.Token, bytes.Repeat([]byte{0xAB}, TokenSize)) {
		t.Fatalf("token mismatch: %x", rec.Token)
	}
}

func TestDecodeFeedbackRejectsWrongLength(t *testing.T) {
	for _, size := range []int{0, FeedbackRecordSize - 1, FeedbackRecordSize + 1} {
		_, err := DecodeFeedback(make([]byte, size))
		if !errors.Is(err, ErrBadFeedbackLength) {
			t.Fatalf("size %d: expected ErrBadFeedbackLength, got %v", size, err)
		}
	}
}

func TestDecodeFeedbackNegativeTimestamp(t *testing.T) {
	rec, err := DecodeFeedback(feedbackRecordBytes(-1, 0x01))
	if err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if rec.Epoch != -1 {
		t.Fatalf("epoch: got %d", rec.Epoch)
	}
}
