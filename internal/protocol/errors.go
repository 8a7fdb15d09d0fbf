package protocol

import "errors"

var (
	ErrPayloadTooLarge   = errors.New("protocol: payload too large")
	ErrInvalidToken      = errors.New("protocol: invalid device token")
	ErrBadFeedbackLength = errors.New("protocol: bad feedback record length")
)
