package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// MaxPayloadSize is the hard cap the legacy gateway enforces on the
	// serialized aps payload.
	MaxPayloadSize = 256

	// DefaultSound is applied when a notification is constructed without
	// an explicit sound identifier.
	DefaultSound = "chime"
)

// Notification is one push message addressed to a single device.
//
// Alert is either a plain string or an arbitrary JSON-marshalable object.
// When any of the localization keys is set, Alert is wrapped into a
// {"body": ...} object carrying them.
type Notification struct {
	Token            string
	Alert            any
	Badge            int
	Sound            string
	ContentAvailable bool
	ActionLocKey     string
	LocKey           string
	LocArgs          []string
	Extra            map[string]any
}

// NewNotification returns a notification with the default sound set.
// Callers that want a silent push clear Sound explicitly.
func NewNotification(token string, alert any) Notification {
	return Notification{
		Token: token,
		Alert: alert,
		Sound: DefaultSound,
	}
}

// Payload serializes the notification into the compact {"aps":{...}} JSON
// document. It fails with ErrPayloadTooLarge before any I/O happens when
// the serialized form exceeds MaxPayloadSize.
func (n Notification) Payload() ([]byte, error) {
	aps := make(map[string]any, 4+len(n.Extra))

	alert := n.Alert
	if n.ActionLocKey != "" || n.LocKey != "" || len(n.LocArgs) > 0 {
		wrapped := map[string]any{"body": alert}
		if n.ActionLocKey != "" {
			wrapped["action-loc-key"] = n.ActionLocKey
		}
		if n.LocKey != "" {
			wrapped["loc-key"] = n.LocKey
		}
		if len(n.LocArgs) > 0 {
			wrapped["loc-args"] = n.LocArgs
		}
		alert = wrapped
	}
	aps["alert"] = alert

	if n.Badge > 0 {
		aps["badge"] = n.Badge
	}
	if n.Sound != "" {
		aps["sound"] = n.Sound
	}
	if n.ContentAvailable {
		aps["content-available"] = 1
	}
	for k, v := range n.Extra {
		aps[k] = v
	}

	data, err := json.Marshal(map[string]any{"aps": aps})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal payload: %w", err)
	}
	if len(data) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(data), MaxPayloadSize)
	}
	return data, nil
}
