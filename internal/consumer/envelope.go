package consumer

import (
	"fmt"
	"strings"

	"github.com/pushgate/apns/internal/protocol"
)

// Envelope is the JSON shape of one queued push request. Tokens holds
// one entry for a single send and many for a bulk send.
type Envelope struct {
	MessageID        string         `json:"message_id"`
	Tokens           []string       `json:"tokens"`
	Alert            any            `json:"alert"`
	Badge            int            `json:"badge,omitempty"`
	Sound            *string        `json:"sound,omitempty"`
	ContentAvailable bool           `json:"content_available,omitempty"`
	ActionLocKey     string         `json:"action_loc_key,omitempty"`
	LocKey           string         `json:"loc_key,omitempty"`
	LocArgs          []string       `json:"loc_args,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.MessageID) == "" {
		return fmt.Errorf("envelope missing message_id")
	}
	if len(e.Tokens) == 0 {
		return fmt.Errorf("envelope missing tokens")
	}
	for i, token := range e.Tokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("envelope tokens[%d] empty", i)
		}
	}
	if e.Alert == nil {
		return fmt.Errorf("envelope missing alert")
	}
	if e.Badge < 0 {
		return fmt.Errorf("envelope badge must be non-negative")
	}
	return nil
}

// Notification maps the envelope onto the wire data model. The token is
// left for the sender to fill per target. An absent sound field gets
// the default sound; an explicit empty string stays silent.
func (e Envelope) Notification() protocol.Notification {
	sound := protocol.DefaultSound
	if e.Sound != nil {
		sound = *e.Sound
	}
	return protocol.Notification{
		Alert:            e.Alert,
		Badge:            e.Badge,
		Sound:            sound,
		ContentAvailable: e.ContentAvailable,
		ActionLocKey:     e.ActionLocKey,
		LocKey:           e.LocKey,
		LocArgs:          e.LocArgs,
		Extra:            e.Extra,
	}
}
