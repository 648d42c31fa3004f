// Package protocol defines the tracker<->peer wire format: one CBOR
// map per message, self-delimiting on the stream, carrying an action
// tag plus the fields that action needs.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Action tags one wire message.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionClear  Action = "clear"
)

var (
	ErrInvalidMessage = errors.New("protocol: invalid message")
	ErrUnknownAction  = errors.New("protocol: unknown action")
)

// Message is one sync operation on the shared source set.
//
// add carries key, lat, and lon; remove carries key; clear carries
// nothing beyond the action tag.
type Message struct {
	Action Action  `cbor:"action"`
	Key    string  `cbor:"key,omitempty"`
	Lat    float64 `cbor:"lat,omitempty"`
	Lon    float64 `cbor:"lon,omitempty"`
}

func (m Message) Validate() error {
	switch m.Action {
	case ActionAdd:
		if strings.TrimSpace(m.Key) == "" {
			return fmt.Errorf("%w: add missing key", ErrInvalidMessage)
		}
	case ActionRemove:
		if strings.TrimSpace(m.Key) == "" {
			return fmt.Errorf("%w: remove missing key", ErrInvalidMessage)
		}
	case ActionClear:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, m.Action)
	}
	return nil
}

// AddMessage builds an add message for a source key at lat/lon.
func AddMessage(key string, lat, lon float64) Message {
	return Message{Action: ActionAdd, Key: key, Lat: lat, Lon: lon}
}

// RemoveMessage builds a remove message for a source key.
func RemoveMessage(key string) Message {
	return Message{Action: ActionRemove, Key: key}
}

// ClearMessage builds a clear message.
func ClearMessage() Message {
	return Message{Action: ActionClear}
}
