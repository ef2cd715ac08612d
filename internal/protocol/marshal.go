package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrMissingType = errors.New("protocol: message has no type")
	ErrEmptyFrame  = errors.New("protocol: empty frame")
)

// Envelope is the outer frame of every message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Pool of buffers shared by concurrent writers
var bufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// Marshal wraps payload in an Envelope of msgType. A nil payload sends
// the type alone.
func Marshal(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, ErrMissingType
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	env := Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", msgType, err)
		}
		env.Data = data
	}
	if err := json.NewEncoder(buf).Encode(env); err != nil {
		return nil, fmt.Errorf("protocol: encode envelope: %w", err)
	}

	// Copy out of the pooled buffer, dropping the encoder's newline.
	out := make([]byte, buf.Len()-1)
	copy(out, buf.Bytes())
	return out, nil
}

// Decode reads the envelope of a frame. The payload is decoded later with
// Envelope.Into once the type is known.
func Decode(frame []byte) (Envelope, error) {
	if len(bytes.TrimSpace(frame)) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Into decodes the payload into v. A missing payload leaves v untouched.
func (e Envelope) Into(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("protocol: decode %s: %w", e.Type, err)
	}
	return nil
}
