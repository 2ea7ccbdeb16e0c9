package messages

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MarshalJSON encodes the envelope with a "kind" discriminator so mixed
// message sequences can be decoded again.
func (m Message[T]) MarshalJSON() ([]byte, error) {
	result := []byte(`{}`)

	var err error
	result, err = sjson.SetBytes(result, "kind", m.Payload.kind())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "run_id", m.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "turn_id", m.TurnID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "step", m.Step)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "payload", payload)
	if err != nil {
		return nil, err
	}

	if m.Sender != "" {
		result, err = sjson.SetBytes(result, "sender", m.Sender)
		if err != nil {
			return nil, err
		}
	}

	if !m.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", m.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	if m.Meta.Exists() {
		result, err = sjson.SetRawBytes(result, "meta", []byte(m.Meta.Raw))
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON decodes an envelope with a concrete payload type. Use
// UnmarshalMessage when the payload kind is not known up front.
func (m *Message[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	jv := gjson.ParseBytes(data)

	kind := jv.Get("kind")
	if !kind.Exists() {
		return fmt.Errorf("missing required field 'kind'")
	}

	payload := jv.Get("payload")
	if !payload.Exists() {
		return fmt.Errorf("missing required field 'payload'")
	}

	if erased, ok := any(&m.Payload).(*ModelMessage); ok {
		decoded, err := payloadFromJSON(kind.String(), payload.Raw)
		if err != nil {
			return err
		}
		*erased = decoded
	} else {
		if want := m.Payload.kind(); kind.String() != want {
			return fmt.Errorf("invalid kind %q, expected %q", kind.String(), want)
		}
		if err := json.Unmarshal([]byte(payload.Raw), &m.Payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	return m.unmarshalEnvelope(jv)
}

func (m *Message[T]) unmarshalEnvelope(jv gjson.Result) error {
	runID := jv.Get("run_id")
	if !runID.Exists() {
		return fmt.Errorf("missing required field 'run_id'")
	}
	if err := m.RunID.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}

	turnID := jv.Get("turn_id")
	if !turnID.Exists() {
		return fmt.Errorf("missing required field 'turn_id'")
	}
	if err := m.TurnID.UnmarshalText([]byte(turnID.String())); err != nil {
		return fmt.Errorf("invalid turn_id: %w", err)
	}

	m.Step = int(jv.Get("step").Int())
	m.Sender = jv.Get("sender").String()

	if timestamp := jv.Get("timestamp"); timestamp.Exists() {
		if err := m.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	if meta := jv.Get("meta"); meta.Exists() {
		m.Meta = meta
	}
	return nil
}

func payloadFromJSON(kind, raw string) (ModelMessage, error) {
	switch kind {
	case "instructions":
		var p Instructions
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("invalid instructions payload: %w", err)
		}
		return p, nil
	case "user":
		var p UserMessage
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("invalid user payload: %w", err)
		}
		return p, nil
	case "assistant":
		var p AssistantMessage
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("invalid assistant payload: %w", err)
		}
		return p, nil
	case "tool_call":
		var p ToolCallMessage
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("invalid tool_call payload: %w", err)
		}
		return p, nil
	case "tool_response":
		var p ToolResponse
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("invalid tool_response payload: %w", err)
		}
		return p, nil
	case "retry":
		var p Retry
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("invalid retry payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
}

// UnmarshalMessage decodes an envelope whose payload kind is determined by
// the "kind" discriminator in the data.
func UnmarshalMessage(data []byte) (Message[ModelMessage], error) {
	var m Message[ModelMessage]
	if err := m.UnmarshalJSON(data); err != nil {
		return Message[ModelMessage]{}, err
	}
	return m, nil
}
