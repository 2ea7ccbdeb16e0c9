package events

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/strix/messages"
)

// ToJSON serializes an event for transport. The result carries a "type"
// discriminator, and a "kind" discriminator for the generic payload types,
// so FromJSON can reconstruct the concrete event.
func ToJSON(event Event) ([]byte, error) {
	switch event := event.(type) {
	case Delim:
		return json.Marshal(event)
	case Chunk[messages.AssistantMessage]:
		return json.Marshal(event)
	case Chunk[messages.ToolCallMessage]:
		return json.Marshal(event)
	case Request[messages.UserMessage]:
		return json.Marshal(event)
	case Request[messages.ToolResponse]:
		return json.Marshal(event)
	case Request[messages.Retry]:
		return json.Marshal(event)
	case Response[messages.AssistantMessage]:
		return json.Marshal(event)
	case Response[messages.ToolCallMessage]:
		return json.Marshal(event)
	case Final:
		return json.Marshal(event)
	case Error:
		return json.Marshal(event)
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}
}

// FromJSON reconstructs an event serialized with ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	jv := gjson.ParseBytes(data)
	typ := jv.Get("type")
	if !typ.Exists() {
		return nil, errors.New("missing required field \"type\"")
	}
	kind := jv.Get("kind").String()

	switch typ.String() {
	case "delim":
		var e Delim
		return e, e.UnmarshalJSON(data)
	case "chunk":
		switch kind {
		case "assistant":
			var e Chunk[messages.AssistantMessage]
			return e, e.UnmarshalJSON(data)
		case "tool_call":
			var e Chunk[messages.ToolCallMessage]
			return e, e.UnmarshalJSON(data)
		default:
			return nil, fmt.Errorf("unknown chunk kind %q", kind)
		}
	case "request":
		switch kind {
		case "user":
			var e Request[messages.UserMessage]
			return e, e.UnmarshalJSON(data)
		case "tool_response":
			var e Request[messages.ToolResponse]
			return e, e.UnmarshalJSON(data)
		case "retry":
			var e Request[messages.Retry]
			return e, e.UnmarshalJSON(data)
		default:
			return nil, fmt.Errorf("unknown request kind %q", kind)
		}
	case "response":
		switch kind {
		case "assistant":
			var e Response[messages.AssistantMessage]
			return e, e.UnmarshalJSON(data)
		case "tool_call":
			var e Response[messages.ToolCallMessage]
			return e, e.UnmarshalJSON(data)
		default:
			return nil, fmt.Errorf("unknown response kind %q", kind)
		}
	case "final":
		var e Final
		return e, e.UnmarshalJSON(data)
	case "error":
		var e Error
		return e, e.UnmarshalJSON(data)
	default:
		return nil, fmt.Errorf("unknown event type %q", typ.String())
	}
}

func payloadKind(payload messages.ModelMessage) string {
	switch payload.(type) {
	case messages.Instructions:
		return "instructions"
	case messages.UserMessage:
		return "user"
	case messages.AssistantMessage:
		return "assistant"
	case messages.ToolCallMessage:
		return "tool_call"
	case messages.ToolResponse:
		return "tool_response"
	case messages.Retry:
		return "retry"
	default:
		panic(fmt.Sprintf("unknown payload type %T", payload))
	}
}

func writeEnvelope(typ, kind string, runID, turnID uuid.UUID, sender string) ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{}`), "type", typ)
	if err != nil {
		return nil, err
	}
	if kind != "" {
		result, err = sjson.SetBytes(result, "kind", kind)
		if err != nil {
			return nil, err
		}
	}
	result, err = sjson.SetBytes(result, "run_id", runID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "turn_id", turnID.String())
	if err != nil {
		return nil, err
	}
	if sender != "" {
		result, err = sjson.SetBytes(result, "sender", sender)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func writeStamp(result []byte, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	var err error
	if !ts.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", ts.String())
		if err != nil {
			return nil, err
		}
	}
	if meta.Exists() {
		result, err = sjson.SetRawBytes(result, "meta", []byte(meta.Raw))
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func readEnvelope(data []byte, typ string, runID, turnID *uuid.UUID, sender *string) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("invalid json: %s", data)
	}
	jv := gjson.ParseBytes(data)
	if k := jv.Get("type"); !k.Exists() || k.String() != typ {
		return gjson.Result{}, fmt.Errorf("missing or invalid type, expected %q", typ)
	}
	run := jv.Get("run_id")
	if !run.Exists() {
		return gjson.Result{}, errors.New("missing required field \"run_id\"")
	}
	if err := runID.UnmarshalText([]byte(run.String())); err != nil {
		return gjson.Result{}, fmt.Errorf("invalid run_id: %w", err)
	}
	turn := jv.Get("turn_id")
	if !turn.Exists() {
		return gjson.Result{}, errors.New("missing required field \"turn_id\"")
	}
	if err := turnID.UnmarshalText([]byte(turn.String())); err != nil {
		return gjson.Result{}, fmt.Errorf("invalid turn_id: %w", err)
	}
	*sender = jv.Get("sender").String()
	return jv, nil
}

func readStamp(jv gjson.Result, ts *strfmt.DateTime, meta *gjson.Result) error {
	if v := jv.Get("timestamp"); v.Exists() {
		if err := ts.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if v := jv.Get("meta"); v.Exists() {
		*meta = v
	}
	return nil
}

func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("delim", "", d.RunID, d.TurnID, d.Sender)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	jv, err := readEnvelope(data, "delim", &d.RunID, &d.TurnID, &d.Sender)
	if err != nil {
		return err
	}
	delim := jv.Get("delim")
	if !delim.Exists() {
		return errors.New("missing required field \"delim\"")
	}
	d.Delim = delim.String()
	return nil
}

func (c Chunk[T]) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("chunk", payloadKind(c.Chunk), c.RunID, c.TurnID, c.Sender)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "step", c.Step)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(c.Chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "chunk", payload)
	if err != nil {
		return nil, err
	}
	return writeStamp(result, c.Timestamp, c.Meta)
}

func (c *Chunk[T]) UnmarshalJSON(data []byte) error {
	jv, err := readEnvelope(data, "chunk", &c.RunID, &c.TurnID, &c.Sender)
	if err != nil {
		return err
	}
	c.Step = int(jv.Get("step").Int())
	payload := jv.Get("chunk")
	if !payload.Exists() {
		return errors.New("missing required field \"chunk\"")
	}
	if err := json.Unmarshal([]byte(payload.Raw), &c.Chunk); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}
	return readStamp(jv, &c.Timestamp, &c.Meta)
}

func (r Request[T]) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("request", payloadKind(r.Message), r.RunID, r.TurnID, r.Sender)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "step", r.Step)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(r.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "message", payload)
	if err != nil {
		return nil, err
	}
	return writeStamp(result, r.Timestamp, r.Meta)
}

func (r *Request[T]) UnmarshalJSON(data []byte) error {
	jv, err := readEnvelope(data, "request", &r.RunID, &r.TurnID, &r.Sender)
	if err != nil {
		return err
	}
	r.Step = int(jv.Get("step").Int())
	payload := jv.Get("message")
	if !payload.Exists() {
		return errors.New("missing required field \"message\"")
	}
	if err := json.Unmarshal([]byte(payload.Raw), &r.Message); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return readStamp(jv, &r.Timestamp, &r.Meta)
}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("response", payloadKind(r.Response), r.RunID, r.TurnID, r.Sender)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "step", r.Step)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(r.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "response", payload)
	if err != nil {
		return nil, err
	}
	return writeStamp(result, r.Timestamp, r.Meta)
}

func (r *Response[T]) UnmarshalJSON(data []byte) error {
	jv, err := readEnvelope(data, "response", &r.RunID, &r.TurnID, &r.Sender)
	if err != nil {
		return err
	}
	r.Step = int(jv.Get("step").Int())
	payload := jv.Get("response")
	if !payload.Exists() {
		return errors.New("missing required field \"response\"")
	}
	if err := json.Unmarshal([]byte(payload.Raw), &r.Response); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return readStamp(jv, &r.Timestamp, &r.Meta)
}

func (f Final) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("final", "", f.RunID, f.TurnID, f.Sender)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "steps", f.Steps)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "content", f.Content)
	if err != nil {
		return nil, err
	}
	return writeStamp(result, f.Timestamp, f.Meta)
}

func (f *Final) UnmarshalJSON(data []byte) error {
	jv, err := readEnvelope(data, "final", &f.RunID, &f.TurnID, &f.Sender)
	if err != nil {
		return err
	}
	f.Steps = int(jv.Get("steps").Int())
	content := jv.Get("content")
	if !content.Exists() {
		return errors.New("missing required field \"content\"")
	}
	f.Content = content.String()
	return readStamp(jv, &f.Timestamp, &f.Meta)
}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("error", "", e.RunID, e.TurnID, e.Sender)
	if err != nil {
		return nil, err
	}
	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}
	return writeStamp(result, e.Timestamp, e.Meta)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jv, err := readEnvelope(data, "error", &e.RunID, &e.TurnID, &e.Sender)
	if err != nil {
		return err
	}
	errMsg := jv.Get("error")
	if !errMsg.Exists() {
		return errors.New("missing required field \"error\"")
	}
	e.Err = errors.New(errMsg.String())
	return readStamp(jv, &e.Timestamp, &e.Meta)
}
