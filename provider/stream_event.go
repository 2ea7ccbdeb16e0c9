package provider

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/strix/internal/runstate"
	"github.com/casualjim/strix/messages"
)

// StreamEvent is the sealed union of events a backend can emit for one
// model turn. The unexported marker keeps the set closed.
type StreamEvent interface {
	streamEvent()
}

// Delim marks a stream boundary, such as "start" and "end".
type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) streamEvent() {}

// Chunk carries one incremental delta of a streaming response.
type Chunk[T messages.Response] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Chunk     T               `json:"chunk"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Chunk[T]) streamEvent() {}

// Response carries a finished assistant turn. The checkpoint snapshots the
// backend's view of the thread so the loop can merge provider-side
// messages.
type Response[T messages.Response] struct {
	RunID      uuid.UUID           `json:"run_id"`
	TurnID     uuid.UUID           `json:"turn_id"`
	Checkpoint runstate.Checkpoint `json:"checkpoint"`
	Response   T                   `json:"response"`
	Timestamp  strfmt.DateTime     `json:"timestamp,omitempty"`
	Meta       gjson.Result        `json:"meta,omitempty"`
}

func (Response[T]) streamEvent() {}

// Error reports a failed model turn. Err is a *ModelError when the backend
// could classify the failure.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, turn_id: %s, timestamp: %s, error: %v", e.RunID, e.TurnID, e.Timestamp, e.Err)
}

// ResponseToMessage copies a finished turn into a message envelope.
func ResponseToMessage[T messages.Response, M messages.ModelMessage](dst *messages.Message[M], src Response[T]) {
	dst.RunID = src.RunID
	dst.TurnID = src.TurnID
	dst.Timestamp = src.Timestamp
	dst.Meta = src.Meta
	payload, ok := any(src.Response).(M)
	if !ok {
		// This should never occur, if it does definitely raise an issue.
		panic(fmt.Sprintf("invalid response type: %T", src.Response))
	}
	dst.Payload = payload
}

// ChunkToMessage copies a streaming delta into a message envelope.
func ChunkToMessage[T messages.Response, M messages.ModelMessage](dst *messages.Message[M], src Chunk[T]) {
	dst.RunID = src.RunID
	dst.TurnID = src.TurnID
	dst.Timestamp = src.Timestamp
	dst.Meta = src.Meta
	payload, ok := any(src.Chunk).(M)
	if !ok {
		// This should never occur, if it does definitely raise an issue.
		panic(fmt.Sprintf("invalid chunk type: %T", src.Chunk))
	}
	dst.Payload = payload
}

func writeEnvelope(kind string, runID, turnID uuid.UUID) ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{}`), "type", kind)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "run_id", runID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "turn_id", turnID.String())
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

func readEnvelope(data []byte, kind string, runID, turnID *uuid.UUID) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if k := gjson.GetBytes(data, "type"); !k.Exists() || k.String() != kind {
		return fmt.Errorf("missing or invalid type, expected %q", kind)
	}
	for field, dst := range map[string]*uuid.UUID{"run_id": runID, "turn_id": turnID} {
		v := gjson.GetBytes(data, field)
		if !v.Exists() {
			return fmt.Errorf("missing required field %q", field)
		}
		if err := dst.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
	}
	return nil
}

func readStamp(data []byte, ts *strfmt.DateTime, meta *gjson.Result) error {
	if v := gjson.GetBytes(data, "timestamp"); v.Exists() {
		if err := ts.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if v := gjson.GetBytes(data, "meta"); v.Exists() {
		*meta = v
	}
	return nil
}

func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("delim", d.RunID, d.TurnID)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	if err := readEnvelope(data, "delim", &d.RunID, &d.TurnID); err != nil {
		return err
	}
	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return errors.New("missing required field \"delim\"")
	}
	d.Delim = delim.String()
	return nil
}

func (c Chunk[T]) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("chunk", c.RunID, c.TurnID)
	if err != nil {
		return nil, err
	}
	chunkBytes, err := json.Marshal(c.Chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "chunk", chunkBytes)
	if err != nil {
		return nil, err
	}
	return writeStamp(result, c.Timestamp, c.Meta)
}

func (c *Chunk[T]) UnmarshalJSON(data []byte) error {
	if err := readEnvelope(data, "chunk", &c.RunID, &c.TurnID); err != nil {
		return err
	}
	chunk := gjson.GetBytes(data, "chunk")
	if !chunk.Exists() {
		return errors.New("missing required field \"chunk\"")
	}
	if err := json.Unmarshal([]byte(chunk.Raw), &c.Chunk); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}
	return readStamp(data, &c.Timestamp, &c.Meta)
}

func (r Response[T]) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("response", r.RunID, r.TurnID)
	if err != nil {
		return nil, err
	}
	cpj, err := json.Marshal(r.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "checkpoint", cpj)
	if err != nil {
		return nil, err
	}
	responseBytes, err := json.Marshal(r.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "response", responseBytes)
	if err != nil {
		return nil, err
	}
	return writeStamp(result, r.Timestamp, r.Meta)
}

func (r *Response[T]) UnmarshalJSON(data []byte) error {
	if err := readEnvelope(data, "response", &r.RunID, &r.TurnID); err != nil {
		return err
	}
	checkpoint := gjson.GetBytes(data, "checkpoint")
	if !checkpoint.Exists() {
		return errors.New("missing required field \"checkpoint\"")
	}
	if err := json.Unmarshal([]byte(checkpoint.Raw), &r.Checkpoint); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}
	response := gjson.GetBytes(data, "response")
	if !response.Exists() {
		return errors.New("missing required field \"response\"")
	}
	if err := json.Unmarshal([]byte(response.Raw), &r.Response); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return readStamp(data, &r.Timestamp, &r.Meta)
}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := writeEnvelope("error", e.RunID, e.TurnID)
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
	if err := readEnvelope(data, "error", &e.RunID, &e.TurnID); err != nil {
		return err
	}
	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field \"error\"")
	}
	e.Err = errors.New(errMsg.String())
	return readStamp(data, &e.Timestamp, &e.Meta)
}
