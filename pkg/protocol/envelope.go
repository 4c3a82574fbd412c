// Package protocol implements the wire envelope exchanged with the
// function host and the pure codecs between that envelope and the
// structured HTTP request/response model handlers see.
package protocol

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
)

// ReturnSentinel is the reserved output-binding name meaning "place the
// encoded value in the envelope's overall return slot".
const ReturnSentinel = "$return"

// Default byte ceilings; hostcfg may override per router instance.
const (
	DefaultMaxEnvelopeBytes = 1 << 20 // 1 MiB
	DefaultMaxResponseBytes = 4 << 20 // 4 MiB
)

// InvokeRequest is the inbound invocation envelope. Data maps binding
// names to opaque JSON payloads; Metadata carries host-supplied values.
type InvokeRequest struct {
	Data     map[string]json.RawMessage `json:"Data"`
	Metadata map[string]json.RawMessage `json:"Metadata"`
}

// InvokeResponse is the outbound result envelope.
type InvokeResponse struct {
	Outputs     map[string]any `json:"Outputs,omitempty"`
	Logs        []string       `json:"Logs,omitempty"`
	ReturnValue any            `json:"ReturnValue,omitempty"`
}

// MetadataValue unmarshals the named metadata entry into out.
func (r *InvokeRequest) MetadataValue(key string, out any) error {
	raw, ok := r.Metadata[key]
	if !ok {
		return fail.BadRequestf("Metadata.%s: missing", key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fail.BadRequestf("Metadata.%s: %v", key, err)
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// DecodeInvokeRequest reads and validates an envelope from r, enforcing
// the byte ceiling. Shape violations name the offending path.
func DecodeInvokeRequest(r io.Reader, maxBytes int64) (*InvokeRequest, error) {
	body, _, err := ReadLimited(r, maxBytes, FailOnExceed)
	if err != nil {
		return nil, err
	}
	if !isJSONObject(body) {
		return nil, fail.BadRequestf("envelope: expected a JSON object")
	}
	var shape struct {
		Data     json.RawMessage `json:"Data"`
		Metadata json.RawMessage `json:"Metadata"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return nil, fail.BadRequestf("envelope: invalid JSON: %v", err)
	}
	env := &InvokeRequest{}
	if shape.Data == nil {
		return nil, fail.BadRequestf("Data: missing")
	}
	if !isJSONObject(shape.Data) {
		return nil, fail.BadRequestf("Data: expected a JSON object")
	}
	if err := json.Unmarshal(shape.Data, &env.Data); err != nil {
		return nil, fail.BadRequestf("Data: %v", err)
	}
	if shape.Metadata == nil {
		return nil, fail.BadRequestf("Metadata: missing")
	}
	if !isJSONObject(shape.Metadata) {
		return nil, fail.BadRequestf("Metadata: expected a JSON object")
	}
	if err := json.Unmarshal(shape.Metadata, &env.Metadata); err != nil {
		return nil, fail.BadRequestf("Metadata: %v", err)
	}
	return env, nil
}
