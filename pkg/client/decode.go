package client

import (
	"bytes"
	"encoding/json"
)

// The node fleet is heterogeneous: older servers emit snake_case response
// fields, newer ones camelCase. Every known field is therefore looked up
// under both spellings and normalized before typed decoding. Alias tables
// live next to each result type in types.go, not in one global map.

// envelopeData unwraps the node's `{data: ...}` success envelope. Bodies
// that are not wrapped (older endpoints) are returned as-is.
func envelopeData(body []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if wrapper.Data != nil {
		return wrapper.Data, nil
	}
	return json.RawMessage(body), nil
}

// nodeError is the node's `{error: {message, code}}` failure envelope.
// Codes arrive as strings from the admin API and as integers from the
// JSON-RPC endpoint; both normalize to the string form.
type nodeError struct {
	Message string
	Code    string
}

func (ne *nodeError) UnmarshalJSON(b []byte) error {
	var probe struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	ne.Message = probe.Message
	ne.Code = ""
	if len(probe.Code) > 0 {
		var s string
		if err := json.Unmarshal(probe.Code, &s); err == nil {
			ne.Code = s
		} else {
			var n json.Number
			if err := json.Unmarshal(probe.Code, &n); err == nil {
				ne.Code = n.String()
			}
		}
	}
	return nil
}

// decodeNodeError extracts the error envelope from a failure body. Falls
// back to the raw body text when the envelope is absent or unparseable.
func decodeNodeError(body []byte) nodeError {
	var wrapper struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Error == nil {
		return nodeError{Message: string(bytes.TrimSpace(body))}
	}

	var ne nodeError
	if err := json.Unmarshal(wrapper.Error, &ne); err == nil && (ne.Message != "" || ne.Code != "") {
		return ne
	}
	// Some servers put a bare string under error.
	var msg string
	if err := json.Unmarshal(wrapper.Error, &msg); err == nil {
		return nodeError{Message: msg}
	}
	return nodeError{Message: string(bytes.TrimSpace(body))}
}

// errorMessage is a shortcut for decodeNodeError(...).Message.
func errorMessage(body []byte) string {
	return decodeNodeError(body).Message
}

// objectFields unmarshals a JSON object into its raw fields.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return fields, nil
}

// field returns the first present spelling of a logical field, or a
// DecodeError naming the logical field when none is present.
func field(fields map[string]json.RawMessage, logical string, spellings ...string) (json.RawMessage, error) {
	if raw, ok := optionalField(fields, spellings...); ok {
		return raw, nil
	}
	return nil, &DecodeError{Field: logical}
}

// optionalField is field for fields that may legitimately be absent.
func optionalField(fields map[string]json.RawMessage, spellings ...string) (json.RawMessage, bool) {
	for _, name := range spellings {
		if raw, ok := fields[name]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return raw, true
		}
	}
	return nil, false
}

// stringField decodes a required string field under any of its spellings.
func stringField(fields map[string]json.RawMessage, logical string, spellings ...string) (string, error) {
	raw, err := field(fields, logical, spellings...)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &DecodeError{Err: err}
	}
	return s, nil
}

// optionalStringField decodes an optional string field.
func optionalStringField(fields map[string]json.RawMessage, spellings ...string) (string, bool) {
	raw, ok := optionalField(fields, spellings...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// uintField decodes a required unsigned integer field.
func uintField(fields map[string]json.RawMessage, logical string, spellings ...string) (uint64, error) {
	raw, err := field(fields, logical, spellings...)
	if err != nil {
		return 0, err
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &DecodeError{Err: err}
	}
	return n, nil
}
