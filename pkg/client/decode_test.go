package client

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEnvelopeData(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"wrapped", `{"data":{"count":3}}`, `{"count":3}`},
		{"unwrapped", `{"count":3}`, `{"count":3}`},
		{"wrapped string", `{"data":"abc"}`, `"abc"`},
		{"wrapped number", `{"data":42}`, `42`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := envelopeData([]byte(tc.body))
			if err != nil {
				t.Fatalf("envelopeData: %v", err)
			}
			if string(data) != tc.want {
				t.Errorf("got %s, want %s", data, tc.want)
			}
		})
	}
}

func TestEnvelopeData_empty(t *testing.T) {
	data, err := envelopeData(nil)
	if err != nil {
		t.Fatalf("envelopeData: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil data, got %s", data)
	}
}

func TestEnvelopeData_malformed(t *testing.T) {
	_, err := envelopeData([]byte(`{"data":`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestDecodeNodeError(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantMsg  string
		wantCode string
	}{
		{"envelope", `{"error":{"message":"context not found","code":"CTX_MISSING"}}`, "context not found", "CTX_MISSING"},
		{"numeric code", `{"error":{"message":"method not found","code":-32601}}`, "method not found", "-32601"},
		{"bare string error", `{"error":"boom"}`, "boom", ""},
		{"no envelope", `upstream exploded`, "upstream exploded", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ne := decodeNodeError([]byte(tc.body))
			if ne.Message != tc.wantMsg {
				t.Errorf("message: got %q, want %q", ne.Message, tc.wantMsg)
			}
			if ne.Code != tc.wantCode {
				t.Errorf("code: got %q, want %q", ne.Code, tc.wantCode)
			}
		})
	}
}

func TestField_spellings(t *testing.T) {
	snake := map[string]json.RawMessage{"context_id": json.RawMessage(`"c1"`)}
	camel := map[string]json.RawMessage{"contextId": json.RawMessage(`"c1"`)}

	for _, fields := range []map[string]json.RawMessage{snake, camel} {
		s, err := stringField(fields, "context_id", "context_id", "contextId")
		if err != nil {
			t.Fatalf("stringField: %v", err)
		}
		if s != "c1" {
			t.Errorf("got %q, want %q", s, "c1")
		}
	}
}

func TestField_missingNamesLogicalField(t *testing.T) {
	_, err := field(map[string]json.RawMessage{}, "member_public_key", "member_public_key", "memberPublicKey")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Field != "member_public_key" {
		t.Errorf("field: got %q", de.Field)
	}
}

func TestOptionalField_skipsNull(t *testing.T) {
	fields := map[string]json.RawMessage{"root_hash": json.RawMessage(`null`)}
	if _, ok := optionalField(fields, "root_hash", "rootHash"); ok {
		t.Error("null field should be treated as absent")
	}
}

func TestMarkedUnimplemented(t *testing.T) {
	cases := []struct {
		ne   nodeError
		want bool
	}{
		{nodeError{Code: "NOT_IMPLEMENTED"}, true},
		{nodeError{Code: "UNIMPLEMENTED"}, true},
		{nodeError{Message: "method not implemented on this node"}, true},
		{nodeError{Message: "Unimplemented capability"}, true},
		{nodeError{Message: "context not found", Code: "CTX_MISSING"}, false},
	}
	for _, tc := range cases {
		if got := markedUnimplemented(tc.ne); got != tc.want {
			t.Errorf("markedUnimplemented(%+v) = %v, want %v", tc.ne, got, tc.want)
		}
	}
}

func TestCreateContextResult_bothSpellings(t *testing.T) {
	snake := []byte(`{"context_id":"c1","member_public_key":"m1"}`)
	camel := []byte(`{"contextId":"c1","memberPublicKey":"m1"}`)

	for _, body := range [][]byte{snake, camel} {
		var r CreateContextResult
		if err := json.Unmarshal(body, &r); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if r.ContextID != "c1" || r.MemberPublicKey != "m1" {
			t.Errorf("decoded %+v from %s", r, body)
		}
	}
}

func TestContextInfo_bothSpellings(t *testing.T) {
	snake := []byte(`{"id":"c1","application_id":"a1","root_hash":"h1"}`)
	camel := []byte(`{"contextId":"c1","applicationId":"a1","rootHash":"h1"}`)

	for _, body := range [][]byte{snake, camel} {
		var info ContextInfo
		if err := json.Unmarshal(body, &info); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if info.ID != "c1" || info.ApplicationID != "a1" || info.RootHash != "h1" {
			t.Errorf("decoded %+v from %s", info, body)
		}
	}
}

func TestApplicationInfo_malformedSize(t *testing.T) {
	var a ApplicationInfo
	err := json.Unmarshal([]byte(`{"id":"a1","size":"not a number"}`), &a)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Field != "size" {
		t.Errorf("field: got %q", de.Field)
	}
}

func TestBlobInfo_malformedSize(t *testing.T) {
	var b BlobInfo
	err := json.Unmarshal([]byte(`{"blob_id":"b1","size":{"nested":true}}`), &b)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Field != "size" {
		t.Errorf("field: got %q", de.Field)
	}
}

func TestPermission_marshalsAsTuple(t *testing.T) {
	b, err := json.Marshal(Permission{PublicKey: "pk1", Capability: "ManageMembers"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `["pk1","ManageMembers"]` {
		t.Errorf("got %s", b)
	}
}

func TestJSONBytes_marshalsAsNumberArray(t *testing.T) {
	b, err := json.Marshal(jsonBytes([]byte{0, 1, 255}))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `[0,1,255]` {
		t.Errorf("got %s", b)
	}

	empty, err := json.Marshal(jsonBytes(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(empty) != `[]` {
		t.Errorf("nil bytes: got %s, want []", empty)
	}
}
