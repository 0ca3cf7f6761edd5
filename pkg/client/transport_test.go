package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calimero-network/calimero-go/pkg/client"
)

func newTestClient(t *testing.T, handler http.Handler) *client.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conn, err := client.NewConnection(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return client.NewClient(conn)
}

func TestDispatch_notFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.Health(context.Background())
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatch_notImplementedStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))

	_, err := c.Health(context.Background())
	if !errors.Is(err, client.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestDispatch_notImplementedCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "no sync support", "code": "NOT_IMPLEMENTED"},
		})
	}))

	_, err := c.Health(context.Background())
	if !errors.Is(err, client.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestDispatch_errorEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "inviter lacks invite rights", "code": "FORBIDDEN"},
		})
	}))

	_, err := c.Health(context.Background())
	var he *client.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if he.Status != http.StatusForbidden {
		t.Errorf("status: got %d", he.Status)
	}
	if he.Message != "inviter lacks invite rights" {
		t.Errorf("message: got %q", he.Message)
	}
	if he.Code != "FORBIDDEN" {
		t.Errorf("code: got %q", he.Code)
	}
}

func TestDispatch_retriesDroppedConnectionOnce(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Kill the TCP connection mid-request so the client sees a
			// transport failure rather than an HTTP status.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("server does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"status": "alive"}})
	}))

	out, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health after retry: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 attempts, got %d", n)
	}
	if len(out) == 0 {
		t.Error("expected health payload")
	}
}

func TestDispatch_mutatingVerbNotRetried(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("server does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		conn.Close()
	}))

	// A dropped connection on a write must surface as an error: the node
	// may already have created the context.
	_, err := c.CreateContext(context.Background(), fixAppID, "near", nil)
	var te *client.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 attempt for POST, got %d", n)
	}
}

func TestDispatch_transportErrorAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	conn, err := client.NewConnection(url)
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.NewClient(conn).Health(context.Background())
	var te *client.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.Op == "" {
		t.Error("transport error should name the operation")
	}
}

func TestDispatch_contextCancelledNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(time.Second)
	}))
	t.Cleanup(srv.Close)

	conn, err := client.NewConnection(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.NewClient(conn).Health(ctx)
	var te *client.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if !te.Timeout {
		t.Error("expected a timeout-flagged transport error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 attempt (no retry on timeout), got %d", n)
	}
}

func TestRequest_passthrough(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin-api/custom" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"echo": body["value"]}})
	}))

	data, err := c.Request(context.Background(), http.MethodPost, "admin-api/custom", []byte(`{"value":"ping"}`))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["echo"] != "ping" {
		t.Errorf("echo: got %q", out["echo"])
	}
}

func TestRequest_validation(t *testing.T) {
	conn, err := client.NewConnection("http://localhost:2428")
	if err != nil {
		t.Fatal(err)
	}
	c := client.NewClient(conn)

	var ve *client.ValidationError
	if _, err := c.Request(context.Background(), "TRACE", "admin-api/health", nil); !errors.As(err, &ve) {
		t.Errorf("unsupported method: expected *ValidationError, got %v", err)
	}
	if _, err := c.Request(context.Background(), http.MethodGet, "", nil); !errors.As(err, &ve) {
		t.Errorf("empty path: expected *ValidationError, got %v", err)
	}
	if _, err := c.Request(context.Background(), http.MethodPost, "admin-api/x", []byte(`{broken`)); !errors.As(err, &ve) {
		t.Errorf("invalid body: expected *ValidationError, got %v", err)
	}
}
