package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBytes caps how much of a response body the dispatcher reads.
const maxResponseBytes = 10 << 20

// RequestEnvelope describes one remote call before dispatch. Constructed
// per call and discarded after.
type RequestEnvelope struct {
	Method string
	Path   string // relative to the API base URL, e.g. "admin-api/contexts"
	Query  url.Values
	Body   any // JSON-encoded when non-nil
}

// ResponseEnvelope is the normalized result of a dispatched request. Data
// holds the unwrapped `data` payload; the caller decodes it into the
// operation's typed result.
type ResponseEnvelope struct {
	StatusCode int
	Header     http.Header
	Data       json.RawMessage
}

// dispatch executes env against the connection's node. It attaches the
// current credential, refreshing a bearer token first when it is close to
// expiry, and maps failures onto the typed error taxonomy. A pure transport
// failure (reset, refused) on an idempotent probe (GET, HEAD) is retried
// once. Mutating verbs and HTTP-level failures are never retried; the node
// may already have processed a write whose response was lost, and the
// caller owns any retry decision.
func dispatch(ctx context.Context, conn *Connection, env RequestEnvelope) (*ResponseEnvelope, error) {
	op := env.Method + " " + env.Path

	if conn.limiter != nil {
		if err := conn.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: op, Timeout: true, Err: err}
		}
	}

	var bodyBuf []byte
	if env.Body != nil {
		b, err := json.Marshal(env.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyBuf = b
	}

	token, err := conn.ensureFresh(ctx)
	if err != nil {
		return nil, err
	}

	target := conn.apiURL.JoinPath(env.Path)
	if len(env.Query) > 0 {
		target.RawQuery = env.Query.Encode()
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBuf != nil {
			bodyReader = bytes.NewReader(bodyBuf)
		}
		req, err := http.NewRequestWithContext(ctx, env.Method, target.String(), bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build request %s: %w", op, err)
		}
		if bodyBuf != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		conn.attachAuth(req, token)

		resp, err = conn.httpClient.Do(req)
		if err == nil {
			break
		}
		if attempt == 0 && retryableTransport(ctx, env.Method, err) {
			continue
		}
		return nil, &TransportError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, Timeout: isTimeout(err), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode == http.StatusNotImplemented:
		return nil, fmt.Errorf("%s: %w", op, ErrNotImplemented)
	case resp.StatusCode >= 300:
		ne := decodeNodeError(body)
		if markedUnimplemented(ne) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotImplemented)
		}
		return nil, &HTTPError{Status: resp.StatusCode, Message: ne.Message, Code: ne.Code}
	}

	data, err := envelopeData(body)
	if err != nil {
		return nil, err
	}
	return &ResponseEnvelope{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Data:       data,
	}, nil
}

// markedUnimplemented reports whether the node's error envelope flags the
// capability as not implemented rather than merely failed. Callers branch
// on this signal, so it must never degrade into a generic HTTPError.
func markedUnimplemented(ne nodeError) bool {
	switch ne.Code {
	case "NOT_IMPLEMENTED", "UNIMPLEMENTED":
		return true
	}
	msg := strings.ToLower(ne.Message)
	return strings.Contains(msg, "not implemented") || strings.Contains(msg, "unimplemented")
}

// retryableTransport reports whether a failed attempt may be retried:
// only genuine connection-level failures of idempotent probes qualify,
// never a mutating verb or a cancelled/timed-out context (the server may
// have processed the request).
func retryableTransport(ctx context.Context, method string, err error) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	return !isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
