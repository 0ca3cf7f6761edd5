package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/calimero-network/calimero-go/pkg/id"
)

// Function execution goes through the node's JSON-RPC 2.0 endpoint rather
// than the admin API.

type rpcRequest struct {
	Jsonrpc string     `json:"jsonrpc"`
	ID      string     `json:"id"`
	Method  string     `json:"method"`
	Params  rpcExecute `json:"params"`
}

type rpcExecute struct {
	ContextID         string          `json:"contextId"`
	Method            string          `json:"method"`
	ArgsJSON          json.RawMessage `json:"argsJson"`
	ExecutorPublicKey string          `json:"executorPublicKey"`
	Substitute        []string        `json:"substitute"`
}

// Execute invokes a function of the application running in contextID, as
// executor. args is an opaque pre-serialized JSON payload: the client
// requires it to be syntactically valid but never interprets its schema.
// nil args sends an empty object.
//
// The decoded Output relays whatever the context's application returned;
// the client does not enforce any semantics on it.
func (c *Client) Execute(ctx context.Context, contextID id.ContextID, method string, args json.RawMessage, executor id.PublicKey) (*ExecuteResult, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	if method == "" {
		return nil, &ValidationError{Kind: "method name", Value: method, Reason: "must not be empty"}
	}
	if err := requireID("executor public key", string(executor)); err != nil {
		return nil, err
	}
	if args == nil {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return nil, &ValidationError{Kind: "function args", Value: string(args), Reason: "not valid JSON"}
	}

	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "jsonrpc",
		Body: rpcRequest{
			Jsonrpc: "2.0",
			ID:      uuid.NewString(),
			Method:  "execute",
			Params: rpcExecute{
				ContextID:         string(contextID),
				Method:            method,
				ArgsJSON:          args,
				ExecutorPublicKey: string(executor),
				Substitute:        []string{},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp.Data, &rpcResp); err != nil {
		return nil, wrapDecode(err)
	}
	if rpcResp.Error != nil {
		// An execution-level failure rides on a 200 transport response;
		// surface it the same way as any other node rejection.
		ne := decodeNodeError(resp.Data)
		return nil, &HTTPError{Status: resp.StatusCode, Message: ne.Message, Code: ne.Code}
	}
	if rpcResp.Result == nil {
		return nil, &DecodeError{Field: "result"}
	}

	fields, err := objectFields(rpcResp.Result)
	if err != nil {
		return nil, err
	}
	output, _ := optionalField(fields, "output")
	return &ExecuteResult{Output: output}, nil
}
