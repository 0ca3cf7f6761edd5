package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/calimero-network/calimero-go/pkg/id"
)

// Client is the typed façade over a node's admin and execution APIs: one
// method per remote capability. A Client borrows its Connection — it never
// copies it — so credential refreshes are visible to every Client sharing
// the Connection.
type Client struct {
	conn *Connection
}

// NewClient creates a Client over conn.
func NewClient(conn *Connection) *Client {
	return &Client{conn: conn}
}

// Connection returns the underlying Connection.
func (c *Client) Connection() *Connection { return c.conn }

// jsonBytes marshals as a JSON array of numbers, matching the node's
// Vec<u8> encoding rather than Go's default base64 string.
type jsonBytes []byte

func (b jsonBytes) MarshalJSON() ([]byte, error) {
	out := make([]uint16, len(b))
	for i, v := range b {
		out[i] = uint16(v)
	}
	return json.Marshal(out)
}

// requireID fails fast on an empty identifier before any network I/O.
// Format validation happened when the value was parsed; values threaded
// back from node responses are trusted as the node's own contract.
func requireID(kind, value string) error {
	if value == "" {
		return &ValidationError{Kind: kind, Value: value, Reason: "must not be empty"}
	}
	return nil
}

// ── Health ──────────────────────────────────────────────────────────────

// Health fetches the node's health report.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/health",
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Request performs an arbitrary API call against the node and returns the
// unwrapped response body. method is an HTTP verb, path is relative to the
// node's base URL (e.g. "admin-api/contexts"), and body, when non-nil,
// must be valid JSON.
func (c *Client) Request(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead:
	default:
		return nil, &ValidationError{Kind: "http method", Value: method, Reason: "unsupported method"}
	}
	if path == "" {
		return nil, &ValidationError{Kind: "path", Value: path, Reason: "must not be empty"}
	}
	var payload any
	if len(body) > 0 {
		if !json.Valid(body) {
			return nil, &ValidationError{Kind: "request body", Value: string(body), Reason: "must be valid JSON"}
		}
		payload = json.RawMessage(body)
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: method,
		Path:   path,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ── Applications ────────────────────────────────────────────────────────

// InstallApplication installs an application from a source URL and returns
// its assigned ID. Idempotence is at the node's discretion; the client
// makes no guarantee.
func (c *Client) InstallApplication(ctx context.Context, sourceURL, hash string, metadata []byte) (id.ApplicationID, error) {
	if sourceURL == "" {
		return "", &ValidationError{Kind: "application source", Value: sourceURL, Reason: "must not be empty"}
	}
	body := map[string]any{
		"url":      sourceURL,
		"metadata": jsonBytes(metadata),
	}
	if hash != "" {
		body["hash"] = hash
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/install-application",
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	return decodeApplicationID(resp.Data)
}

// InstallDevApplication installs an application from a local path on the
// node host. Development nodes only.
func (c *Client) InstallDevApplication(ctx context.Context, path string, metadata []byte) (id.ApplicationID, error) {
	if path == "" {
		return "", &ValidationError{Kind: "application path", Value: path, Reason: "must not be empty"}
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/install-dev-application",
		Body: map[string]any{
			"path":     path,
			"metadata": jsonBytes(metadata),
		},
	})
	if err != nil {
		return "", err
	}
	return decodeApplicationID(resp.Data)
}

func decodeApplicationID(data json.RawMessage) (id.ApplicationID, error) {
	fields, err := objectFields(data)
	if err != nil {
		return "", err
	}
	appID, err := stringField(fields, "application_id", "application_id", "applicationId")
	if err != nil {
		return "", err
	}
	return id.ApplicationID(appID), nil
}

// UninstallApplication removes an installed application.
func (c *Client) UninstallApplication(ctx context.Context, appID id.ApplicationID) error {
	if err := requireID("application ID", string(appID)); err != nil {
		return err
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodDelete,
		Path:   "admin-api/applications/" + string(appID),
	})
	return err
}

// GetApplication fetches one installed application, or ErrNotFound when the
// node does not have it.
func (c *Client) GetApplication(ctx context.Context, appID id.ApplicationID) (*ApplicationInfo, error) {
	if err := requireID("application ID", string(appID)); err != nil {
		return nil, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/applications/" + string(appID),
	})
	if err != nil {
		return nil, err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return nil, err
	}
	raw, ok := optionalField(fields, "application")
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, ErrNotFound)
	}
	var app ApplicationInfo
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, wrapDecode(err)
	}
	return &app, nil
}

// ListApplications returns every installed application.
func (c *Client) ListApplications(ctx context.Context) ([]ApplicationInfo, error) {
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/applications",
	})
	if err != nil {
		return nil, err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return nil, err
	}
	raw, err := field(fields, "apps", "apps", "applications")
	if err != nil {
		return nil, err
	}
	var apps []ApplicationInfo
	if err := json.Unmarshal(raw, &apps); err != nil {
		return nil, wrapDecode(err)
	}
	return apps, nil
}

// ── Contexts ────────────────────────────────────────────────────────────

// CreateContext creates a new context running appID against the named
// execution protocol (e.g. "near", "icp"). The protocol string is node
// territory and is passed through unvalidated beyond non-emptiness.
// initParams is handed to the application's init function; nil is allowed.
//
// Creating a context is not idempotent: a repeated call creates a second,
// distinct context.
func (c *Client) CreateContext(ctx context.Context, appID id.ApplicationID, protocol string, initParams []byte) (*CreateContextResult, error) {
	if err := requireID("application ID", string(appID)); err != nil {
		return nil, err
	}
	if protocol == "" {
		return nil, &ValidationError{Kind: "protocol", Value: protocol, Reason: "must not be empty"}
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts",
		Body: map[string]any{
			"applicationId":        string(appID),
			"protocol":             protocol,
			"initializationParams": jsonBytes(initParams),
		},
	})
	if err != nil {
		return nil, err
	}
	var result CreateContextResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, wrapDecode(err)
	}
	return &result, nil
}

// GetContext fetches one context by ID.
func (c *Client) GetContext(ctx context.Context, contextID id.ContextID) (*ContextInfo, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/contexts/" + string(contextID),
	})
	if err != nil {
		return nil, err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return nil, err
	}
	raw := resp.Data
	if inner, ok := optionalField(fields, "context"); ok {
		raw = inner
	}
	var info ContextInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, wrapDecode(err)
	}
	return &info, nil
}

// ListContexts returns every context hosted by the node.
func (c *Client) ListContexts(ctx context.Context) ([]ContextInfo, error) {
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/contexts",
	})
	if err != nil {
		return nil, err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return nil, err
	}
	raw, err := field(fields, "contexts", "contexts")
	if err != nil {
		return nil, err
	}
	var contexts []ContextInfo
	if err := json.Unmarshal(raw, &contexts); err != nil {
		return nil, wrapDecode(err)
	}
	return contexts, nil
}

// DeleteContext removes a context and its state from the node.
func (c *Client) DeleteContext(ctx context.Context, contextID id.ContextID) error {
	if err := requireID("context ID", string(contextID)); err != nil {
		return err
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodDelete,
		Path:   "admin-api/contexts/" + string(contextID),
	})
	return err
}

// UpdateContextApplication switches a context to a different installed
// application, e.g. after upgrading the application bundle. executor must
// be a member identity authorized to manage the context.
func (c *Client) UpdateContextApplication(ctx context.Context, contextID id.ContextID, appID id.ApplicationID, executor id.PublicKey) error {
	if err := requireID("context ID", string(contextID)); err != nil {
		return err
	}
	if err := requireID("application ID", string(appID)); err != nil {
		return err
	}
	if err := requireID("executor public key", string(executor)); err != nil {
		return err
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts/" + string(contextID) + "/application",
		Body: map[string]any{
			"applicationId":     string(appID),
			"executorPublicKey": string(executor),
		},
	})
	return err
}

// GetContextStorage returns the context state size in bytes.
func (c *Client) GetContextStorage(ctx context.Context, contextID id.ContextID) (uint64, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return 0, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/contexts/" + string(contextID) + "/storage",
	})
	if err != nil {
		return 0, err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return 0, err
	}
	return uintField(fields, "size_in_bytes", "size_in_bytes", "sizeInBytes")
}

// GetContextIdentities lists member identities of a context. With owned
// set, only identities whose private keys this node holds are returned.
func (c *Client) GetContextIdentities(ctx context.Context, contextID id.ContextID, owned bool) ([]id.PublicKey, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	path := "admin-api/contexts/" + string(contextID) + "/identities"
	if owned {
		path += "-owned"
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   path,
	})
	if err != nil {
		return nil, err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return nil, err
	}
	raw, err := field(fields, "identities", "identities")
	if err != nil {
		return nil, err
	}
	var identities []id.PublicKey
	if err := json.Unmarshal(raw, &identities); err != nil {
		return nil, wrapDecode(err)
	}
	return identities, nil
}

// GetContextClientKeys returns the context's client keys as raw JSON; the
// key schema is node-defined.
func (c *Client) GetContextClientKeys(ctx context.Context, contextID id.ContextID) (json.RawMessage, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/contexts/" + string(contextID) + "/client-keys",
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GrantPermissions grants capabilities to context members.
func (c *Client) GrantPermissions(ctx context.Context, contextID id.ContextID, perms []Permission) error {
	return c.changePermissions(ctx, contextID, "grant", perms)
}

// RevokePermissions revokes capabilities from context members.
func (c *Client) RevokePermissions(ctx context.Context, contextID id.ContextID, perms []Permission) error {
	return c.changePermissions(ctx, contextID, "revoke", perms)
}

func (c *Client) changePermissions(ctx context.Context, contextID id.ContextID, verb string, perms []Permission) error {
	if err := requireID("context ID", string(contextID)); err != nil {
		return err
	}
	if len(perms) == 0 {
		return &ValidationError{Kind: "permissions", Value: "", Reason: "must not be empty"}
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts/" + string(contextID) + "/capabilities/" + verb,
		Body:   perms,
	})
	return err
}

// GetContextPermissions returns the capabilities held by one member of a
// context. Capability names are node-defined strings.
func (c *Client) GetContextPermissions(ctx context.Context, contextID id.ContextID, member id.PublicKey) ([]string, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	if err := requireID("public key", string(member)); err != nil {
		return nil, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/contexts/" + string(contextID) + "/capabilities/" + string(member),
	})
	if err != nil {
		return nil, err
	}
	// Bare array or a wrapped {capabilities: [...]} object, depending on
	// node version.
	var caps []string
	if err := json.Unmarshal(resp.Data, &caps); err == nil {
		return caps, nil
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return nil, err
	}
	raw, err := field(fields, "capabilities", "capabilities", "permissions")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &caps); err != nil {
		return nil, wrapDecode(err)
	}
	return caps, nil
}

// SyncContext asks the node to synchronize one context with its peers.
func (c *Client) SyncContext(ctx context.Context, contextID id.ContextID) error {
	if err := requireID("context ID", string(contextID)); err != nil {
		return err
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts/" + string(contextID) + "/sync",
	})
	return err
}

// SyncAllContexts asks the node to synchronize every hosted context.
func (c *Client) SyncAllContexts(ctx context.Context) error {
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts/sync",
	})
	return err
}

// ── Identities & membership ─────────────────────────────────────────────

// GenerateContextIdentity asks the node to generate a fresh member
// identity. The identity is not bound to any context until it joins one.
func (c *Client) GenerateContextIdentity(ctx context.Context) (id.PublicKey, error) {
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/identity/context",
	})
	if err != nil {
		return "", err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return "", err
	}
	pk, err := stringField(fields, "public_key", "public_key", "publicKey")
	if err != nil {
		return "", err
	}
	return id.PublicKey(pk), nil
}

// InviteToContext asks the node to produce an invitation authorizing
// inviteeID to join contextID. inviterID must already be a member of the
// context with invite rights, otherwise the node rejects the request with
// a policy error (HTTP 403 or equivalent).
//
// The returned payload is opaque: pass it to JoinContext unmodified.
func (c *Client) InviteToContext(ctx context.Context, contextID id.ContextID, inviterID, inviteeID id.PublicKey) (id.InvitationPayload, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return "", err
	}
	if err := requireID("inviter public key", string(inviterID)); err != nil {
		return "", err
	}
	if err := requireID("invitee public key", string(inviteeID)); err != nil {
		return "", err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts/invite",
		Body: map[string]string{
			"contextId": string(contextID),
			"inviterId": string(inviterID),
			"inviteeId": string(inviteeID),
		},
	})
	if err != nil {
		return "", err
	}
	// The payload is the data value itself, a JSON string.
	var payload string
	if err := json.Unmarshal(resp.Data, &payload); err != nil || payload == "" {
		return "", &DecodeError{Field: "invitation payload"}
	}
	return id.InvitationPayload(payload), nil
}

// JoinContext consumes an invitation payload on the joining node. The
// payload is single-use: a second join with an already-consumed payload
// fails with the node's policy error, which is surfaced verbatim as an
// HTTPError — the client does not distinguish sub-causes it cannot decode.
func (c *Client) JoinContext(ctx context.Context, contextID id.ContextID, inviteeID id.PublicKey, payload id.InvitationPayload) (*JoinContextResult, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	if err := requireID("invitee public key", string(inviteeID)); err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, &ValidationError{Kind: "invitation payload", Value: "", Reason: "must not be empty"}
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts/join",
		Body: map[string]string{
			"invitationPayload": string(payload),
		},
	})
	if err != nil {
		return nil, err
	}
	var result JoinContextResult
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, wrapDecode(err)
		}
	}
	return &result, nil
}

// ── Peers & blobs ───────────────────────────────────────────────────────

// GetPeersCount returns how many peers the node currently sees.
func (c *Client) GetPeersCount(ctx context.Context) (uint64, error) {
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/peers",
	})
	if err != nil {
		return 0, err
	}
	// Older nodes answer a bare {"count": N}; newer ones wrap it in the
	// data envelope as a bare number. envelopeData unwrapped the latter.
	var n uint64
	if err := json.Unmarshal(resp.Data, &n); err == nil {
		return n, nil
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return 0, err
	}
	return uintField(fields, "count", "count")
}

// ListBlobs returns metadata for every blob the node stores.
func (c *Client) ListBlobs(ctx context.Context) ([]BlobInfo, error) {
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/blobs",
	})
	if err != nil {
		return nil, err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return nil, err
	}
	raw, err := field(fields, "blobs", "blobs")
	if err != nil {
		return nil, err
	}
	var blobs []BlobInfo
	if err := json.Unmarshal(raw, &blobs); err != nil {
		return nil, wrapDecode(err)
	}
	return blobs, nil
}

// GetBlobInfo reads a blob's metadata from the HEAD response headers
// without downloading its content.
func (c *Client) GetBlobInfo(ctx context.Context, blobID id.BlobID) (*BlobInfo, error) {
	if err := requireID("blob ID", string(blobID)); err != nil {
		return nil, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodHead,
		Path:   "admin-api/blobs/" + string(blobID),
	})
	if err != nil {
		return nil, err
	}
	info := &BlobInfo{
		BlobID:   blobID,
		MimeType: resp.Header.Get("Content-Type"),
		Hash:     resp.Header.Get("X-Blob-Hash"),
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		_, _ = fmt.Sscanf(cl, "%d", &info.Size)
	}
	return info, nil
}

// DeleteBlob removes a stored blob.
func (c *Client) DeleteBlob(ctx context.Context, blobID id.BlobID) error {
	if err := requireID("blob ID", string(blobID)); err != nil {
		return err
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodDelete,
		Path:   "admin-api/blobs/" + string(blobID),
	})
	return err
}

// ── Proposals ───────────────────────────────────────────────────────────

// GetProposal fetches one governance proposal as raw JSON; proposal
// internals are node-defined.
func (c *Client) GetProposal(ctx context.Context, contextID id.ContextID, proposalID string) (json.RawMessage, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	if err := requireID("proposal ID", proposalID); err != nil {
		return nil, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/contexts/" + string(contextID) + "/proposals/" + proposalID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetProposalApprovers lists the identities that approved a proposal.
func (c *Client) GetProposalApprovers(ctx context.Context, contextID id.ContextID, proposalID string) ([]id.PublicKey, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	if err := requireID("proposal ID", proposalID); err != nil {
		return nil, err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   "admin-api/contexts/" + string(contextID) + "/proposals/" + proposalID + "/approvals/users",
	})
	if err != nil {
		return nil, err
	}
	var approvers []id.PublicKey
	if err := json.Unmarshal(resp.Data, &approvers); err != nil {
		return nil, wrapDecode(err)
	}
	return approvers, nil
}

// ListProposals lists a context's proposals. args is a node-defined filter
// object passed through as-is; nil sends an empty filter.
func (c *Client) ListProposals(ctx context.Context, contextID id.ContextID, args json.RawMessage) ([]json.RawMessage, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	if args == nil {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return nil, &ValidationError{Kind: "proposal filter", Value: string(args), Reason: "not valid JSON"}
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   "admin-api/contexts/" + string(contextID) + "/proposals",
		Body:   args,
	})
	if err != nil {
		return nil, err
	}
	var proposals []json.RawMessage
	if err := json.Unmarshal(resp.Data, &proposals); err != nil {
		return nil, wrapDecode(err)
	}
	return proposals, nil
}

func wrapDecode(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Err: err}
}
