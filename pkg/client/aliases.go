package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/calimero-network/calimero-go/pkg/id"
)

// Alias operations. The node keeps three alias namespaces (context,
// application, identity); identity aliases are scoped to one context, the
// other two are node-global. Endpoint shape:
//
//	admin-api/alias/{create|delete|list|lookup}/{kind}[/{scope}][/{alias}]

func aliasPath(verb string, kind AliasKind, scope, alias string) string {
	p := "admin-api/alias/" + verb + "/" + string(kind)
	if scope != "" {
		p += "/" + scope
	}
	if alias != "" {
		p += "/" + alias
	}
	return p
}

func (c *Client) createAlias(ctx context.Context, kind AliasKind, scope string, alias id.Alias, value map[string]string) error {
	if _, err := id.ParseAlias(string(alias)); err != nil {
		return err
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   aliasPath("create", kind, scope, ""),
		Body: map[string]any{
			"alias": string(alias),
			"value": value,
		},
	})
	return err
}

func (c *Client) deleteAlias(ctx context.Context, kind AliasKind, scope string, alias id.Alias) error {
	if _, err := id.ParseAlias(string(alias)); err != nil {
		return err
	}
	_, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   aliasPath("delete", kind, scope, string(alias)),
	})
	return err
}

func (c *Client) listAliases(ctx context.Context, kind AliasKind, scope string) (map[id.Alias]string, error) {
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodGet,
		Path:   aliasPath("list", kind, scope, ""),
	})
	if err != nil {
		return nil, err
	}
	bindings := map[id.Alias]string{}
	if err := json.Unmarshal(resp.Data, &bindings); err != nil {
		return nil, wrapDecode(err)
	}
	return bindings, nil
}

// lookupAlias returns the identifier bound to alias, or ErrNotFound when
// the node has no binding. The node answers 200 with a null value for a
// miss, so both the null body and an HTTP 404 map to ErrNotFound.
func (c *Client) lookupAlias(ctx context.Context, kind AliasKind, scope string, alias id.Alias) (string, error) {
	if _, err := id.ParseAlias(string(alias)); err != nil {
		return "", err
	}
	resp, err := dispatch(ctx, c.conn, RequestEnvelope{
		Method: http.MethodPost,
		Path:   aliasPath("lookup", kind, scope, string(alias)),
	})
	if err != nil {
		return "", err
	}
	fields, err := objectFields(resp.Data)
	if err != nil {
		return "", err
	}
	value, ok := optionalStringField(fields, "value")
	if !ok || value == "" {
		return "", fmt.Errorf("%s alias %q: %w", kind, alias, ErrNotFound)
	}
	return value, nil
}

// resolveAlias is lookupAlias with a fallback: when the node has no
// binding, the alias string itself is parsed as a raw identifier. This
// lets callers accept "either an alias or an ID" in one argument.
func (c *Client) resolveAlias(ctx context.Context, kind AliasKind, scope string, alias id.Alias, parse func(string) error) (string, error) {
	value, err := c.lookupAlias(ctx, kind, scope, alias)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if parseErr := parse(string(alias)); parseErr != nil {
		return "", err // keep the not-found error; the string is no ID either
	}
	return string(alias), nil
}

// ── Context aliases ─────────────────────────────────────────────────────

// CreateContextAlias binds a human-readable name to a context ID.
func (c *Client) CreateContextAlias(ctx context.Context, alias id.Alias, contextID id.ContextID) error {
	if err := requireID("context ID", string(contextID)); err != nil {
		return err
	}
	return c.createAlias(ctx, AliasKindContext, "", alias, map[string]string{"contextId": string(contextID)})
}

// DeleteContextAlias removes a context alias binding.
func (c *Client) DeleteContextAlias(ctx context.Context, alias id.Alias) error {
	return c.deleteAlias(ctx, AliasKindContext, "", alias)
}

// ListContextAliases returns every context alias binding on the node.
func (c *Client) ListContextAliases(ctx context.Context) (map[id.Alias]id.ContextID, error) {
	raw, err := c.listAliases(ctx, AliasKindContext, "")
	if err != nil {
		return nil, err
	}
	out := make(map[id.Alias]id.ContextID, len(raw))
	for alias, value := range raw {
		out[alias] = id.ContextID(value)
	}
	return out, nil
}

// LookupContextAlias returns the context ID bound to alias, or ErrNotFound.
func (c *Client) LookupContextAlias(ctx context.Context, alias id.Alias) (id.ContextID, error) {
	value, err := c.lookupAlias(ctx, AliasKindContext, "", alias)
	if err != nil {
		return "", err
	}
	return id.ContextID(value), nil
}

// ResolveContextAlias is LookupContextAlias with raw-ID fallback: a string
// that is not a known alias but parses as a context ID resolves to itself.
func (c *Client) ResolveContextAlias(ctx context.Context, alias id.Alias) (id.ContextID, error) {
	value, err := c.resolveAlias(ctx, AliasKindContext, "", alias, func(s string) error {
		_, err := id.ParseContextID(s)
		return err
	})
	if err != nil {
		return "", err
	}
	return id.ContextID(value), nil
}

// ── Application aliases ─────────────────────────────────────────────────

// CreateApplicationAlias binds a human-readable name to an application ID.
func (c *Client) CreateApplicationAlias(ctx context.Context, alias id.Alias, appID id.ApplicationID) error {
	if err := requireID("application ID", string(appID)); err != nil {
		return err
	}
	return c.createAlias(ctx, AliasKindApplication, "", alias, map[string]string{"applicationId": string(appID)})
}

// DeleteApplicationAlias removes an application alias binding.
func (c *Client) DeleteApplicationAlias(ctx context.Context, alias id.Alias) error {
	return c.deleteAlias(ctx, AliasKindApplication, "", alias)
}

// ListApplicationAliases returns every application alias binding.
func (c *Client) ListApplicationAliases(ctx context.Context) (map[id.Alias]id.ApplicationID, error) {
	raw, err := c.listAliases(ctx, AliasKindApplication, "")
	if err != nil {
		return nil, err
	}
	out := make(map[id.Alias]id.ApplicationID, len(raw))
	for alias, value := range raw {
		out[alias] = id.ApplicationID(value)
	}
	return out, nil
}

// LookupApplicationAlias returns the application ID bound to alias, or
// ErrNotFound.
func (c *Client) LookupApplicationAlias(ctx context.Context, alias id.Alias) (id.ApplicationID, error) {
	value, err := c.lookupAlias(ctx, AliasKindApplication, "", alias)
	if err != nil {
		return "", err
	}
	return id.ApplicationID(value), nil
}

// ResolveApplicationAlias is LookupApplicationAlias with raw-ID fallback.
func (c *Client) ResolveApplicationAlias(ctx context.Context, alias id.Alias) (id.ApplicationID, error) {
	value, err := c.resolveAlias(ctx, AliasKindApplication, "", alias, func(s string) error {
		_, err := id.ParseApplicationID(s)
		return err
	})
	if err != nil {
		return "", err
	}
	return id.ApplicationID(value), nil
}

// ── Identity aliases (scoped to one context) ────────────────────────────

// CreateIdentityAlias binds a name to a member identity within contextID.
func (c *Client) CreateIdentityAlias(ctx context.Context, contextID id.ContextID, alias id.Alias, identity id.PublicKey) error {
	if err := requireID("context ID", string(contextID)); err != nil {
		return err
	}
	if err := requireID("public key", string(identity)); err != nil {
		return err
	}
	return c.createAlias(ctx, AliasKindIdentity, string(contextID), alias, map[string]string{"identity": string(identity)})
}

// DeleteIdentityAlias removes an identity alias binding within contextID.
func (c *Client) DeleteIdentityAlias(ctx context.Context, contextID id.ContextID, alias id.Alias) error {
	if err := requireID("context ID", string(contextID)); err != nil {
		return err
	}
	return c.deleteAlias(ctx, AliasKindIdentity, string(contextID), alias)
}

// ListIdentityAliases returns every identity alias within contextID.
func (c *Client) ListIdentityAliases(ctx context.Context, contextID id.ContextID) (map[id.Alias]id.PublicKey, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return nil, err
	}
	raw, err := c.listAliases(ctx, AliasKindIdentity, string(contextID))
	if err != nil {
		return nil, err
	}
	out := make(map[id.Alias]id.PublicKey, len(raw))
	for alias, value := range raw {
		out[alias] = id.PublicKey(value)
	}
	return out, nil
}

// LookupIdentityAlias returns the identity bound to alias within
// contextID, or ErrNotFound.
func (c *Client) LookupIdentityAlias(ctx context.Context, contextID id.ContextID, alias id.Alias) (id.PublicKey, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return "", err
	}
	value, err := c.lookupAlias(ctx, AliasKindIdentity, string(contextID), alias)
	if err != nil {
		return "", err
	}
	return id.PublicKey(value), nil
}

// ResolveIdentityAlias is LookupIdentityAlias with raw-key fallback.
func (c *Client) ResolveIdentityAlias(ctx context.Context, contextID id.ContextID, alias id.Alias) (id.PublicKey, error) {
	if err := requireID("context ID", string(contextID)); err != nil {
		return "", err
	}
	value, err := c.resolveAlias(ctx, AliasKindIdentity, string(contextID), alias, func(s string) error {
		_, err := id.ParsePublicKey(s)
		return err
	})
	if err != nil {
		return "", err
	}
	return id.PublicKey(value), nil
}
