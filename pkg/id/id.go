// Package id provides parsing and validation for Calimero node identifiers.
//
// Context IDs, application IDs, public keys and blob IDs are base58-encoded
// 32-byte values assigned by the node. Aliases are caller-chosen
// human-readable names bound to one of those identifiers. Invitation
// payloads are opaque signed blobs that the client round-trips without
// interpreting.
//
// The exact alphabet/length contract is node-defined; it is expressed here
// as a rule set (encodingRules) so a future node revision can ship a second
// rule set without touching the parse functions.
package id

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ValidationError reports a malformed caller-supplied identifier or URL.
// It is always the caller's fault and never worth retrying.
type ValidationError struct {
	Kind   string // what was being parsed, e.g. "context ID"
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.Value, e.Reason)
}

// encodingRules describes one revision of the node's identifier encoding
// contract.
type encodingRules struct {
	decode  func(string) ([]byte, error)
	byteLen int
}

// current node contract: base58, 32 raw bytes.
var rules = encodingRules{decode: base58.Decode, byteLen: 32}

// validateRaw checks a base58 identifier against the active rule set.
func validateRaw(kind, s string) error {
	if s == "" {
		return &ValidationError{Kind: kind, Value: s, Reason: "must not be empty"}
	}
	raw, err := rules.decode(s)
	if err != nil {
		return &ValidationError{Kind: kind, Value: s, Reason: "not valid base58"}
	}
	if len(raw) != rules.byteLen {
		return &ValidationError{
			Kind:   kind,
			Value:  s,
			Reason: fmt.Sprintf("decodes to %d bytes, want %d", len(raw), rules.byteLen),
		}
	}
	return nil
}

// ContextID identifies an isolated application instance hosted by a node.
type ContextID string

// ParseContextID validates a context ID string.
func ParseContextID(s string) (ContextID, error) {
	if err := validateRaw("context ID", s); err != nil {
		return "", err
	}
	return ContextID(s), nil
}

func (c ContextID) String() string { return string(c) }

// ApplicationID identifies an installed application package.
type ApplicationID string

// ParseApplicationID validates an application ID string.
func ParseApplicationID(s string) (ApplicationID, error) {
	if err := validateRaw("application ID", s); err != nil {
		return "", err
	}
	return ApplicationID(s), nil
}

func (a ApplicationID) String() string { return string(a) }

// PublicKey is the cryptographic identity of one context member.
type PublicKey string

// ParsePublicKey validates a public key string.
func ParsePublicKey(s string) (PublicKey, error) {
	if err := validateRaw("public key", s); err != nil {
		return "", err
	}
	return PublicKey(s), nil
}

func (p PublicKey) String() string { return string(p) }

// BlobID identifies a stored blob on a node.
type BlobID string

// ParseBlobID validates a blob ID string.
func ParseBlobID(s string) (BlobID, error) {
	if err := validateRaw("blob ID", s); err != nil {
		return "", err
	}
	return BlobID(s), nil
}

func (b BlobID) String() string { return string(b) }

const maxAliasLen = 50

// Alias is a human-readable name bound to a context, application, or
// context identity.
type Alias string

// ParseAlias validates an alias name. Aliases appear as URL path segments,
// so slashes, whitespace and URL metacharacters are rejected.
func ParseAlias(s string) (Alias, error) {
	if s == "" {
		return "", &ValidationError{Kind: "alias", Value: s, Reason: "must not be empty"}
	}
	if len(s) > maxAliasLen {
		return "", &ValidationError{
			Kind:   "alias",
			Value:  s,
			Reason: fmt.Sprintf("longer than %d characters", maxAliasLen),
		}
	}
	if strings.ContainsAny(s, " \t\n/\\?#%") {
		return "", &ValidationError{Kind: "alias", Value: s, Reason: "contains invalid characters"}
	}
	return Alias(s), nil
}

func (a Alias) String() string { return string(a) }

// InvitationPayload is the opaque signed artifact produced by
// InviteToContext and consumed by JoinContext. The client never decodes it;
// validation only confirms it is a non-empty base58 blob so an obviously
// corrupted payload fails before any network call.
type InvitationPayload string

// ParseInvitationPayload validates an invitation payload string.
func ParseInvitationPayload(s string) (InvitationPayload, error) {
	if s == "" {
		return "", &ValidationError{Kind: "invitation payload", Value: s, Reason: "must not be empty"}
	}
	if _, err := base58.Decode(s); err != nil {
		return "", &ValidationError{Kind: "invitation payload", Value: s, Reason: "not valid base58"}
	}
	return InvitationPayload(s), nil
}

func (p InvitationPayload) String() string { return string(p) }
