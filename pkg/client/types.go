package client

import (
	"encoding/json"

	"github.com/calimero-network/calimero-go/pkg/id"
)

// Result types for the Client façade. Each type that decodes node JSON
// carries its own snake_case/camelCase alias table in UnmarshalJSON so the
// spellings accepted for one operation never leak into another.

// CreateContextResult is the outcome of CreateContext.
type CreateContextResult struct {
	ContextID       id.ContextID
	MemberPublicKey id.PublicKey
}

func (r *CreateContextResult) UnmarshalJSON(b []byte) error {
	fields, err := objectFields(b)
	if err != nil {
		return err
	}
	ctxID, err := stringField(fields, "context_id", "context_id", "contextId")
	if err != nil {
		return err
	}
	member, err := stringField(fields, "member_public_key", "member_public_key", "memberPublicKey")
	if err != nil {
		return err
	}
	r.ContextID = id.ContextID(ctxID)
	r.MemberPublicKey = id.PublicKey(member)
	return nil
}

// JoinContextResult is the outcome of JoinContext. Both fields are optional:
// some node versions acknowledge a join without echoing the membership.
type JoinContextResult struct {
	ContextID       id.ContextID
	MemberPublicKey id.PublicKey
}

func (r *JoinContextResult) UnmarshalJSON(b []byte) error {
	fields, err := objectFields(b)
	if err != nil {
		return err
	}
	if s, ok := optionalStringField(fields, "context_id", "contextId"); ok {
		r.ContextID = id.ContextID(s)
	}
	if s, ok := optionalStringField(fields, "member_public_key", "memberPublicKey"); ok {
		r.MemberPublicKey = id.PublicKey(s)
	}
	return nil
}

// ContextInfo describes one context hosted by the node.
type ContextInfo struct {
	ID            id.ContextID
	ApplicationID id.ApplicationID
	RootHash      string
}

func (c *ContextInfo) UnmarshalJSON(b []byte) error {
	fields, err := objectFields(b)
	if err != nil {
		return err
	}
	ctxID, err := stringField(fields, "id", "id", "context_id", "contextId")
	if err != nil {
		return err
	}
	c.ID = id.ContextID(ctxID)
	if s, ok := optionalStringField(fields, "application_id", "applicationId"); ok {
		c.ApplicationID = id.ApplicationID(s)
	}
	if s, ok := optionalStringField(fields, "root_hash", "rootHash"); ok {
		c.RootHash = s
	}
	return nil
}

// ApplicationInfo describes one installed application.
type ApplicationInfo struct {
	ID     id.ApplicationID
	BlobID id.BlobID
	Source string
	Size   uint64
}

func (a *ApplicationInfo) UnmarshalJSON(b []byte) error {
	fields, err := objectFields(b)
	if err != nil {
		return err
	}
	appID, err := stringField(fields, "id", "id", "application_id", "applicationId")
	if err != nil {
		return err
	}
	a.ID = id.ApplicationID(appID)
	if s, ok := optionalStringField(fields, "blob", "blob_id", "blobId"); ok {
		a.BlobID = id.BlobID(s)
	}
	if s, ok := optionalStringField(fields, "source"); ok {
		a.Source = s
	}
	if raw, ok := optionalField(fields, "size"); ok {
		if err := json.Unmarshal(raw, &a.Size); err != nil {
			return &DecodeError{Field: "size", Err: err}
		}
	}
	return nil
}

// BlobInfo describes one stored blob. Populated from response headers by
// GetBlobInfo and from JSON by ListBlobs.
type BlobInfo struct {
	BlobID   id.BlobID
	Size     uint64
	MimeType string
	Hash     string // hex-encoded 32-byte content hash, "" when unreported
}

func (b *BlobInfo) UnmarshalJSON(raw []byte) error {
	fields, err := objectFields(raw)
	if err != nil {
		return err
	}
	blobID, err := stringField(fields, "blob_id", "blob_id", "blobId", "id")
	if err != nil {
		return err
	}
	b.BlobID = id.BlobID(blobID)
	if raw, ok := optionalField(fields, "size"); ok {
		if err := json.Unmarshal(raw, &b.Size); err != nil {
			return &DecodeError{Field: "size", Err: err}
		}
	}
	if s, ok := optionalStringField(fields, "mime_type", "mimeType"); ok {
		b.MimeType = s
	}
	if s, ok := optionalStringField(fields, "hash"); ok {
		b.Hash = s
	}
	return nil
}

// ExecuteResult is the decoded outcome of a remote function execution.
// Output is the function's return value as raw JSON; null for functions
// that return nothing.
type ExecuteResult struct {
	Output json.RawMessage
}

// Permission grants or revokes one capability for one context member.
// Pairs serialize as [publicKey, capability] tuples, the shape the node's
// capabilities endpoints expect.
type Permission struct {
	PublicKey  id.PublicKey
	Capability string
}

func (p Permission) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{string(p.PublicKey), p.Capability})
}

// AliasKind distinguishes the three alias namespaces a node maintains.
type AliasKind string

const (
	AliasKindContext     AliasKind = "context"
	AliasKindApplication AliasKind = "application"
	AliasKindIdentity    AliasKind = "identity"
)

// AliasKinds lists every alias namespace this client supports, in the order
// the node documents them.
func AliasKinds() []AliasKind {
	return []AliasKind{AliasKindContext, AliasKindApplication, AliasKindIdentity}
}
