package client

import (
	"context"
	"fmt"

	"github.com/calimero-network/calimero-go/pkg/id"
)

// Cross-node collaboration setup: create a context on a host node, mint an
// identity on a guest node, exchange an invitation, and complete the join
// on the guest. Four remote calls whose outputs feed later inputs.

// SetupStep names one step of the collaboration handshake.
type SetupStep string

const (
	StepCreateContext    SetupStep = "create-context"
	StepGenerateIdentity SetupStep = "generate-identity"
	StepInvite           SetupStep = "invite"
	StepJoin             SetupStep = "join"
)

// CollaborationSetup carries every identifier obtained during the
// handshake. On failure, FailedStep names the step that failed and every
// field populated by earlier steps is preserved, so a caller can inspect
// what exists on each node and resume manually.
//
// No step is retried automatically: creating a context twice creates two
// distinct contexts, and a consumed invitation cannot be replayed. Retry
// policy belongs to the caller.
type CollaborationSetup struct {
	ContextID      id.ContextID
	HostPublicKey  id.PublicKey // the host's member identity in the new context
	GuestPublicKey id.PublicKey // the guest identity invited to join
	Invitation     id.InvitationPayload
	GuestMember    id.PublicKey // the guest's membership key after joining, when reported
	FailedStep     SetupStep    // "" on success
}

// Failed reports whether the handshake stopped before completing.
func (s *CollaborationSetup) Failed() bool { return s.FailedStep != "" }

// SetupCollaboration drives the four-step handshake between a host Client
// and a guest Client:
//
//  1. host creates a context for appID on the given protocol
//  2. guest generates a fresh member identity
//  3. host invites the guest identity into the context
//  4. guest joins the context, consuming the invitation
//
// The returned CollaborationSetup is never nil: on error it holds every
// identifier obtained before the failing step.
func SetupCollaboration(ctx context.Context, host, guest *Client, appID id.ApplicationID, protocol string) (*CollaborationSetup, error) {
	setup := &CollaborationSetup{}

	created, err := host.CreateContext(ctx, appID, protocol, nil)
	if err != nil {
		setup.FailedStep = StepCreateContext
		return setup, fmt.Errorf("create context: %w", err)
	}
	setup.ContextID = created.ContextID
	setup.HostPublicKey = created.MemberPublicKey

	guestKey, err := guest.GenerateContextIdentity(ctx)
	if err != nil {
		setup.FailedStep = StepGenerateIdentity
		return setup, fmt.Errorf("generate guest identity: %w", err)
	}
	setup.GuestPublicKey = guestKey

	invitation, err := host.InviteToContext(ctx, setup.ContextID, setup.HostPublicKey, guestKey)
	if err != nil {
		setup.FailedStep = StepInvite
		return setup, fmt.Errorf("invite %s to %s: %w", guestKey, setup.ContextID, err)
	}
	setup.Invitation = invitation

	joined, err := guest.JoinContext(ctx, setup.ContextID, guestKey, invitation)
	if err != nil {
		setup.FailedStep = StepJoin
		return setup, fmt.Errorf("join %s: %w", setup.ContextID, err)
	}
	if joined.MemberPublicKey != "" {
		setup.GuestMember = joined.MemberPublicKey
	}
	return setup, nil
}
