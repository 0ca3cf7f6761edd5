package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/calimero-network/calimero-go/pkg/client"
)

// hostNode stubs the inviting side: context creation and invitations.
func hostNode(t *testing.T, inviteStatus int) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/admin-api/contexts", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]string{
			"contextId":       "ctx1",
			"memberPublicKey": "pkA",
		})
	})
	mux.HandleFunc("/admin-api/contexts/invite", func(w http.ResponseWriter, r *http.Request) {
		if inviteStatus != http.StatusOK {
			w.WriteHeader(inviteStatus)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "inviter lacks invite rights"},
			})
			return
		}
		writeData(w, "inv123")
	})
	return newTestClient(t, mux)
}

// guestNode stubs the joining side: identity generation and joins. Each
// invitation payload is single-use.
func guestNode(t *testing.T, joins *atomic.Int64) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/admin-api/identity/context", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]string{"publicKey": "pkB"})
	})
	mux.HandleFunc("/admin-api/contexts/join", func(w http.ResponseWriter, r *http.Request) {
		if joins.Add(1) > 1 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "invitation already consumed"},
			})
			return
		}
		writeData(w, map[string]string{
			"contextId":       "ctx1",
			"memberPublicKey": "pkB",
		})
	})
	return newTestClient(t, mux)
}

func TestSetupCollaboration_success(t *testing.T) {
	var joins atomic.Int64
	host := hostNode(t, http.StatusOK)
	guest := guestNode(t, &joins)

	setup, err := client.SetupCollaboration(context.Background(), host, guest, fixAppID, "near")
	if err != nil {
		t.Fatalf("SetupCollaboration: %v", err)
	}
	if setup.Failed() {
		t.Errorf("unexpected failed step %q", setup.FailedStep)
	}
	if setup.ContextID != "ctx1" {
		t.Errorf("context: got %s", setup.ContextID)
	}
	if setup.HostPublicKey != "pkA" {
		t.Errorf("host key: got %s", setup.HostPublicKey)
	}
	if setup.GuestPublicKey != "pkB" {
		t.Errorf("guest key: got %s", setup.GuestPublicKey)
	}
	if setup.Invitation != "inv123" {
		t.Errorf("invitation: got %s", setup.Invitation)
	}
	if setup.GuestMember != "pkB" {
		t.Errorf("guest member: got %s", setup.GuestMember)
	}
}

func TestSetupCollaboration_inviteFailureKeepsPartials(t *testing.T) {
	var joins atomic.Int64
	host := hostNode(t, http.StatusForbidden)
	guest := guestNode(t, &joins)

	setup, err := client.SetupCollaboration(context.Background(), host, guest, fixAppID, "near")
	if err == nil {
		t.Fatal("expected error")
	}
	var he *client.HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusForbidden {
		t.Fatalf("expected 403 *HTTPError, got %v", err)
	}

	if setup == nil {
		t.Fatal("setup must be non-nil on failure")
	}
	if setup.FailedStep != client.StepInvite {
		t.Errorf("failed step: got %q", setup.FailedStep)
	}
	// Everything obtained before the failing step is preserved.
	if setup.ContextID != "ctx1" || setup.HostPublicKey != "pkA" || setup.GuestPublicKey != "pkB" {
		t.Errorf("partials lost: %+v", setup)
	}
	if setup.Invitation != "" {
		t.Errorf("invitation should be empty, got %s", setup.Invitation)
	}
	// The guest must never attempt a join without an invitation.
	if n := joins.Load(); n != 0 {
		t.Errorf("expected 0 join attempts, got %d", n)
	}
}

func TestSetupCollaboration_createFailure(t *testing.T) {
	host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	var joins atomic.Int64
	guest := guestNode(t, &joins)

	setup, err := client.SetupCollaboration(context.Background(), host, guest, fixAppID, "near")
	if err == nil {
		t.Fatal("expected error")
	}
	if setup.FailedStep != client.StepCreateContext {
		t.Errorf("failed step: got %q", setup.FailedStep)
	}
	if setup.ContextID != "" {
		t.Errorf("no context should be recorded, got %s", setup.ContextID)
	}
}

func TestJoinContext_consumedInvitation(t *testing.T) {
	var joins atomic.Int64
	guest := guestNode(t, &joins)
	ctx := context.Background()

	if _, err := guest.JoinContext(ctx, fixCtxID, fixGuest, "inv123"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	_, err := guest.JoinContext(ctx, fixCtxID, fixGuest, "inv123")
	var he *client.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("second join: expected *HTTPError, got %v", err)
	}
	if he.Message != "invitation already consumed" {
		t.Errorf("message: got %q", he.Message)
	}
}
