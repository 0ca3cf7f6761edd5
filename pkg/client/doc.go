// Package client is the Calimero node Go SDK.
//
// It provides everything a developer needs to drive a Calimero node:
// managing contexts and their members, installing applications, executing
// application methods over JSON-RPC, and the alias, blob and proposal
// administration surface of the node's admin API.
//
// # Connecting to a node
//
// A Connection wraps one node endpoint with its credentials. Build one,
// then hand it to NewClient:
//
//	conn, err := client.NewConnection("http://localhost:2428",
//	    client.WithAuthTokens(accessToken, refreshToken),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c := client.NewClient(conn)
//
// Nodes without authentication need no options. When the auth mode is
// unknown ahead of time, DetectAuthMode probes the node:
//
//	mode := conn.DetectAuthMode(ctx)
//
// Access tokens supplied via WithAuthTokens are refreshed automatically
// 60 seconds before expiry; concurrent callers share a single refresh.
// WithAuthToken installs a static token that is never refreshed.
//
// # Executing application methods
//
// Execute calls a method of the application installed in a context. Both
// arguments and output are raw JSON:
//
//	res, err := c.Execute(ctx, contextID, "set",
//	    []byte(`{"key":"greeting","value":"hello"}`), executorKey)
//
// # Setting up a shared context across two nodes
//
// SetupCollaboration runs the full create / generate / invite / join
// handshake between a host node and a guest node:
//
//	setup, err := client.SetupCollaboration(ctx, host, guest, appID, "near")
//	if err != nil {
//	    // setup still carries everything obtained before the failure
//	    log.Fatalf("handshake failed at %s: %v", setup.FailedStep, err)
//	}
//	fmt.Println(setup.ContextID, setup.GuestPublicKey)
//
// # Identifiers
//
// Node identifiers (context IDs, public keys, application IDs, blob IDs)
// are base58-encoded 32-byte values. Strings from users or configuration
// must go through the pkg/id parse functions, which validate encoding and
// length; values threaded from node responses are accepted as-is.
//
// # Errors
//
// Failed calls return typed errors: *ValidationError for malformed
// inputs, *TransportError when the node is unreachable, *HTTPError for
// node-reported failures, and *DecodeError for malformed responses.
// Missing resources wrap ErrNotFound; operations the node does not
// support wrap ErrNotImplemented. All of these work with errors.Is and
// errors.As.
package client
