// Package identity resolves atproto handles and DIDs for the query
// service, caching results in process so repeated lookups of the same
// actor do not hammer the PLC directory.
package identity

import (
	"context"
	"strings"
)

// Resolver resolves identities in either direction.
type Resolver interface {
	// ResolveHandle resolves a handle to its DID.
	ResolveHandle(ctx context.Context, handle string) (string, error)

	// ResolveDID resolves a DID to its currently declared handle.
	ResolveDID(ctx context.Context, did string) (string, error)
}

// Actor is a fully resolved identity.
type Actor struct {
	DID    string
	Handle string
}

// ResolveActor takes raw user input (a handle, an @-prefixed handle,
// or a DID), normalizes it, and resolves the missing half.
func ResolveActor(ctx context.Context, r Resolver, raw string) (*Actor, error) {
	actor := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	if actor == "" {
		return nil, &ErrInvalidIdentifier{Identifier: raw, Reason: "empty actor"}
	}

	if strings.HasPrefix(actor, "did:") {
		handle, err := r.ResolveDID(ctx, actor)
		if err != nil {
			return nil, err
		}
		return &Actor{DID: actor, Handle: handle}, nil
	}

	did, err := r.ResolveHandle(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &Actor{DID: did, Handle: actor}, nil
}
