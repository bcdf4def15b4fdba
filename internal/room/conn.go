package room

import (
	"context"
	"errors"

	"walnut-woods/server/internal/proto"
	"walnut-woods/server/internal/world"
)

// ErrAuthFailed rejects an upgrade whose identity token did not verify.
var ErrAuthFailed = errors.New("room: authentication failed")

// Conn abstracts one client's outbound channel. The websocket layer and
// tests both implement it. Send must not block the room goroutine
// indefinitely; the websocket implementation uses a write deadline.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// IdentityVerifier is the external identity service. Token issuance is
// out of scope; the room only delegates verification.
type IdentityVerifier interface {
	Verify(ctx context.Context, identity, token string) error
}

// VerifierFunc adapts a function to IdentityVerifier.
type VerifierFunc func(ctx context.Context, identity, token string) error

func (f VerifierFunc) Verify(ctx context.Context, identity, token string) error {
	return f(ctx, identity, token)
}

// AllowAll accepts any non-empty token. Used by development setups and
// tests; production wires a real verifier.
func AllowAll() IdentityVerifier {
	return VerifierFunc(func(_ context.Context, identity, token string) error {
		if identity == "" || token == "" {
			return ErrAuthFailed
		}
		return nil
	})
}

// JoinRequest carries everything needed to upgrade a verified identity.
type JoinRequest struct {
	Identity  string
	Name      string
	Character string
	Conn      Conn
}

// JoinResult is the full snapshot handed to a newly upgraded client.
type JoinResult struct {
	PlayerID  string
	World     proto.WorldState
	Existing  proto.ExistingPlayers
	Reconnect bool
}

// Inbox commands. Everything that mutates room state arrives as one of
// these and is drained by the single room goroutine.

type joinCmd struct {
	req   JoinRequest
	reply chan joinReply
}

type joinReply struct {
	result JoinResult
	err    error
}

type frameCmd struct {
	playerID string
	data     []byte
}

type closedCmd struct {
	playerID string
	conn     Conn
}

type snapshotCmd struct {
	reply chan proto.WorldState
}

type resetWorldCmd struct {
	reply chan struct{}
}

type resetPositionsCmd struct {
	spawn world.Vec3
	reply chan struct{}
}
