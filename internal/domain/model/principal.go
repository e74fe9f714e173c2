package model

import "github.com/google/uuid"

// Principal is the verified identity the Identity collaborator resolves from
// an opaque connect token. A connection is never half-admitted: verification
// either yields an active principal or the handshake is rejected.
type Principal struct {
	UserID uuid.UUID
	Role   Role
	Active bool
}

// Profile is the directory entry used for notification rendering and
// responder fan-out.
type Profile struct {
	UserID uuid.UUID
	Name   string
	Role   Role
}
