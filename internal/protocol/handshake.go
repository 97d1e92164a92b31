package protocol

import (
	"errors"
	"fmt"
	"net/url"
)

var ErrMalformedHandshake = errors.New("malformed handshake")

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Handshake carries the query parameters sent once when a connection opens.
type Handshake struct {
	Role    Role
	UUID    string
	AdminID string
}

func ParseHandshake(q url.Values) Handshake {
	return Handshake{
		Role:    Role(q.Get("role")),
		UUID:    q.Get("uuid"),
		AdminID: q.Get("adminId"),
	}
}

func (h Handshake) Validate() error {
	switch h.Role {
	case "":
		return fmt.Errorf("%w: missing role", ErrMalformedHandshake)
	case RoleClient:
		if h.UUID == "" {
			return fmt.Errorf("%w: client without uuid", ErrMalformedHandshake)
		}
	case RoleAdmin:
		if h.AdminID == "" {
			return fmt.Errorf("%w: admin without adminId", ErrMalformedHandshake)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrMalformedHandshake, h.Role)
	}
	return nil
}

// Identity is the logical id the handshake claims for its role.
func (h Handshake) Identity() string {
	if h.Role == RoleAdmin {
		return h.AdminID
	}
	return h.UUID
}
