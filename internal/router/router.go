package router

import (
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/video-routing-backend/internal/protocol"
	"github.com/DoyleJ11/video-routing-backend/internal/registry"
)

// Router turns lifecycle transitions and peer requests into registry
// mutations and the envelopes that result from them. It performs no I/O.
type Router struct {
	reg *registry.Registry
	log *zap.Logger
}

func New(reg *registry.Registry, log *zap.Logger) *Router {
	return &Router{reg: reg, log: log}
}

func (rt *Router) Registry() *registry.Registry { return rt.reg }

func (rt *Router) ClientConnected(id string, conn registry.ConnID) []Envelope {
	rec := rt.reg.UpsertClient(id, conn)
	out := []Envelope{
		Unicast(conn, protocol.YourID(id)),
		ClientsUpdate(rt.reg),
	}
	if rec.AssignedAdmin != "" {
		rt.log.Info("client reconnected with existing admin",
			zap.String("client", id), zap.String("admin", rec.AssignedAdmin))
		out = append(out, Unicast(conn, protocol.AdminAssigned(rec.AssignedAdmin)))
	}
	return out
}

func (rt *Router) AdminConnected(id string, conn registry.ConnID) []Envelope {
	rt.reg.UpsertAdmin(id, conn)
	return []Envelope{
		AdminsUpdate(rt.reg),
		ClientsUpdate(rt.reg),
	}
}

// Assign applies an assign-admin request. An unknown client is logged and
// the request dropped with no envelopes.
func (rt *Router) Assign(req protocol.AssignAdmin) []Envelope {
	rec, err := rt.reg.Assign(req.ClientID, req.AdminID)
	if errors.Is(err, registry.ErrClientNotFound) {
		rt.log.Warn("assign to unknown client dropped",
			zap.String("client", req.ClientID), zap.String("admin", req.AdminID))
		return nil
	}

	rt.log.Info("admin assigned",
		zap.String("client", rec.ID), zap.String("admin", rec.AssignedAdmin), zap.String("conn", string(rec.Conn)))

	var out []Envelope
	if rec.Conn != "" {
		out = append(out, Unicast(rec.Conn, protocol.AdminAssigned(rec.AssignedAdmin)))
	}
	return append(out, ClientsUpdate(rt.reg))
}

// ClientLeft removes the client only while conn still owns its record.
func (rt *Router) ClientLeft(id string, conn registry.ConnID) []Envelope {
	rec, ok := rt.reg.Client(id)
	if !ok || rec.Conn != conn {
		return nil
	}
	rt.reg.RemoveClient(id)
	return []Envelope{ClientsUpdate(rt.reg)}
}

// AdminLeft removes the admin only while conn still owns its record.
func (rt *Router) AdminLeft(id string, conn registry.ConnID) []Envelope {
	rec, ok := rt.reg.Admin(id)
	if !ok || rec.Conn != conn {
		return nil
	}
	rt.reg.RemoveAdmin(id)
	return []Envelope{AdminsUpdate(rt.reg)}
}
