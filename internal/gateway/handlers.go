package gateway

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/video-routing-backend/internal/journal"
	"github.com/DoyleJ11/video-routing-backend/internal/metrics"
	"github.com/DoyleJ11/video-routing-backend/internal/protocol"
	"github.com/DoyleJ11/video-routing-backend/internal/registry"
	"github.com/DoyleJ11/video-routing-backend/internal/router"
)

func (g *Gateway) open(msg Open) {
	if _, dup := g.conns[msg.Conn]; dup {
		g.log.Warn("duplicate open ignored", zap.String("conn", string(msg.Conn)))
		return
	}
	if msg.Outbox == nil {
		g.log.Warn("open without outbox ignored", zap.String("conn", string(msg.Conn)))
		return
	}
	g.conns[msg.Conn] = msg.Outbox
	defer g.updatePresence()

	hs := msg.Handshake
	if err := hs.Validate(); err != nil {
		g.metrics.RejectedHandshake.Inc()
		g.log.Warn("unrecognized connection left unclassified",
			zap.String("conn", string(msg.Conn)),
			zap.String("role", string(hs.Role)),
			zap.String("uuid", hs.UUID),
			zap.String("adminId", hs.AdminID),
			zap.Error(err))
		return
	}

	id := Identity{Role: hs.Role, ID: hs.Identity()}
	g.identities[msg.Conn] = id
	g.log.Info("connection classified",
		zap.String("conn", string(msg.Conn)), zap.String("role", string(id.Role)), zap.String("id", id.ID))

	var envs []router.Envelope
	switch id.Role {
	case protocol.RoleClient:
		envs = g.router.ClientConnected(id.ID, msg.Conn)
		g.journal.Record(journal.Entry{Kind: journal.KindClientConnected, Subject: id.ID, Conn: string(msg.Conn)})
	case protocol.RoleAdmin:
		envs = g.router.AdminConnected(id.ID, msg.Conn)
		g.journal.Record(journal.Entry{Kind: journal.KindAdminConnected, Subject: id.ID, Conn: string(msg.Conn)})
	}
	g.deliver(envs)
}

func (g *Gateway) inbound(msg Inbound) {
	id, ok := g.identities[msg.Conn]
	if !ok {
		g.log.Debug("request from unclassified connection ignored", zap.String("conn", string(msg.Conn)))
		return
	}

	switch req := msg.Req.(type) {
	case protocol.AssignAdmin:
		if id.Role != protocol.RoleAdmin {
			g.log.Warn("assign-admin from non-admin connection dropped",
				zap.String("conn", string(msg.Conn)), zap.String("id", id.ID))
			return
		}
		g.log.Info("assign requested",
			zap.String("by", id.ID), zap.String("client", req.ClientID), zap.String("admin", req.AdminID))

		envs := g.router.Assign(req)
		if len(envs) == 0 {
			g.metrics.Assignments.WithLabelValues(metrics.AssignDropped).Inc()
			return
		}
		g.metrics.Assignments.WithLabelValues(metrics.AssignApplied).Inc()
		g.journal.Record(journal.Entry{Kind: journal.KindAssigned, Subject: req.ClientID, Admin: req.AdminID, Conn: string(msg.Conn)})
		g.deliver(envs)

	default:
		g.log.Warn("unsupported request dropped", zap.String("conn", string(msg.Conn)))
	}
}

// closeConn runs the cleanup for one connection. A second call for the same
// connection finds nothing in either index and does nothing.
func (g *Gateway) closeConn(conn registry.ConnID) {
	if out, ok := g.conns[conn]; ok {
		close(out)
		delete(g.conns, conn)
	}
	defer g.updatePresence()

	id, ok := g.identities[conn]
	if !ok {
		return
	}
	delete(g.identities, conn)

	var envs []router.Envelope
	switch id.Role {
	case protocol.RoleClient:
		envs = g.router.ClientLeft(id.ID, conn)
		if len(envs) > 0 {
			g.log.Info("client offline", zap.String("client", id.ID), zap.String("conn", string(conn)))
			g.journal.Record(journal.Entry{Kind: journal.KindClientLeft, Subject: id.ID, Conn: string(conn)})
		}
	case protocol.RoleAdmin:
		envs = g.router.AdminLeft(id.ID, conn)
		if len(envs) > 0 {
			g.log.Info("admin offline", zap.String("admin", id.ID), zap.String("conn", string(conn)))
			g.journal.Record(journal.Entry{Kind: journal.KindAdminLeft, Subject: id.ID, Conn: string(conn)})
		}
	}
	if len(envs) == 0 {
		g.log.Debug("stale close, identity owned by a newer connection",
			zap.String("conn", string(conn)), zap.String("id", id.ID))
	}
	g.deliver(envs)
}

func (g *Gateway) deliver(envs []router.Envelope) {
	for _, env := range envs {
		g.metrics.Outbound.WithLabelValues(env.Msg.Event).Inc()

		if env.Broadcast() {
			for conn, out := range g.conns {
				g.offer(conn, out, env.Msg)
			}
			continue
		}

		out, ok := g.conns[env.To]
		if !ok {
			g.metrics.DroppedSends.WithLabelValues(metrics.DropNotLive).Inc()
			g.log.Warn("unicast target not live, skipped",
				zap.String("conn", string(env.To)), zap.String("event", env.Msg.Event))
			continue
		}
		g.offer(env.To, out, env.Msg)
	}
}

// offer never blocks. A full outbox marks a slow consumer: it is closed and
// forgotten here, and its transport's Close finishes the identity cleanup.
func (g *Gateway) offer(conn registry.ConnID, out chan protocol.ServerMessage, msg protocol.ServerMessage) {
	select {
	case out <- msg:
	default:
		g.metrics.DroppedSends.WithLabelValues(metrics.DropSlowConsumer).Inc()
		g.log.Warn("slow consumer dropped", zap.String("conn", string(conn)), zap.String("event", msg.Event))
		close(out)
		delete(g.conns, conn)
	}
}
