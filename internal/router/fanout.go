package router

import (
	"github.com/DoyleJ11/video-routing-backend/internal/protocol"
	"github.com/DoyleJ11/video-routing-backend/internal/registry"
)

// Envelope pairs an outbound message with its audience. An empty To
// means every open connection.
type Envelope struct {
	To  registry.ConnID
	Msg protocol.ServerMessage
}

func (e Envelope) Broadcast() bool { return e.To == "" }

func Broadcast(msg protocol.ServerMessage) Envelope {
	return Envelope{Msg: msg}
}

func Unicast(to registry.ConnID, msg protocol.ServerMessage) Envelope {
	return Envelope{To: to, Msg: msg}
}

func ClientViews(reg *registry.Registry) map[string]protocol.ClientView {
	snap := reg.SnapshotClients()
	out := make(map[string]protocol.ClientView, len(snap))
	for id, rec := range snap {
		out[id] = protocol.ClientView{ID: rec.ID, AssignedAdmin: rec.AssignedAdmin}
	}
	return out
}

func AdminViews(reg *registry.Registry) []protocol.AdminView {
	snap := reg.SnapshotAdmins()
	out := make([]protocol.AdminView, 0, len(snap))
	for _, rec := range snap {
		out = append(out, protocol.AdminView{AdminID: rec.ID})
	}
	return out
}

func ClientsUpdate(reg *registry.Registry) Envelope {
	return Broadcast(protocol.ClientsUpdate(ClientViews(reg)))
}

func AdminsUpdate(reg *registry.Registry) Envelope {
	return Broadcast(protocol.AdminsUpdate(AdminViews(reg)))
}
