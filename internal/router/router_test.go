package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/video-routing-backend/internal/protocol"
	"github.com/DoyleJ11/video-routing-backend/internal/registry"
)

func newRouter() *Router {
	return New(registry.New(), zap.NewNop())
}

func events(envs []Envelope) []string {
	var out []string
	for _, e := range envs {
		out = append(out, e.Msg.Event)
	}
	return out
}

func TestClientConnected_FreshClient(t *testing.T) {
	rt := newRouter()
	envs := rt.ClientConnected("c1", "k1")

	require.Equal(t, []string{protocol.EvtYourID, protocol.EvtClientsUpdate}, events(envs))
	assert.Equal(t, registry.ConnID("k1"), envs[0].To)
	assert.Equal(t, "c1", envs[0].Msg.Data)
	assert.True(t, envs[1].Broadcast())
	assert.Equal(t, map[string]protocol.ClientView{"c1": {ID: "c1"}}, envs[1].Msg.Data)
}

func TestClientConnected_ReconnectPushesExistingAdmin(t *testing.T) {
	rt := newRouter()
	rt.ClientConnected("c1", "k1")
	rt.Assign(protocol.AssignAdmin{ClientID: "c1", AdminID: "a1"})

	envs := rt.ClientConnected("c1", "k2")
	require.Equal(t, []string{protocol.EvtYourID, protocol.EvtClientsUpdate, protocol.EvtAdminAssigned}, events(envs))
	assert.Equal(t, registry.ConnID("k2"), envs[2].To)
	assert.Equal(t, "a1", envs[2].Msg.Data)
}

func TestAdminConnected_BroadcastsAdminsThenClients(t *testing.T) {
	rt := newRouter()
	rt.ClientConnected("c1", "k1")

	envs := rt.AdminConnected("a1", "k2")
	require.Equal(t, []string{protocol.EvtAdminsUpdate, protocol.EvtClientsUpdate}, events(envs))
	assert.True(t, envs[0].Broadcast())
	assert.Equal(t, []protocol.AdminView{{AdminID: "a1"}}, envs[0].Msg.Data)
	assert.Contains(t, envs[1].Msg.Data, "c1")
}

func TestAssign_LastWriteWinsAndNotifiesEachTime(t *testing.T) {
	rt := newRouter()
	rt.ClientConnected("c1", "k1")

	first := rt.Assign(protocol.AssignAdmin{ClientID: "c1", AdminID: "a1"})
	second := rt.Assign(protocol.AssignAdmin{ClientID: "c1", AdminID: "a2"})

	for _, envs := range [][]Envelope{first, second} {
		require.Equal(t, []string{protocol.EvtAdminAssigned, protocol.EvtClientsUpdate}, events(envs))
		assert.Equal(t, registry.ConnID("k1"), envs[0].To)
	}
	assert.Equal(t, "a1", first[0].Msg.Data)
	assert.Equal(t, "a2", second[0].Msg.Data)

	rec, _ := rt.Registry().Client("c1")
	assert.Equal(t, "a2", rec.AssignedAdmin)
}

func TestAssign_UnknownClientProducesNothing(t *testing.T) {
	rt := newRouter()
	envs := rt.Assign(protocol.AssignAdmin{ClientID: "ghost", AdminID: "a1"})
	assert.Empty(t, envs)
}

func TestClientLeft_OnlyOwnerRemoves(t *testing.T) {
	rt := newRouter()
	rt.ClientConnected("c1", "k1")
	rt.ClientConnected("c1", "k2") // reconnect before k1's close arrives

	assert.Empty(t, rt.ClientLeft("c1", "k1"))
	_, ok := rt.Registry().Client("c1")
	assert.True(t, ok)

	envs := rt.ClientLeft("c1", "k2")
	require.Equal(t, []string{protocol.EvtClientsUpdate}, events(envs))
	assert.Empty(t, envs[0].Msg.Data)

	assert.Empty(t, rt.ClientLeft("c1", "k2"))
}

func TestAdminLeft_OnlyOwnerRemoves(t *testing.T) {
	rt := newRouter()
	rt.AdminConnected("a1", "k1")
	rt.AdminConnected("w", "kw")
	rt.AdminConnected("a1", "k2") // reconnect before k1's close arrives

	assert.Empty(t, rt.AdminLeft("a1", "k1"))
	rec, ok := rt.Registry().Admin("a1")
	require.True(t, ok)
	assert.Equal(t, registry.ConnID("k2"), rec.Conn)

	envs := rt.AdminLeft("a1", "k2")
	require.Equal(t, []string{protocol.EvtAdminsUpdate}, events(envs))
	assert.Equal(t, []protocol.AdminView{{AdminID: "w"}}, envs[0].Msg.Data)

	assert.Empty(t, rt.AdminLeft("a1", "k2"))
}

func TestAdminLeft_KeepsStaleAssignments(t *testing.T) {
	rt := newRouter()
	rt.ClientConnected("c1", "k1")
	rt.AdminConnected("a1", "k2")
	rt.Assign(protocol.AssignAdmin{ClientID: "c1", AdminID: "a1"})

	envs := rt.AdminLeft("a1", "k2")
	require.Equal(t, []string{protocol.EvtAdminsUpdate}, events(envs))
	assert.Equal(t, []protocol.AdminView{}, envs[0].Msg.Data)

	rec, _ := rt.Registry().Client("c1")
	assert.Equal(t, "a1", rec.AssignedAdmin)
}

// Every clients-update carries exactly the connected ids with their last
// assignment, across an arbitrary connect/disconnect sequence.
func TestClientsUpdate_TracksPresence(t *testing.T) {
	rt := newRouter()
	steps := []struct {
		op   string
		id   string
		conn registry.ConnID
		want map[string]protocol.ClientView
	}{
		{"connect", "c1", "k1", map[string]protocol.ClientView{"c1": {ID: "c1"}}},
		{"connect", "c2", "k2", map[string]protocol.ClientView{"c1": {ID: "c1"}, "c2": {ID: "c2"}}},
		{"assign", "c2", "a9", map[string]protocol.ClientView{"c1": {ID: "c1"}, "c2": {ID: "c2", AssignedAdmin: "a9"}}},
		{"leave", "c1", "k1", map[string]protocol.ClientView{"c2": {ID: "c2", AssignedAdmin: "a9"}}},
		{"connect", "c1", "k3", map[string]protocol.ClientView{"c1": {ID: "c1"}, "c2": {ID: "c2", AssignedAdmin: "a9"}}},
		{"leave", "c2", "k2", map[string]protocol.ClientView{"c1": {ID: "c1"}}},
	}

	for _, st := range steps {
		var envs []Envelope
		switch st.op {
		case "connect":
			envs = rt.ClientConnected(st.id, st.conn)
		case "assign":
			envs = rt.Assign(protocol.AssignAdmin{ClientID: st.id, AdminID: string(st.conn)})
		case "leave":
			envs = rt.ClientLeft(st.id, st.conn)
		}

		var got any
		for _, e := range envs {
			if e.Msg.Event == protocol.EvtClientsUpdate {
				got = e.Msg.Data
			}
		}
		require.Equal(t, st.want, got, "after %s %s", st.op, st.id)
	}
}
