package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Server -> peer
const (
	EvtYourID        = "your-id"
	EvtAdminAssigned = "admin-assigned"
	EvtClientsUpdate = "clients-update"
	EvtAdminsUpdate  = "admins-update"
)

// Peer -> server
const (
	EvtAssignAdmin = "assign-admin"
)

var ErrBadFrame = errors.New("bad frame")
var ErrUnknownEvent = errors.New("unknown event")

// ServerMessage is one outbound frame. Data is always encoded, so a nil
// Data goes out as null.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ClientView struct {
	ID            string `json:"id"`
	AssignedAdmin string `json:"assignedAdmin,omitempty"`
}

type AdminView struct {
	AdminID string `json:"adminId"`
}

type Request interface{ isRequest() }

type AssignAdmin struct {
	ClientID string `json:"clientId"`
	AdminID  string `json:"adminId"`
}

func (AssignAdmin) isRequest() {}

// DecodeRequest parses one inbound frame into a typed request.
func DecodeRequest(b []byte) (Request, error) {
	var cm ClientMessage
	if err := json.Unmarshal(b, &cm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	switch cm.Event {
	case EvtAssignAdmin:
		var req AssignAdmin
		if len(cm.Data) == 0 {
			return nil, fmt.Errorf("%w: %s without data", ErrBadFrame, cm.Event)
		}
		if err := json.Unmarshal(cm.Data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, cm.Event)
	}
}

func YourID(id string) ServerMessage {
	return ServerMessage{Event: EvtYourID, Data: id}
}

// AdminAssigned builds the private notification. An empty admin id is
// sent as null, meaning unassigned.
func AdminAssigned(adminID string) ServerMessage {
	if adminID == "" {
		return ServerMessage{Event: EvtAdminAssigned}
	}
	return ServerMessage{Event: EvtAdminAssigned, Data: adminID}
}

func ClientsUpdate(clients map[string]ClientView) ServerMessage {
	return ServerMessage{Event: EvtClientsUpdate, Data: clients}
}

func AdminsUpdate(admins []AdminView) ServerMessage {
	if admins == nil {
		admins = []AdminView{}
	}
	return ServerMessage{Event: EvtAdminsUpdate, Data: admins}
}
