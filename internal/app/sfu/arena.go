// Package sfu owns the WebRTC resource graph: a fixed pool of Workers
// hosting per-room Routers, which in turn own the Transports, Producers
// and Consumers of their participants. Entities live in one arena keyed
// by generated ids with explicit parent→children index sets, so a
// cascade close is an index walk instead of a map scan.
package sfu

import (
	"encoding/json"
	"time"

	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"

	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

type (
	WorkerID    string
	RouterID    string
	TransportID string
	ProducerID  string
	ConsumerID  string
)

type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Transport lifecycle states and the events that move between them.
const (
	TransportStateNew        = "new"
	TransportStateConnecting = "connecting"
	TransportStateConnected  = "connected"
	TransportStateFailed     = "failed"
	TransportStateClosed     = "closed"

	eventConnect   = "connect"
	eventEstablish = "establish"
	eventFail      = "fail"
	eventClose     = "close"
)

// Worker is a fixed pool member. It does no media work in this
// simplified surface; it exists to anchor router placement.
type Worker struct {
	ID        WorkerID
	CreatedAt time.Time
	Ready     bool

	routers map[RouterID]struct{}
}

// Router is the per-room hub. Child ids are index sets; the entities
// themselves live in the manager's arena maps.
type Router struct {
	ID        RouterID
	WorkerID  WorkerID
	RoomID    domain.RoomID
	CreatedAt time.Time

	transports map[TransportID]struct{}
	producers  map[ProducerID]struct{}
	consumers  map[ConsumerID]struct{}
}

// Transport carries one participant's media in one direction. The ICE
// and DTLS parameters are minted at creation and handed to the client
// in transportCreated.
type Transport struct {
	ID            TransportID
	RouterID      RouterID
	ParticipantID domain.ParticipantID
	Direction     Direction

	ICEParameters  webrtc.ICEParameters
	ICECandidates  []webrtc.ICECandidate
	DTLSParameters webrtc.DTLSParameters

	// RemoteDTLS is what the client sent in connectWebRtcTransport.
	RemoteDTLS webrtc.DTLSParameters

	state *fsm.FSM
}

// State returns the transport's current lifecycle state.
func (t *Transport) State() string { return t.state.Current() }

func newTransportFSM() *fsm.FSM {
	return fsm.NewFSM(
		TransportStateNew,
		fsm.Events{
			{Name: eventConnect, Src: []string{TransportStateNew}, Dst: TransportStateConnecting},
			{Name: eventEstablish, Src: []string{TransportStateConnecting}, Dst: TransportStateConnected},
			{Name: eventFail, Src: []string{TransportStateNew, TransportStateConnecting, TransportStateConnected}, Dst: TransportStateFailed},
			{Name: eventClose, Src: []string{TransportStateNew, TransportStateConnecting, TransportStateConnected, TransportStateFailed}, Dst: TransportStateClosed},
		},
		fsm.Callbacks{},
	)
}

// Producer is one participant's outgoing (kind) stream on a send
// transport.
type Producer struct {
	ID            ProducerID
	TransportID   TransportID
	RouterID      RouterID
	ParticipantID domain.ParticipantID
	Kind          MediaKind
	RTPParameters json.RawMessage
	Paused        bool
}

// Consumer receives one Producer's stream on a recv transport. It
// references exactly one producer and is cascade-closed with it.
type Consumer struct {
	ID            ConsumerID
	TransportID   TransportID
	RouterID      RouterID
	ProducerID    ProducerID
	ParticipantID domain.ParticipantID
	Kind          MediaKind
	RTPParameters json.RawMessage
	Paused        bool
}
