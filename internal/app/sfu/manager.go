package sfu

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

type Config struct {
	Workers  int
	ListenIP string
	RTCPort  uint16
}

// Manager owns the whole resource arena. One mutex serializes every
// graph mutation, which subsumes the single-writer-per-router rule:
// concurrent participant goroutines touching the same room's graph
// are funneled through it.
type Manager struct {
	cfg Config

	mu         sync.RWMutex
	workers    []*Worker
	nextWorker int
	routers    map[RouterID]*Router
	byRoom     map[domain.RoomID]RouterID
	transports map[TransportID]*Transport
	producers  map[ProducerID]*Producer
	consumers  map[ConsumerID]*Consumer
}

func NewManager(cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ListenIP == "" {
		cfg.ListenIP = "127.0.0.1"
	}
	if cfg.RTCPort == 0 {
		cfg.RTCPort = 40000
	}
	m := &Manager{
		cfg:        cfg,
		routers:    make(map[RouterID]*Router),
		byRoom:     make(map[domain.RoomID]RouterID),
		transports: make(map[TransportID]*Transport),
		producers:  make(map[ProducerID]*Producer),
		consumers:  make(map[ConsumerID]*Consumer),
	}
	for i := 0; i < cfg.Workers; i++ {
		m.workers = append(m.workers, &Worker{
			ID:        WorkerID(fmt.Sprintf("worker-%d", i)),
			CreatedAt: time.Now(),
			Ready:     true,
			routers:   make(map[RouterID]struct{}),
		})
	}
	log.Info().Str("module", "sfu").Int("workers", cfg.Workers).Msg("worker pool initialized")
	return m
}

// CreateRouter returns the room's router, creating it on first call.
// Placement is plain round-robin over the worker pool; it carries no
// load signal on purpose.
func (m *Manager) CreateRouter(roomID domain.RoomID) (*Router, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byRoom[roomID]; ok {
		return m.routers[id], nil
	}

	worker := m.workers[m.nextWorker%len(m.workers)]
	m.nextWorker++

	router := &Router{
		ID:         RouterID("router-" + uuid.NewString()),
		WorkerID:   worker.ID,
		RoomID:     roomID,
		CreatedAt:  time.Now(),
		transports: make(map[TransportID]struct{}),
		producers:  make(map[ProducerID]struct{}),
		consumers:  make(map[ConsumerID]struct{}),
	}
	worker.routers[router.ID] = struct{}{}
	m.routers[router.ID] = router
	m.byRoom[roomID] = router.ID

	log.Info().
		Str("module", "sfu").
		Str("router", string(router.ID)).
		Str("room", string(roomID)).
		Str("worker", string(worker.ID)).
		Msg("router created")
	return router, nil
}

// RouterForRoom looks up the room's router without creating one.
func (m *Manager) RouterForRoom(roomID domain.RoomID) (*Router, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRoom[roomID]
	if !ok {
		return nil, false
	}
	return m.routers[id], true
}

// CreateTransport mints a transport with fresh ICE credentials on the
// given router.
func (m *Manager) CreateTransport(routerID RouterID, participantID domain.ParticipantID, direction Direction) (*Transport, error) {
	if direction != DirectionSend && direction != DirectionRecv {
		return nil, fmt.Errorf("%w: transport direction %q", core.ErrInvalidMessage, direction)
	}
	ice, err := mintICEParameters()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	router, ok := m.routers[routerID]
	if !ok {
		return nil, fmt.Errorf("%w: router %s", core.ErrNotFound, routerID)
	}

	t := &Transport{
		ID:             TransportID("transport-" + uuid.NewString()),
		RouterID:       routerID,
		ParticipantID:  participantID,
		Direction:      direction,
		ICEParameters:  ice,
		ICECandidates:  mintICECandidates(m.cfg.ListenIP, m.cfg.RTCPort),
		DTLSParameters: mintDTLSParameters(),
		state:          newTransportFSM(),
	}
	router.transports[t.ID] = struct{}{}
	m.transports[t.ID] = t

	log.Info().
		Str("module", "sfu").
		Str("transport", string(t.ID)).
		Str("participant", string(participantID)).
		Str("direction", string(direction)).
		Msg("transport created")
	return t, nil
}

// ConnectTransport applies the client's DTLS parameters and walks the
// state machine to connected. The handshake itself is not performed in
// this simplified surface; the transition records intent.
func (m *Manager) ConnectTransport(id TransportID, remoteDTLS json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transports[id]
	if !ok {
		return fmt.Errorf("%w: transport %s", core.ErrNotFound, id)
	}
	if len(remoteDTLS) > 0 {
		if err := json.Unmarshal(remoteDTLS, &t.RemoteDTLS); err != nil {
			return fmt.Errorf("%w: dtls parameters: %v", core.ErrInvalidMessage, err)
		}
	}
	ctx := context.Background()
	if err := t.state.Event(ctx, eventConnect); err != nil {
		return fmt.Errorf("%w: transport %s connect from %s: %v", core.ErrInvalidMessage, id, t.State(), err)
	}
	if err := t.state.Event(ctx, eventEstablish); err != nil {
		_ = t.state.Event(ctx, eventFail)
		return fmt.Errorf("%w: transport %s establish: %v", core.ErrInvalidMessage, id, err)
	}
	log.Info().Str("module", "sfu").Str("transport", string(id)).Msg("transport connected")
	return nil
}

// CreateProducer registers a new outgoing stream on a send transport.
func (m *Manager) CreateProducer(transportID TransportID, kind MediaKind, rtpParameters json.RawMessage) (*Producer, error) {
	if kind != KindAudio && kind != KindVideo {
		return nil, fmt.Errorf("%w: media kind %q", core.ErrInvalidMessage, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transports[transportID]
	if !ok {
		return nil, fmt.Errorf("%w: transport %s", core.ErrNotFound, transportID)
	}
	if t.Direction != DirectionSend {
		return nil, fmt.Errorf("%w: produce on %s transport %s", core.ErrInvalidMessage, t.Direction, transportID)
	}
	router := m.routers[t.RouterID]

	p := &Producer{
		ID:            ProducerID("producer-" + uuid.NewString()),
		TransportID:   transportID,
		RouterID:      t.RouterID,
		ParticipantID: t.ParticipantID,
		Kind:          kind,
		RTPParameters: rtpParameters,
	}
	router.producers[p.ID] = struct{}{}
	m.producers[p.ID] = p

	log.Info().
		Str("module", "sfu").
		Str("producer", string(p.ID)).
		Str("participant", string(t.ParticipantID)).
		Str("kind", string(kind)).
		Msg("producer created")
	return p, nil
}

// CreateConsumer subscribes a recv transport to an existing producer.
// A missing producer is a NotFound failure that leaves the arena
// untouched.
func (m *Manager) CreateConsumer(transportID TransportID, producerID ProducerID, rtpCapabilities json.RawMessage) (*Consumer, error) {
	_ = rtpCapabilities // capability matching is the client's side of the contract

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transports[transportID]
	if !ok {
		return nil, fmt.Errorf("%w: transport %s", core.ErrNotFound, transportID)
	}
	if t.Direction != DirectionRecv {
		return nil, fmt.Errorf("%w: consume on %s transport %s", core.ErrInvalidMessage, t.Direction, transportID)
	}
	producer, ok := m.producers[producerID]
	if !ok {
		return nil, fmt.Errorf("%w: producer %s", core.ErrNotFound, producerID)
	}
	router := m.routers[t.RouterID]

	c := &Consumer{
		ID:            ConsumerID("consumer-" + uuid.NewString()),
		TransportID:   transportID,
		RouterID:      t.RouterID,
		ProducerID:    producerID,
		ParticipantID: t.ParticipantID,
		Kind:          producer.Kind,
		RTPParameters: producer.RTPParameters,
	}
	router.consumers[c.ID] = struct{}{}
	m.consumers[c.ID] = c

	log.Info().
		Str("module", "sfu").
		Str("consumer", string(c.ID)).
		Str("producer", string(producerID)).
		Str("participant", string(t.ParticipantID)).
		Msg("consumer created")
	return c, nil
}

// PauseProducer / ResumeProducer flip the producer's paused flag.
func (m *Manager) PauseProducer(id ProducerID) error  { return m.setProducerPaused(id, true) }
func (m *Manager) ResumeProducer(id ProducerID) error { return m.setProducerPaused(id, false) }

func (m *Manager) setProducerPaused(id ProducerID, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.producers[id]
	if !ok {
		return fmt.Errorf("%w: producer %s", core.ErrNotFound, id)
	}
	p.Paused = paused
	return nil
}

// PauseConsumer / ResumeConsumer flip the consumer's paused flag.
func (m *Manager) PauseConsumer(id ConsumerID) error  { return m.setConsumerPaused(id, true) }
func (m *Manager) ResumeConsumer(id ConsumerID) error { return m.setConsumerPaused(id, false) }

func (m *Manager) setConsumerPaused(id ConsumerID, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consumers[id]
	if !ok {
		return fmt.Errorf("%w: consumer %s", core.ErrNotFound, id)
	}
	c.Paused = paused
	return nil
}

// CloseConsumer removes one consumer.
func (m *Manager) CloseConsumer(id ConsumerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.consumers[id]; !ok {
		return fmt.Errorf("%w: consumer %s", core.ErrNotFound, id)
	}
	m.removeConsumer(id)
	return nil
}

// CloseProducer removes a producer and every consumer referencing it,
// so no consumer outlives its producer.
func (m *Manager) CloseProducer(id ProducerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.producers[id]; !ok {
		return fmt.Errorf("%w: producer %s", core.ErrNotFound, id)
	}
	m.removeProducer(id)
	return nil
}

// CloseTransport removes a transport and its producers/consumers.
func (m *Manager) CloseTransport(id TransportID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transports[id]; !ok {
		return fmt.Errorf("%w: transport %s", core.ErrNotFound, id)
	}
	m.removeTransport(id)
	return nil
}

// CloseRouter cascades: every transport (and thereby producer and
// consumer) goes first, then the router leaves its worker.
func (m *Manager) CloseRouter(id RouterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	router, ok := m.routers[id]
	if !ok {
		return fmt.Errorf("%w: router %s", core.ErrNotFound, id)
	}
	m.removeRouter(router)
	return nil
}

// CloseRouterForRoom closes the room's router if one exists.
func (m *Manager) CloseRouterForRoom(roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRoom[roomID]
	if !ok {
		return
	}
	m.removeRouter(m.routers[id])
}

// CloseParticipant removes every transport a participant owns on the
// room's router, cascading to their producers and consumers.
func (m *Manager) CloseParticipant(roomID domain.RoomID, participantID domain.ParticipantID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	routerID, ok := m.byRoom[roomID]
	if !ok {
		return
	}
	router := m.routers[routerID]
	for tid := range router.transports {
		if m.transports[tid].ParticipantID == participantID {
			m.removeTransport(tid)
		}
	}
}

// removal helpers; callers hold m.mu.

func (m *Manager) removeConsumer(id ConsumerID) {
	c := m.consumers[id]
	delete(m.routers[c.RouterID].consumers, id)
	delete(m.consumers, id)
	log.Info().Str("module", "sfu").Str("consumer", string(id)).Msg("consumer closed")
}

func (m *Manager) removeProducer(id ProducerID) {
	p := m.producers[id]
	router := m.routers[p.RouterID]
	for cid := range router.consumers {
		if m.consumers[cid].ProducerID == id {
			m.removeConsumer(cid)
		}
	}
	delete(router.producers, id)
	delete(m.producers, id)
	log.Info().Str("module", "sfu").Str("producer", string(id)).Msg("producer closed")
}

func (m *Manager) removeTransport(id TransportID) {
	t := m.transports[id]
	router := m.routers[t.RouterID]
	for pid := range router.producers {
		if m.producers[pid].TransportID == id {
			m.removeProducer(pid)
		}
	}
	for cid := range router.consumers {
		if m.consumers[cid].TransportID == id {
			m.removeConsumer(cid)
		}
	}
	_ = t.state.Event(context.Background(), eventClose)
	delete(router.transports, id)
	delete(m.transports, id)
	log.Info().Str("module", "sfu").Str("transport", string(id)).Msg("transport closed")
}

func (m *Manager) removeRouter(router *Router) {
	for tid := range router.transports {
		m.removeTransport(tid)
	}
	for _, w := range m.workers {
		delete(w.routers, router.ID)
	}
	delete(m.byRoom, router.RoomID)
	delete(m.routers, router.ID)
	log.Info().
		Str("module", "sfu").
		Str("router", string(router.ID)).
		Str("room", string(router.RoomID)).
		Msg("router closed")
}

type WorkerStats struct {
	Routers int  `json:"routers"`
	Ready   bool `json:"ready"`
}

type Stats struct {
	Workers    int                    `json:"workers"`
	Routers    int                    `json:"routers"`
	Transports int                    `json:"transports"`
	Producers  int                    `json:"producers"`
	Consumers  int                    `json:"consumers"`
	PerWorker  map[string]WorkerStats `json:"workerDetails"`
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		Workers:    len(m.workers),
		Routers:    len(m.routers),
		Transports: len(m.transports),
		Producers:  len(m.producers),
		Consumers:  len(m.consumers),
		PerWorker:  make(map[string]WorkerStats, len(m.workers)),
	}
	for _, w := range m.workers {
		s.PerWorker[string(w.ID)] = WorkerStats{Routers: len(w.routers), Ready: w.Ready}
	}
	return s
}

// Ready reports whether every worker in the pool is up.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.workers {
		if !w.Ready {
			return false
		}
	}
	return true
}
