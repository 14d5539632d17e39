package sfu

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

func newTestManager(workers int) *Manager {
	return NewManager(Config{Workers: workers})
}

func TestRouterRoundRobinPlacement(t *testing.T) {
	m := newTestManager(3)

	var workers []WorkerID
	for _, room := range []domain.RoomID{"r1", "r2", "r3", "r4", "r5", "r6"} {
		router, err := m.CreateRouter(room)
		require.NoError(t, err)
		workers = append(workers, router.WorkerID)
	}

	assert.Equal(t, workers[0], workers[3])
	assert.Equal(t, workers[1], workers[4])
	assert.Equal(t, workers[2], workers[5])
	assert.NotEqual(t, workers[0], workers[1])
	assert.NotEqual(t, workers[1], workers[2])
}

func TestCreateRouterIdempotentPerRoom(t *testing.T) {
	m := newTestManager(2)

	a, err := m.CreateRouter("room")
	require.NoError(t, err)
	b, err := m.CreateRouter("room")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, m.Stats().Routers)
}

func TestTransportLifecycle(t *testing.T) {
	m := newTestManager(1)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)

	tr, err := m.CreateTransport(router.ID, "alice", DirectionSend)
	require.NoError(t, err)
	assert.Equal(t, TransportStateNew, tr.State())
	assert.True(t, tr.ICEParameters.ICELite)
	assert.NotEmpty(t, tr.ICEParameters.UsernameFragment)
	assert.NotEmpty(t, tr.ICEParameters.Password)
	assert.Len(t, tr.ICECandidates, 1)

	dtls := json.RawMessage(`{"role":1,"fingerprints":[]}`)
	require.NoError(t, m.ConnectTransport(tr.ID, dtls))
	assert.Equal(t, TransportStateConnected, tr.State())

	// connecting twice is a protocol mistake, not a crash
	err = m.ConnectTransport(tr.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidMessage)

	err = m.ConnectTransport("transport-missing", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateTransportRejectsBadDirection(t *testing.T) {
	m := newTestManager(1)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)

	_, err = m.CreateTransport(router.ID, "alice", "sideways")
	assert.ErrorIs(t, err, core.ErrInvalidMessage)
}

func TestConsumerForMissingProducer(t *testing.T) {
	m := newTestManager(1)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)
	recv, err := m.CreateTransport(router.ID, "bob", DirectionRecv)
	require.NoError(t, err)

	before := m.Stats()
	_, err = m.CreateConsumer(recv.ID, "producer-nope", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, before, m.Stats())
}

func TestProduceConsumeAndDirectionChecks(t *testing.T) {
	m := newTestManager(1)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)

	send, err := m.CreateTransport(router.ID, "alice", DirectionSend)
	require.NoError(t, err)
	recv, err := m.CreateTransport(router.ID, "bob", DirectionRecv)
	require.NoError(t, err)

	rtp := json.RawMessage(`{"codecs":[]}`)
	producer, err := m.CreateProducer(send.ID, KindAudio, rtp)
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantID("alice"), producer.ParticipantID)

	// producing on a recv transport is rejected
	_, err = m.CreateProducer(recv.ID, KindAudio, rtp)
	assert.ErrorIs(t, err, core.ErrInvalidMessage)

	consumer, err := m.CreateConsumer(recv.ID, producer.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, producer.ID, consumer.ProducerID)
	assert.Equal(t, KindAudio, consumer.Kind)
	assert.JSONEq(t, string(rtp), string(consumer.RTPParameters))

	// consuming on a send transport is rejected
	_, err = m.CreateConsumer(send.ID, producer.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidMessage)
}

func TestPauseResume(t *testing.T) {
	m := newTestManager(1)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)
	send, err := m.CreateTransport(router.ID, "alice", DirectionSend)
	require.NoError(t, err)
	recv, err := m.CreateTransport(router.ID, "bob", DirectionRecv)
	require.NoError(t, err)
	producer, err := m.CreateProducer(send.ID, KindAudio, nil)
	require.NoError(t, err)
	consumer, err := m.CreateConsumer(recv.ID, producer.ID, nil)
	require.NoError(t, err)

	require.NoError(t, m.PauseProducer(producer.ID))
	assert.True(t, producer.Paused)
	require.NoError(t, m.ResumeProducer(producer.ID))
	assert.False(t, producer.Paused)

	require.NoError(t, m.PauseConsumer(consumer.ID))
	assert.True(t, consumer.Paused)
	require.NoError(t, m.ResumeConsumer(consumer.ID))
	assert.False(t, consumer.Paused)

	assert.ErrorIs(t, m.PauseProducer("producer-nope"), core.ErrNotFound)
	assert.ErrorIs(t, m.PauseConsumer("consumer-nope"), core.ErrNotFound)
}

func TestCloseProducerCascadesToConsumers(t *testing.T) {
	m := newTestManager(1)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)
	send, err := m.CreateTransport(router.ID, "alice", DirectionSend)
	require.NoError(t, err)
	recv, err := m.CreateTransport(router.ID, "bob", DirectionRecv)
	require.NoError(t, err)
	producer, err := m.CreateProducer(send.ID, KindAudio, nil)
	require.NoError(t, err)
	_, err = m.CreateConsumer(recv.ID, producer.ID, nil)
	require.NoError(t, err)

	require.NoError(t, m.CloseProducer(producer.ID))

	s := m.Stats()
	assert.Equal(t, 0, s.Producers)
	assert.Equal(t, 0, s.Consumers)
	assert.Equal(t, 2, s.Transports)
}

func TestCloseRouterCascade(t *testing.T) {
	m := newTestManager(2)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)
	send, err := m.CreateTransport(router.ID, "alice", DirectionSend)
	require.NoError(t, err)
	recv, err := m.CreateTransport(router.ID, "bob", DirectionRecv)
	require.NoError(t, err)
	producer, err := m.CreateProducer(send.ID, KindAudio, nil)
	require.NoError(t, err)
	_, err = m.CreateConsumer(recv.ID, producer.ID, nil)
	require.NoError(t, err)

	require.NoError(t, m.CloseRouter(router.ID))

	s := m.Stats()
	assert.Equal(t, 0, s.Routers)
	assert.Equal(t, 0, s.Transports)
	assert.Equal(t, 0, s.Producers)
	assert.Equal(t, 0, s.Consumers)

	_, ok := m.RouterForRoom("room")
	assert.False(t, ok)

	// a fresh join can rebuild the room from scratch
	_, err = m.CreateRouter("room")
	assert.NoError(t, err)
}

func TestCloseParticipant(t *testing.T) {
	m := newTestManager(1)
	router, err := m.CreateRouter("room")
	require.NoError(t, err)

	aliceSend, err := m.CreateTransport(router.ID, "alice", DirectionSend)
	require.NoError(t, err)
	_, err = m.CreateTransport(router.ID, "alice", DirectionRecv)
	require.NoError(t, err)
	bobSend, err := m.CreateTransport(router.ID, "bob", DirectionSend)
	require.NoError(t, err)
	bobRecv, err := m.CreateTransport(router.ID, "bob", DirectionRecv)
	require.NoError(t, err)

	aliceProducer, err := m.CreateProducer(aliceSend.ID, KindAudio, nil)
	require.NoError(t, err)
	bobProducer, err := m.CreateProducer(bobSend.ID, KindAudio, nil)
	require.NoError(t, err)
	// bob listens to alice; that consumer dies with alice's producer
	_, err = m.CreateConsumer(bobRecv.ID, aliceProducer.ID, nil)
	require.NoError(t, err)

	m.CloseParticipant("room", "alice")

	s := m.Stats()
	assert.Equal(t, 2, s.Transports)
	assert.Equal(t, 1, s.Producers)
	assert.Equal(t, 0, s.Consumers)

	// bob's side is untouched
	assert.False(t, bobProducer.Paused)
	require.NoError(t, m.PauseProducer(bobProducer.ID))
}
