// Package signal terminates the per-participant WebSocket signaling
// sessions: the mediasoup-style message contract, room membership, and
// fan-out of translated audio back to listeners. Only the socket's own
// I/O failure ends a session; protocol mistakes are answered with an
// error message on the open connection.
package signal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/app/sfu"
	"github.com/jeferson-byte-ai/Orbis/internal/audio"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
	"github.com/jeferson-byte-ai/Orbis/internal/metrics"
)

type Config struct {
	MaxRooms          int
	MaxParticipants   int
	ReadLimit         int64
	SendBuffer        int
	PingPeriod        time.Duration
	DefaultSampleRate int
}

// AudioIngestor is the orchestrator surface the signaling layer feeds
// with binary frames.
type AudioIngestor interface {
	Ingest(roomID domain.RoomID, participantID domain.ParticipantID, raw []byte, sampleRate int, sourceLanguage domain.Language) error
}

type session struct {
	participant *domain.Participant
	conn        *wsConn
	roomID      domain.RoomID
	joinedAt    time.Time

	mu            sync.Mutex
	sendTransport sfu.TransportID
	recvTransport sfu.TransportID
	producers     map[sfu.ProducerID]struct{}
	consumers     map[sfu.ConsumerID]struct{}
}

// Server is the signaling hub. It implements core.RoomDirectory and
// core.TranslationSink for the orchestrator.
type Server struct {
	cfg   Config
	sfu   *sfu.Manager
	col   *metrics.Collectors
	audio AudioIngestor

	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.ParticipantID]*session
}

func NewServer(cfg Config, manager *sfu.Manager, col *metrics.Collectors) *Server {
	if cfg.MaxRooms <= 0 {
		cfg.MaxRooms = 1000
	}
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = 100
	}
	if cfg.DefaultSampleRate <= 0 {
		cfg.DefaultSampleRate = 48000
	}
	return &Server{
		cfg:   cfg,
		sfu:   manager,
		col:   col,
		rooms: make(map[domain.RoomID]map[domain.ParticipantID]*session),
	}
}

// BindIngestor wires the orchestrator in after construction; the two
// components reference each other, so one side has to attach late.
func (s *Server) BindIngestor(a AudioIngestor) { s.audio = a }

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the HTTP request and runs the connection's read loop
// until the socket dies. It is the gin handler's whole body: gorilla
// hijacks the connection, so returning is safe while pumps run.
func (s *Server) Handle(ctx context.Context, c *gin.Context, roomID domain.RoomID, displayName string) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade failed")
		return
	}
	if s.cfg.ReadLimit > 0 {
		ws.SetReadLimit(s.cfg.ReadLimit)
	}

	conn := newWSConn(ws, s.cfg.SendBuffer, s.cfg.PingPeriod)
	go conn.writePump()

	participant, err := domain.NewParticipant(displayName)
	if err != nil {
		s.sendError(conn, err.Error())
		conn.Close()
		return
	}

	sess := &session{
		participant: participant,
		conn:        conn,
		roomID:      roomID,
		joinedAt:    time.Now(),
		producers:   make(map[sfu.ProducerID]struct{}),
		consumers:   make(map[sfu.ConsumerID]struct{}),
	}

	if err := s.register(sess); err != nil {
		s.sendError(conn, err.Error())
		conn.Close()
		return
	}

	if _, err := s.sfu.CreateRouter(roomID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("router creation failed")
		s.sendError(conn, "router unavailable")
		s.cleanup(sess)
		return
	}

	log.Info().
		Str("module", "signal").
		Str("participant", string(participant.ID)).
		Str("room", string(roomID)).
		Msg("participant joined")
	if s.col != nil {
		s.col.Participants.Inc()
	}

	s.send(conn, welcomeMessage{
		Type:            msgWelcome,
		ParticipantID:   participant.ID,
		RoomID:          roomID,
		DisplayName:     participant.DisplayName,
		RtpCapabilities: sfu.RouterRTPCapabilities(),
	})
	s.broadcast(roomID, participant.ID, participantJoinedMessage{
		Type:          msgParticipantJoined,
		ParticipantID: participant.ID,
		DisplayName:   participant.DisplayName,
	})

	s.readLoop(ctx, sess)
	s.cleanup(sess)
}

// register adds the session to its room, enforcing the room and
// participant caps.
func (s *Server) register(sess *session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[sess.roomID]
	if !ok {
		if len(s.rooms) >= s.cfg.MaxRooms {
			return fmt.Errorf("%w: room limit %d reached", core.ErrLimitExceeded, s.cfg.MaxRooms)
		}
		members = make(map[domain.ParticipantID]*session)
		s.rooms[sess.roomID] = members
	}
	if len(members) >= s.cfg.MaxParticipants {
		if len(members) == 0 {
			delete(s.rooms, sess.roomID)
		}
		return fmt.Errorf("%w: participant limit %d reached", core.ErrLimitExceeded, s.cfg.MaxParticipants)
	}
	members[sess.participant.ID] = sess
	return nil
}

func (s *Server) readLoop(ctx context.Context, sess *session) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msgType, data, err := sess.conn.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).
				Str("module", "signal").
				Str("participant", string(sess.participant.ID)).
				Msg("connection closed")
			return
		}
		switch msgType {
		case websocket.TextMessage:
			s.dispatch(sess, data)
		case websocket.BinaryMessage:
			s.ingestBinary(sess, data)
		}
	}
}

// ingestBinary treats a binary frame as one raw PCM16LE chunk from
// this participant at the configured default rate.
func (s *Server) ingestBinary(sess *session, data []byte) {
	if s.audio == nil {
		s.sendError(sess.conn, "audio ingestion unavailable")
		return
	}
	src := s.sourceLanguage(sess)
	if err := s.audio.Ingest(sess.roomID, sess.participant.ID, data, s.cfg.DefaultSampleRate, src); err != nil {
		// dropped chunks are the documented policy, not a session fault
		log.Debug().Err(err).
			Str("module", "signal").
			Str("participant", string(sess.participant.ID)).
			Msg("binary ingest rejected")
	}
}

func (s *Server) sourceLanguage(sess *session) domain.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sess.participant.SourceLanguage
}

// cleanup runs the full disconnect cascade: SFU resources, room
// membership, router teardown for an empty room, participantLeft.
// The orchestrator's room deliberately keeps running; rooms stop only
// on explicit request.
func (s *Server) cleanup(sess *session) {
	s.mu.Lock()
	members, ok := s.rooms[sess.roomID]
	if ok {
		delete(members, sess.participant.ID)
		if len(members) == 0 {
			delete(s.rooms, sess.roomID)
		}
	}
	roomEmpty := ok && len(members) == 0
	s.mu.Unlock()

	s.sfu.CloseParticipant(sess.roomID, sess.participant.ID)
	if roomEmpty {
		s.sfu.CloseRouterForRoom(sess.roomID)
	}

	sess.conn.Close()
	if s.col != nil {
		s.col.Participants.Dec()
	}

	s.broadcast(sess.roomID, sess.participant.ID, participantLeftMessage{
		Type:          msgParticipantLeft,
		ParticipantID: sess.participant.ID,
	})
	log.Info().
		Str("module", "signal").
		Str("participant", string(sess.participant.ID)).
		Str("room", string(sess.roomID)).
		Msg("participant cleaned up")
}

func (s *Server) send(conn *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode outbound message")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("outbound frame dropped")
	}
}

func (s *Server) sendError(conn *wsConn, msg string) {
	s.send(conn, errorMessage{Type: msgError, Error: msg})
}

// broadcast fans a message to every room member except one.
func (s *Server) broadcast(roomID domain.RoomID, except domain.ParticipantID, v any) {
	s.mu.RLock()
	members := make([]*session, 0, len(s.rooms[roomID]))
	for id, sess := range s.rooms[roomID] {
		if id == except {
			continue
		}
		members = append(members, sess)
	}
	s.mu.RUnlock()
	for _, sess := range members {
		s.send(sess.conn, v)
	}
}

// Roommates implements core.RoomDirectory with value snapshots, so the
// orchestrator's drain loop never races setLanguages.
func (s *Server) Roommates(room domain.RoomID, except domain.ParticipantID) []*domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Participant
	for id, sess := range s.rooms[room] {
		if id == except {
			continue
		}
		cp := *sess.participant
		cp.TargetLanguages = append([]domain.Language(nil), sess.participant.TargetLanguages...)
		out = append(out, &cp)
	}
	return out
}

// Participant implements core.RoomDirectory.
func (s *Server) Participant(room domain.RoomID, id domain.ParticipantID) (*domain.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.rooms[room][id]
	if !ok {
		return nil, false
	}
	cp := *sess.participant
	cp.TargetLanguages = append([]domain.Language(nil), sess.participant.TargetLanguages...)
	return &cp, true
}

// DeliverTranslation implements core.TranslationSink: the listener
// gets the translated turn as a translatedAudio frame.
func (s *Server) DeliverTranslation(room domain.RoomID, to domain.ParticipantID, a core.TranslatedAudio) {
	s.mu.RLock()
	sess, ok := s.rooms[room][to]
	s.mu.RUnlock()
	if !ok {
		return
	}
	s.send(sess.conn, translatedAudioMessage{
		Type:       msgTranslatedAudio,
		SenderID:   a.SenderID,
		SenderName: a.SenderName,
		Language:   a.Language,
		Text:       a.Text,
		Audio:      base64.StdEncoding.EncodeToString(audio.EncodePCM16(a.Samples)),
		SampleRate: a.SampleRate,
		LatencyMs:  a.Latency.Milliseconds(),
	})
}

type Stats struct {
	Rooms        int            `json:"rooms"`
	Participants int            `json:"participants"`
	RoomSizes    map[string]int `json:"roomSizes"`
}

func (s *Server) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Rooms: len(s.rooms), RoomSizes: make(map[string]int, len(s.rooms))}
	for id, members := range s.rooms {
		st.RoomSizes[string(id)] = len(members)
		st.Participants += len(members)
	}
	return st
}
