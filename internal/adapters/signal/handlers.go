package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/app/sfu"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
	"github.com/jeferson-byte-ai/Orbis/internal/lang"
)

// dispatch routes one decoded text frame to its handler. Every failure
// path answers with an error message; none of them ends the session.
func (s *Server) dispatch(sess *session, data []byte) {
	msg, err := DecodeClientMessage(data)
	if err != nil {
		log.Warn().Err(err).
			Str("module", "signal").
			Str("participant", string(sess.participant.ID)).
			Msg("bad signaling message")
		s.sendError(sess.conn, err.Error())
		return
	}

	switch msg.Type {
	case msgGetRouterRtpCapabilities:
		s.handleGetRtpCapabilities(sess)
	case msgCreateWebRtcTransport:
		s.handleCreateTransport(sess, msg.CreateTransport)
	case msgConnectWebRtcTransport:
		s.handleConnectTransport(sess, msg.ConnectTransport)
	case msgProduce:
		s.handleProduce(sess, msg.Produce)
	case msgConsume:
		s.handleConsume(sess, msg.Consume)
	case msgSetLanguages:
		s.handleSetLanguages(sess, msg.SetLanguages)
	case msgPauseProducer:
		s.replyOnError(sess, s.sfu.PauseProducer(msg.ProducerControl.ProducerID))
	case msgResumeProducer:
		s.replyOnError(sess, s.sfu.ResumeProducer(msg.ProducerControl.ProducerID))
	case msgPauseConsumer:
		s.replyOnError(sess, s.sfu.PauseConsumer(msg.ConsumerControl.ConsumerID))
	case msgResumeConsumer:
		s.replyOnError(sess, s.sfu.ResumeConsumer(msg.ConsumerControl.ConsumerID))
	}
}

// replyOnError is for the pause/resume flips: success is silent, a
// missing resource is reported.
func (s *Server) replyOnError(sess *session, err error) {
	if err != nil {
		s.sendError(sess.conn, err.Error())
	}
}

func (s *Server) handleGetRtpCapabilities(sess *session) {
	s.send(sess.conn, rtpCapabilitiesMessage{
		Type:            msgRouterRtpCapabilities,
		RtpCapabilities: sfu.RouterRTPCapabilities(),
	})
}

func (s *Server) handleCreateTransport(sess *session, p *CreateTransportPayload) {
	router, ok := s.sfu.RouterForRoom(sess.roomID)
	if !ok {
		s.sendError(sess.conn, "router not found")
		return
	}
	transport, err := s.sfu.CreateTransport(router.ID, sess.participant.ID, p.Direction)
	if err != nil {
		s.sendError(sess.conn, err.Error())
		return
	}

	sess.mu.Lock()
	if p.Direction == sfu.DirectionSend {
		sess.sendTransport = transport.ID
	} else {
		sess.recvTransport = transport.ID
	}
	sess.mu.Unlock()

	s.send(sess.conn, transportCreatedMessage{
		Type:           msgTransportCreated,
		Direction:      p.Direction,
		ID:             transport.ID,
		IceParameters:  transport.ICEParameters,
		IceCandidates:  transport.ICECandidates,
		DtlsParameters: transport.DTLSParameters,
	})
}

func (s *Server) handleConnectTransport(sess *session, p *ConnectTransportPayload) {
	if err := s.sfu.ConnectTransport(p.TransportID, p.DtlsParameters); err != nil {
		s.sendError(sess.conn, err.Error())
		return
	}
	s.send(sess.conn, transportConnectedMessage{
		Type:        msgTransportConnected,
		TransportID: p.TransportID,
	})
}

func (s *Server) handleProduce(sess *session, p *ProducePayload) {
	sess.mu.Lock()
	transportID := sess.sendTransport
	sess.mu.Unlock()
	if transportID == "" {
		s.sendError(sess.conn, "send transport not created")
		return
	}

	producer, err := s.sfu.CreateProducer(transportID, p.Kind, p.RtpParameters)
	if err != nil {
		s.sendError(sess.conn, err.Error())
		return
	}
	sess.mu.Lock()
	sess.producers[producer.ID] = struct{}{}
	sess.mu.Unlock()

	s.send(sess.conn, producedMessage{
		Type: msgProduced,
		Kind: p.Kind,
		ID:   producer.ID,
	})
	s.broadcast(sess.roomID, sess.participant.ID, newProducerMessage{
		Type:          msgNewProducer,
		ParticipantID: sess.participant.ID,
		ProducerID:    producer.ID,
		Kind:          p.Kind,
	})
}

func (s *Server) handleConsume(sess *session, p *ConsumePayload) {
	sess.mu.Lock()
	transportID := sess.recvTransport
	sess.mu.Unlock()
	if transportID == "" {
		s.sendError(sess.conn, "receive transport not created")
		return
	}

	consumer, err := s.sfu.CreateConsumer(transportID, p.ProducerID, p.RtpCapabilities)
	if err != nil {
		s.sendError(sess.conn, err.Error())
		return
	}
	sess.mu.Lock()
	sess.consumers[consumer.ID] = struct{}{}
	sess.mu.Unlock()

	s.send(sess.conn, consumedMessage{
		Type:          msgConsumed,
		ID:            consumer.ID,
		ProducerID:    p.ProducerID,
		Kind:          consumer.Kind,
		RtpParameters: consumer.RTPParameters,
	})
}

func (s *Server) handleSetLanguages(sess *session, p *SetLanguagesPayload) {
	if p.SourceLanguage != lang.Auto && !lang.IsSupported(p.SourceLanguage) {
		s.sendError(sess.conn, "unsupported source language: "+string(p.SourceLanguage))
		return
	}
	for _, t := range p.TargetLanguages {
		if !lang.IsSupported(t) {
			s.sendError(sess.conn, "unsupported target language: "+string(t))
			return
		}
	}

	s.mu.Lock()
	err := sess.participant.SetLanguages(p.SourceLanguage, p.TargetLanguages)
	src := sess.participant.SourceLanguage
	targets := append([]domain.Language(nil), sess.participant.TargetLanguages...)
	s.mu.Unlock()
	if err != nil {
		s.sendError(sess.conn, err.Error())
		return
	}

	log.Info().
		Str("module", "signal").
		Str("participant", string(sess.participant.ID)).
		Str("source", string(src)).
		Interface("targets", targets).
		Msg("languages set")
	s.send(sess.conn, languagesSetMessage{
		Type:            msgLanguagesSet,
		SourceLanguage:  src,
		TargetLanguages: targets,
	})
}
