package signal

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/jeferson-byte-ai/Orbis/internal/app/sfu"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

// Client→server message types.
const (
	msgGetRouterRtpCapabilities = "getRouterRtpCapabilities"
	msgCreateWebRtcTransport    = "createWebRtcTransport"
	msgConnectWebRtcTransport   = "connectWebRtcTransport"
	msgProduce                  = "produce"
	msgConsume                  = "consume"
	msgSetLanguages             = "setLanguages"
	msgPauseProducer            = "pauseProducer"
	msgResumeProducer           = "resumeProducer"
	msgPauseConsumer            = "pauseConsumer"
	msgResumeConsumer           = "resumeConsumer"
)

// Server→client message types.
const (
	msgWelcome               = "welcome"
	msgRouterRtpCapabilities = "routerRtpCapabilities"
	msgTransportCreated      = "transportCreated"
	msgTransportConnected    = "transportConnected"
	msgProduced              = "produced"
	msgNewProducer           = "newProducer"
	msgConsumed              = "consumed"
	msgLanguagesSet          = "languagesSet"
	msgParticipantJoined     = "participantJoined"
	msgParticipantLeft       = "participantLeft"
	msgTranslatedAudio       = "translatedAudio"
	msgError                 = "error"
)

// ClientMessage is the decoded form of one inbound frame: the type tag
// plus exactly one populated payload variant.
type ClientMessage struct {
	Type string

	CreateTransport  *CreateTransportPayload
	ConnectTransport *ConnectTransportPayload
	Produce          *ProducePayload
	Consume          *ConsumePayload
	SetLanguages     *SetLanguagesPayload
	ProducerControl  *ProducerControlPayload
	ConsumerControl  *ConsumerControlPayload
}

type CreateTransportPayload struct {
	Direction sfu.Direction `json:"direction"`
}

type ConnectTransportPayload struct {
	TransportID    sfu.TransportID `json:"transportId"`
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
}

type ProducePayload struct {
	Kind          sfu.MediaKind   `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
}

type ConsumePayload struct {
	ProducerID      sfu.ProducerID  `json:"producerId"`
	RtpCapabilities json.RawMessage `json:"rtpCapabilities"`
}

type SetLanguagesPayload struct {
	SourceLanguage  domain.Language   `json:"sourceLanguage"`
	TargetLanguages []domain.Language `json:"targetLanguages"`
}

type ProducerControlPayload struct {
	ProducerID sfu.ProducerID `json:"producerId"`
}

type ConsumerControlPayload struct {
	ConsumerID sfu.ConsumerID `json:"consumerId"`
}

// DecodeClientMessage parses one inbound JSON frame against the typed
// schema. Unknown types and malformed payloads come back as
// ErrInvalidMessage; the connection stays open either way.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", core.ErrInvalidMessage, err)
	}
	msg := ClientMessage{Type: env.Type}

	decode := func(dst any) error {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("%w: %s payload: %v", core.ErrInvalidMessage, env.Type, err)
		}
		return nil
	}

	switch env.Type {
	case msgGetRouterRtpCapabilities:
		return msg, nil
	case msgCreateWebRtcTransport:
		msg.CreateTransport = &CreateTransportPayload{}
		return msg, decode(msg.CreateTransport)
	case msgConnectWebRtcTransport:
		msg.ConnectTransport = &ConnectTransportPayload{}
		return msg, decode(msg.ConnectTransport)
	case msgProduce:
		msg.Produce = &ProducePayload{}
		return msg, decode(msg.Produce)
	case msgConsume:
		msg.Consume = &ConsumePayload{}
		return msg, decode(msg.Consume)
	case msgSetLanguages:
		msg.SetLanguages = &SetLanguagesPayload{}
		return msg, decode(msg.SetLanguages)
	case msgPauseProducer, msgResumeProducer:
		msg.ProducerControl = &ProducerControlPayload{}
		return msg, decode(msg.ProducerControl)
	case msgPauseConsumer, msgResumeConsumer:
		msg.ConsumerControl = &ConsumerControlPayload{}
		return msg, decode(msg.ConsumerControl)
	default:
		return msg, fmt.Errorf("%w: unknown type %q", core.ErrInvalidMessage, env.Type)
	}
}

// Server→client payloads.

type welcomeMessage struct {
	Type            string               `json:"type"`
	ParticipantID   domain.ParticipantID `json:"participantId"`
	RoomID          domain.RoomID        `json:"roomId"`
	DisplayName     string               `json:"displayName,omitempty"`
	RtpCapabilities sfu.RTPCapabilities  `json:"rtpCapabilities"`
}

type rtpCapabilitiesMessage struct {
	Type            string              `json:"type"`
	RtpCapabilities sfu.RTPCapabilities `json:"rtpCapabilities"`
}

type transportCreatedMessage struct {
	Type           string                `json:"type"`
	Direction      sfu.Direction         `json:"direction"`
	ID             sfu.TransportID       `json:"id"`
	IceParameters  webrtc.ICEParameters  `json:"iceParameters"`
	IceCandidates  []webrtc.ICECandidate `json:"iceCandidates"`
	DtlsParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

type transportConnectedMessage struct {
	Type        string          `json:"type"`
	TransportID sfu.TransportID `json:"transportId"`
}

type producedMessage struct {
	Type string         `json:"type"`
	Kind sfu.MediaKind  `json:"kind"`
	ID   sfu.ProducerID `json:"id"`
}

type newProducerMessage struct {
	Type          string               `json:"type"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	ProducerID    sfu.ProducerID       `json:"producerId"`
	Kind          sfu.MediaKind        `json:"kind"`
}

type consumedMessage struct {
	Type          string          `json:"type"`
	ID            sfu.ConsumerID  `json:"id"`
	ProducerID    sfu.ProducerID  `json:"producerId"`
	Kind          sfu.MediaKind   `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
}

type languagesSetMessage struct {
	Type            string            `json:"type"`
	SourceLanguage  domain.Language   `json:"sourceLanguage"`
	TargetLanguages []domain.Language `json:"targetLanguages"`
}

type participantJoinedMessage struct {
	Type          string               `json:"type"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	DisplayName   string               `json:"displayName,omitempty"`
}

type participantLeftMessage struct {
	Type          string               `json:"type"`
	ParticipantID domain.ParticipantID `json:"participantId"`
}

type translatedAudioMessage struct {
	Type       string               `json:"type"`
	SenderID   domain.ParticipantID `json:"senderId"`
	SenderName string               `json:"senderName,omitempty"`
	Language   domain.Language      `json:"language"`
	Text       string               `json:"text"`
	Audio      string               `json:"audio"` // base64 PCM16LE
	SampleRate int                  `json:"sampleRate"`
	LatencyMs  int64                `json:"latencyMs"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
