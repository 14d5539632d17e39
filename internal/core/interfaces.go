package core

import (
	"context"

	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

// Frame is a raw signaling payload (JSON text or a binary audio chunk).
type Frame []byte

// SignalConnection abstracts the per-participant messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Transcriber turns audio into text. The chunk carries the source
// language as a hint; engines may override it with what they detect.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk AudioChunk) (TranscriptionResult, error)
}

// Translator converts text between two languages.
type Translator interface {
	Translate(ctx context.Context, text string, src, tgt domain.Language) (TranslationResult, error)
}

// Synthesizer renders text as speech, optionally conditioned on a
// voice profile.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang domain.Language, voice *VoiceProfile) (SynthesisResult, error)
}

// VoiceProfile is the TTS conditioning material a profile id resolves to.
type VoiceProfile struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Language   domain.Language `json:"language,omitempty"`
	SampleRate int             `json:"sampleRate,omitempty"`
	Embedding  []float32       `json:"embedding,omitempty"`
}

// VoiceProfileProvider resolves a participant's voice-profile reference.
// Implementations live in the profile package.
type VoiceProfileProvider interface {
	Lookup(ctx context.Context, id string) (*VoiceProfile, error)
}

// RoomDirectory is the membership view the orchestrator needs: who
// else is in a room and what languages they use. The signal hub
// implements it; tests substitute fakes.
type RoomDirectory interface {
	Roommates(room domain.RoomID, except domain.ParticipantID) []*domain.Participant
	Participant(room domain.RoomID, id domain.ParticipantID) (*domain.Participant, bool)
}

// TranslationSink receives per-listener results from the orchestrator
// and pushes them down the listener's signaling connection.
type TranslationSink interface {
	DeliverTranslation(room domain.RoomID, to domain.ParticipantID, audio TranslatedAudio)
}
