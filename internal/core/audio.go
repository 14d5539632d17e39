package core

import (
	"time"

	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

// AudioChunk is one ingested slice of a participant's speech,
// normalized to float32. Immutable once built; every pipeline stage
// reads it, none mutates it.
type AudioChunk struct {
	Samples        []float32
	SampleRate     int
	Timestamp      time.Time
	ParticipantID  domain.ParticipantID
	RoomID         domain.RoomID
	SourceLanguage domain.Language
}

// Duration of the chunk's audio.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// TranscriptionResult is the ASR stage output.
type TranscriptionResult struct {
	Text             string
	DetectedLanguage domain.Language
	Confidence       float64
	Latency          time.Duration
}

// TranslationResult is the MT stage output for one target language.
type TranslationResult struct {
	Text           string
	SourceLanguage domain.Language
	TargetLanguage domain.Language
	Cached         bool
	Latency        time.Duration
}

// SynthesisResult is the TTS stage output for one target language.
type SynthesisResult struct {
	SourceText string
	Language   domain.Language
	Samples    []float32
	SampleRate int
	Latency    time.Duration
}

// TranslatedAudio is what a listening participant receives for one of
// a room-mate's utterances, already in the listener's language.
type TranslatedAudio struct {
	SenderID   domain.ParticipantID
	SenderName string
	Language   domain.Language
	Text       string
	Samples    []float32
	SampleRate int
	Latency    time.Duration
}
