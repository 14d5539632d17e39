package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
)

func tone(n int, freq float64, rate int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return samples
}

func TestFakeASRSilenceGate(t *testing.T) {
	a := NewFakeASR()

	quiet := core.AudioChunk{Samples: make([]float32, 1600), SampleRate: 16000, SourceLanguage: "en"}
	res, err := a.Transcribe(context.Background(), quiet)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)

	loud := core.AudioChunk{Samples: tone(1600, 440, 16000), SampleRate: 16000, SourceLanguage: "pt"}
	res, err = a.Transcribe(context.Background(), loud)
	require.NoError(t, err)
	assert.Equal(t, a.Transcript, res.Text)
	assert.Equal(t, "pt", string(res.DetectedLanguage))
	assert.Equal(t, int64(2), a.Calls())
}

func TestFakeASRAutoDetectFallsBackToEnglish(t *testing.T) {
	a := NewFakeASR()
	chunk := core.AudioChunk{Samples: tone(1600, 440, 16000), SampleRate: 16000, SourceLanguage: "auto"}
	res, err := a.Transcribe(context.Background(), chunk)
	require.NoError(t, err)
	assert.Equal(t, "en", string(res.DetectedLanguage))
}

func TestFakeMTVocabulary(t *testing.T) {
	m := NewFakeMT()
	res, err := m.Translate(context.Background(), "hello", "en", "fr")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", res.Text)
	assert.Equal(t, "en", string(res.SourceLanguage))
	assert.Equal(t, "fr", string(res.TargetLanguage))

	res, err = m.Translate(context.Background(), "Hello", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, "hola", res.Text, "vocabulary lookup is case-insensitive")
}

func TestFakeMTTaggedPassthrough(t *testing.T) {
	m := NewFakeMT()
	res, err := m.Translate(context.Background(), "good morning everyone", "en", "fr")
	require.NoError(t, err)
	assert.Equal(t, "[fra_Latn] good morning everyone", res.Text)
	assert.Equal(t, int64(1), m.Calls())
}

func TestFakeTTSSizesAudioToText(t *testing.T) {
	tts := NewFakeTTS(24000)

	short, err := tts.Synthesize(context.Background(), "hi", "en", nil)
	require.NoError(t, err)
	long, err := tts.Synthesize(context.Background(), "a considerably longer sentence to speak", "en", nil)
	require.NoError(t, err)

	assert.Equal(t, 24000, short.SampleRate)
	assert.Greater(t, len(long.Samples), len(short.Samples))
	assert.Equal(t, "hi", short.SourceText)

	for _, s := range long.Samples {
		assert.LessOrEqual(t, float64(s), 1.0)
		assert.GreaterOrEqual(t, float64(s), -1.0)
	}
}

func TestFakeTTSVoiceProfileChangesPitch(t *testing.T) {
	tts := NewFakeTTS(24000)
	plain, err := tts.Synthesize(context.Background(), "hello there", "en", nil)
	require.NoError(t, err)
	voiced, err := tts.Synthesize(context.Background(), "hello there", "en", &core.VoiceProfile{ID: "speaker-1"})
	require.NoError(t, err)

	require.Equal(t, len(plain.Samples), len(voiced.Samples))
	assert.NotEqual(t, plain.Samples, voiced.Samples)
}
