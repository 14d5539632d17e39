// Package engine holds the inference engines behind the core
// interfaces. The Fake* engines are the development loopback: cheap,
// deterministic, and good enough to exercise the whole pipeline
// without model weights.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeferson-byte-ai/Orbis/internal/audio"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
	"github.com/jeferson-byte-ai/Orbis/internal/lang"
)

// FakeASR gates on signal energy and emits a canned transcript.
type FakeASR struct {
	SilenceRMS float64
	Transcript string

	calls atomic.Int64
}

func NewFakeASR() *FakeASR {
	return &FakeASR{
		SilenceRMS: 0.001,
		Transcript: "this is a test utterance",
	}
}

func (a *FakeASR) Transcribe(ctx context.Context, chunk core.AudioChunk) (core.TranscriptionResult, error) {
	start := time.Now()
	a.calls.Add(1)

	detected := chunk.SourceLanguage
	if detected == "" || detected == lang.Auto {
		detected = "en"
	}
	res := core.TranscriptionResult{DetectedLanguage: detected}
	if audio.RMS(chunk.Samples) >= a.SilenceRMS {
		res.Text = a.Transcript
		res.Confidence = 0.9
	}
	res.Latency = time.Since(start)
	return res, nil
}

func (a *FakeASR) Calls() int64 { return a.calls.Load() }

// demoVocab gives the loopback MT engine a few recognizable
// translations; everything else gets a tagged passthrough.
var demoVocab = map[string]map[domain.Language]string{
	"hello": {
		"fr": "bonjour",
		"es": "hola",
		"de": "hallo",
		"pt": "olá",
		"it": "ciao",
	},
	"goodbye": {
		"fr": "au revoir",
		"es": "adiós",
		"de": "auf wiedersehen",
		"pt": "adeus",
	},
	"thank you": {
		"fr": "merci",
		"es": "gracias",
		"de": "danke",
		"pt": "obrigado",
	},
}

type FakeMT struct {
	calls atomic.Int64
}

func NewFakeMT() *FakeMT { return &FakeMT{} }

func (m *FakeMT) Translate(ctx context.Context, text string, src, tgt domain.Language) (core.TranslationResult, error) {
	start := time.Now()
	m.calls.Add(1)

	out, ok := demoVocab[strings.ToLower(strings.TrimSpace(text))][tgt]
	if !ok {
		out = fmt.Sprintf("[%s] %s", lang.NLLBCode(tgt), text)
	}
	return core.TranslationResult{
		Text:           out,
		SourceLanguage: src,
		TargetLanguage: tgt,
		Latency:        time.Since(start),
	}, nil
}

func (m *FakeMT) Calls() int64 { return m.calls.Load() }

// FakeTTS renders a faded sine tone sized to the text, pitched per
// voice profile so different speakers are audibly distinct.
type FakeTTS struct {
	SampleRate int

	calls atomic.Int64
}

func NewFakeTTS(sampleRate int) *FakeTTS {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &FakeTTS{SampleRate: sampleRate}
}

func (t *FakeTTS) Synthesize(ctx context.Context, text string, language domain.Language, voice *core.VoiceProfile) (core.SynthesisResult, error) {
	start := time.Now()
	t.calls.Add(1)

	dur := time.Duration(len([]rune(text))) * 50 * time.Millisecond
	if dur < 100*time.Millisecond {
		dur = 100 * time.Millisecond
	}
	if dur > 3*time.Second {
		dur = 3 * time.Second
	}

	freq := 220.0
	if voice != nil {
		freq = 180 + float64(len(voice.ID)%8)*30
	}

	n := int(float64(t.SampleRate) * dur.Seconds())
	samples := make([]float32, n)
	fade := t.SampleRate / 200 // 5ms ramp against clicks
	for i := range samples {
		v := 0.25 * math.Sin(2*math.Pi*freq*float64(i)/float64(t.SampleRate))
		if i < fade {
			v *= float64(i) / float64(fade)
		}
		if n-i <= fade {
			v *= float64(n-i) / float64(fade)
		}
		samples[i] = float32(v)
	}

	return core.SynthesisResult{
		SourceText: text,
		Language:   language,
		Samples:    samples,
		SampleRate: t.SampleRate,
		Latency:    time.Since(start),
	}, nil
}

func (t *FakeTTS) Calls() int64 { return t.calls.Load() }
