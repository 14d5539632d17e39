// Package pipeline composes ASR, MT and TTS into one per-chunk call.
// Engines come from the model manager on demand; MT requests ride a
// language-pair batcher and a bounded cache sits in front of it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/app/batch"
	"github.com/jeferson-byte-ai/Orbis/internal/app/models"
	"github.com/jeferson-byte-ai/Orbis/internal/audio"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
	"github.com/jeferson-byte-ai/Orbis/internal/metrics"
)

type Config struct {
	CacheCapacity int
	TargetLatency time.Duration
	ASRSampleRate int
	MTBatchSize   int
	MTBatchWait   time.Duration
	TTSBatchSize  int
	TTSBatchWait  time.Duration
}

type mtReq struct {
	text string
	src  domain.Language
	tgt  domain.Language
}

type langPair struct {
	src, tgt domain.Language
}

// mtOut carries a per-request error so one bad translation inside a
// dispatched group rejects only its own future.
type mtOut struct {
	text string
	err  error
}

type ttsReq struct {
	text  string
	lang  domain.Language
	voice *core.VoiceProfile
}

type Pipeline struct {
	models *models.Manager
	cache  *Cache
	mon    *metrics.Monitor
	col    *metrics.Collectors

	mtBatch  *batch.Collector[mtReq, mtOut]
	ttsBatch *batch.Collector[ttsReq, core.SynthesisResult]

	asrRate int
}

func New(cfg Config, mgr *models.Manager, mon *metrics.Monitor, col *metrics.Collectors) *Pipeline {
	p := &Pipeline{
		models:  mgr,
		cache:   NewCache(cfg.CacheCapacity),
		mon:     mon,
		col:     col,
		asrRate: cfg.ASRSampleRate,
	}
	p.mtBatch = batch.NewGrouped("mt", cfg.MTBatchSize, cfg.MTBatchWait, col,
		func(r mtReq) langPair { return langPair{r.src, r.tgt} },
		p.translateGroup)
	p.ttsBatch = batch.New("tts", cfg.TTSBatchSize, cfg.TTSBatchWait, col, p.synthesizeOne)
	return p
}

// Start spawns the batch collection loops. They stop with ctx.
func (p *Pipeline) Start(ctx context.Context) {
	p.mtBatch.Start(ctx)
	p.ttsBatch.Start(ctx)
}

// Process runs one chunk through ASR, then MT and TTS per target
// language. Silence short-circuits to an empty map. A failing target
// language is omitted; it never takes down the others. The returned
// error covers only chunk-wide failures (ASR and its model).
func (p *Pipeline) Process(
	ctx context.Context,
	chunk core.AudioChunk,
	targets []domain.Language,
	voice *core.VoiceProfile,
) (map[domain.Language]core.SynthesisResult, error) {
	total := time.Now()

	tr, err := p.transcriber(ctx)
	if err != nil {
		return nil, err
	}

	asrStart := time.Now()
	asrChunk := chunk
	if p.asrRate > 0 && chunk.SampleRate != p.asrRate {
		resampled, err := audio.Resample(chunk.Samples, chunk.SampleRate, p.asrRate)
		if err != nil {
			log.Warn().Err(err).
				Str("module", "pipeline").
				Int("from", chunk.SampleRate).
				Int("to", p.asrRate).
				Msg("resample failed, transcribing at source rate")
		} else {
			asrChunk.Samples = resampled
			asrChunk.SampleRate = p.asrRate
		}
	}
	res, err := tr.Transcribe(ctx, asrChunk)
	if err != nil {
		return nil, fmt.Errorf("%w: asr: %v", core.ErrInference, err)
	}
	p.observe("asr", time.Since(asrStart))

	out := make(map[domain.Language]core.SynthesisResult, len(targets))
	text := strings.TrimSpace(res.Text)
	if text == "" {
		// nothing was said; no downstream work for silence
		return out, nil
	}

	src := res.DetectedLanguage
	if src == "" {
		src = chunk.SourceLanguage
	}

	// One task per target so concurrent requests can share MT/TTS
	// batches. A failing language only loses its own entry.
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, tgt := range dedupe(targets) {
		wg.Add(1)
		go func(tgt domain.Language) {
			defer wg.Done()

			mtStart := time.Now()
			txt, err := p.translateOne(ctx, text, src, tgt)
			if err != nil {
				log.Warn().Err(err).
					Str("module", "pipeline").
					Str("target", string(tgt)).
					Msg("translation failed for target language")
				return
			}
			p.observe("mt", time.Since(mtStart))

			ttsStart := time.Now()
			synth, err := p.ttsBatch.Submit(ctx, ttsReq{text: txt, lang: tgt, voice: voice})
			if err != nil {
				log.Warn().Err(err).
					Str("module", "pipeline").
					Str("target", string(tgt)).
					Msg("synthesis failed for target language")
				return
			}
			p.observe("tts", time.Since(ttsStart))

			mu.Lock()
			out[tgt] = synth
			mu.Unlock()
		}(tgt)
	}
	wg.Wait()

	p.observe("e2e", time.Since(total))
	return out, nil
}

// Translate is the text-only path, used directly by tests and the
// control surface. Same language is an identity with no engine work.
func (p *Pipeline) Translate(ctx context.Context, text string, src, tgt domain.Language) (string, error) {
	return p.translateOne(ctx, text, src, tgt)
}

func (p *Pipeline) translateOne(ctx context.Context, text string, src, tgt domain.Language) (string, error) {
	if tgt == src {
		return text, nil
	}
	if cached, ok := p.cache.Get(src, tgt, text); ok {
		if p.col != nil {
			p.col.CacheHits.Inc()
		}
		return cached, nil
	}
	if p.col != nil {
		p.col.CacheMisses.Inc()
	}
	o, err := p.mtBatch.Submit(ctx, mtReq{text: text, src: src, tgt: tgt})
	if err != nil {
		return "", err
	}
	if o.err != nil {
		return "", o.err
	}
	p.cache.Put(src, tgt, text, o.text)
	return o.text, nil
}

// translateGroup dispatches one language pair's worth of a batch.
// Engine acquisition fails the whole group; a single text's failure
// stays inside its own mtOut.
func (p *Pipeline) translateGroup(ctx context.Context, k langPair, ins []mtReq) ([]mtOut, error) {
	h, err := p.models.EnsureLoaded(ctx, models.MT)
	if err != nil {
		return nil, err
	}
	tr, ok := h.(core.Translator)
	if !ok {
		return nil, fmt.Errorf("%w: mt handle is %T", core.ErrModelLoad, h)
	}

	out := make([]mtOut, len(ins))
	for i, r := range ins {
		res, err := tr.Translate(ctx, r.text, k.src, k.tgt)
		if err != nil {
			out[i] = mtOut{err: fmt.Errorf("%w: mt %s->%s: %v", core.ErrInference, k.src, k.tgt, err)}
			continue
		}
		out[i] = mtOut{text: res.Text}
	}
	return out, nil
}

func (p *Pipeline) synthesizeOne(ctx context.Context, r ttsReq) (core.SynthesisResult, error) {
	h, err := p.models.EnsureLoaded(ctx, models.TTS)
	if err != nil {
		return core.SynthesisResult{}, err
	}
	s, ok := h.(core.Synthesizer)
	if !ok {
		return core.SynthesisResult{}, fmt.Errorf("%w: tts handle is %T", core.ErrModelLoad, h)
	}
	res, err := s.Synthesize(ctx, r.text, r.lang, r.voice)
	if err != nil {
		return core.SynthesisResult{}, fmt.Errorf("%w: tts %s: %v", core.ErrInference, r.lang, err)
	}
	return res, nil
}

func (p *Pipeline) transcriber(ctx context.Context) (core.Transcriber, error) {
	h, err := p.models.EnsureLoaded(ctx, models.ASR)
	if err != nil {
		return nil, err
	}
	t, ok := h.(core.Transcriber)
	if !ok {
		return nil, fmt.Errorf("%w: asr handle is %T", core.ErrModelLoad, h)
	}
	return t, nil
}

func (p *Pipeline) observe(stage string, d time.Duration) {
	if p.mon != nil {
		p.mon.Observe(stage, d)
	}
	if p.col != nil {
		p.col.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func dedupe(langs []domain.Language) []domain.Language {
	seen := make(map[domain.Language]struct{}, len(langs))
	out := langs[:0:0]
	for _, l := range langs {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

type Stats struct {
	Cache  CacheStats               `json:"cache"`
	Stages map[string]metrics.Stats `json:"stages"`
	Alerts int64                    `json:"alerts"`
	MT     batch.Stats              `json:"mtBatch"`
	TTS    batch.Stats              `json:"ttsBatch"`
}

func (p *Pipeline) Stats() Stats {
	s := Stats{
		Cache: p.cache.Stats(),
		MT:    p.mtBatch.Stats(),
		TTS:   p.ttsBatch.Stats(),
	}
	if p.mon != nil {
		s.Stages = p.mon.Snapshot()
		s.Alerts = p.mon.Alerts()
	}
	return s
}
