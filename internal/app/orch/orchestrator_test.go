package orch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeferson-byte-ai/Orbis/internal/audio"
	"github.com/jeferson-byte-ai/Orbis/internal/core"
	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

type fakeDirectory struct {
	mu           sync.Mutex
	participants map[domain.ParticipantID]*domain.Participant
}

func newFakeDirectory(ps ...*domain.Participant) *fakeDirectory {
	d := &fakeDirectory{participants: make(map[domain.ParticipantID]*domain.Participant)}
	for _, p := range ps {
		d.participants[p.ID] = p
	}
	return d
}

func (d *fakeDirectory) Roommates(room domain.RoomID, except domain.ParticipantID) []*domain.Participant {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*domain.Participant
	for id, p := range d.participants {
		if id == except {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out
}

func (d *fakeDirectory) Participant(room domain.RoomID, id domain.ParticipantID) (*domain.Participant, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.participants[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

type delivery struct {
	to    domain.ParticipantID
	audio core.TranslatedAudio
}

type fakeSink struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (s *fakeSink) DeliverTranslation(room domain.RoomID, to domain.ParticipantID, a core.TranslatedAudio) {
	s.mu.Lock()
	s.deliveries = append(s.deliveries, delivery{to, a})
	s.mu.Unlock()
}

func (s *fakeSink) snapshot() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

// fakeProcessor echoes a vocabulary translation per target, recording
// the order chunks arrive in.
type fakeProcessor struct {
	mu      sync.Mutex
	chunks  []core.AudioChunk
	block   chan struct{} // when set, Process waits on it
	vocab   map[domain.Language]string
	baseTxt string
}

func (f *fakeProcessor) Process(ctx context.Context, chunk core.AudioChunk, targets []domain.Language, voice *core.VoiceProfile) (map[domain.Language]core.SynthesisResult, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.chunks = append(f.chunks, chunk)
	f.mu.Unlock()

	out := make(map[domain.Language]core.SynthesisResult, len(targets))
	for _, tgt := range targets {
		text := f.vocab[tgt]
		if text == "" {
			text = f.baseTxt
		}
		out[tgt] = core.SynthesisResult{
			SourceText: text,
			Language:   tgt,
			Samples:    []float32{0.1, 0.2},
			SampleRate: 24000,
		}
	}
	return out, nil
}

func (f *fakeProcessor) seen() []core.AudioChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.AudioChunk(nil), f.chunks...)
}

func pcmChunk(n int) []byte {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.5
	}
	return audio.EncodePCM16(samples)
}

func TestIngestStartsRoomLazily(t *testing.T) {
	proc := &fakeProcessor{baseTxt: "hi"}
	dir := newFakeDirectory()
	sink := &fakeSink{}
	o := New(Config{QueueCapacity: 4, PollTimeout: 10 * time.Millisecond}, proc, dir, sink, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	assert.False(t, o.Active("r1"))
	require.NoError(t, o.Ingest("r1", "a", pcmChunk(16), 48000, "en"))
	assert.True(t, o.Active("r1"))

	o.StopRoom("r1")
	assert.False(t, o.Active("r1"))
}

func TestFIFOOrderPerRoom(t *testing.T) {
	block := make(chan struct{})
	proc := &fakeProcessor{baseTxt: "hi", block: block}
	alice, err := domain.NewParticipant("alice")
	require.NoError(t, err)
	bob, err := domain.NewParticipant("bob")
	require.NoError(t, err)
	dir := newFakeDirectory(alice, bob)
	sink := &fakeSink{}
	o := New(Config{QueueCapacity: 10, PollTimeout: 10 * time.Millisecond}, proc, dir, sink, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	// hold the drain loop on the first chunk so the rest queue up in order
	for i := 0; i < 5; i++ {
		require.NoError(t, o.Ingest("r1", alice.ID, pcmChunk(8+i), 48000, "en"))
	}
	close(block)

	require.Eventually(t, func() bool { return len(proc.seen()) == 5 }, 2*time.Second, 5*time.Millisecond)
	chunks := proc.seen()
	for i, c := range chunks {
		assert.Len(t, c.Samples, 8+i, "chunk %d out of order", i)
	}
}

func TestDropNewestOnFullQueue(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	proc := &fakeProcessor{baseTxt: "hi", block: block}
	alice, err := domain.NewParticipant("alice")
	require.NoError(t, err)
	bob, err := domain.NewParticipant("bob")
	require.NoError(t, err)
	dir := newFakeDirectory(alice, bob)
	sink := &fakeSink{}
	o := New(Config{QueueCapacity: 3, PollTimeout: 10 * time.Millisecond}, proc, dir, sink, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	// the drain loop takes the first chunk and parks in the blocked
	// processor, so the next three fill the queue and the fifth drops
	require.NoError(t, o.Ingest("r1", alice.ID, pcmChunk(4), 48000, "en"))
	require.Eventually(t, func() bool {
		err := o.Ingest("r1", alice.ID, pcmChunk(4), 48000, "en")
		return err != nil
	}, time.Second, time.Millisecond)

	err = o.Ingest("r1", alice.ID, pcmChunk(4), 48000, "en")
	assert.ErrorIs(t, err, core.ErrQueueFull)
	assert.Equal(t, 3, o.Stats().QueueDepths["r1"])
	assert.Greater(t, o.Stats().DroppedChunks, int64(0))
}

func TestIngestRejectsOddPCM(t *testing.T) {
	o := New(Config{}, &fakeProcessor{}, newFakeDirectory(), &fakeSink{}, nil, nil)
	err := o.Ingest("r1", "a", []byte{1, 2, 3}, 48000, "en")
	assert.ErrorIs(t, err, core.ErrInvalidMessage)
	assert.False(t, o.Active("r1"))
}

func TestTranslationFanOutExcludesSender(t *testing.T) {
	proc := &fakeProcessor{
		baseTxt: "hello",
		vocab:   map[domain.Language]string{"fr": "bonjour"},
	}
	alice, err := domain.NewParticipant("alice")
	require.NoError(t, err)
	bob, err := domain.NewParticipant("bob")
	require.NoError(t, err)
	require.NoError(t, bob.SetLanguages("fr", []domain.Language{"fr"}))
	dir := newFakeDirectory(alice, bob)
	sink := &fakeSink{}
	o := New(Config{QueueCapacity: 4, PollTimeout: 10 * time.Millisecond}, proc, dir, sink, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	require.NoError(t, o.Ingest("r1", alice.ID, pcmChunk(16), 48000, "en"))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	got := sink.snapshot()[0]
	assert.Equal(t, bob.ID, got.to)
	assert.Equal(t, alice.ID, got.audio.SenderID)
	assert.Equal(t, domain.Language("fr"), got.audio.Language)
	assert.Equal(t, "bonjour", got.audio.Text)
	assert.Equal(t, "alice", got.audio.SenderName)

	// nothing was ever delivered back to the sender
	for _, d := range sink.snapshot() {
		assert.NotEqual(t, alice.ID, d.to)
	}
	assert.Equal(t, int64(1), o.Stats().ProcessedChunks)
}

func TestStopAll(t *testing.T) {
	proc := &fakeProcessor{baseTxt: "hi"}
	o := New(Config{QueueCapacity: 2, PollTimeout: 10 * time.Millisecond}, proc, newFakeDirectory(), &fakeSink{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	o.StartRoom("a")
	o.StartRoom("b")
	assert.Equal(t, 2, o.Stats().ActiveRooms)

	o.StopAll()
	assert.Equal(t, 0, o.Stats().ActiveRooms)
}
