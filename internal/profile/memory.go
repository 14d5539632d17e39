// Package profile resolves voice-profile references to the TTS
// conditioning data stored for a speaker. The memory provider backs
// tests and single-node dev; the badger provider survives restarts.
package profile

import (
	"context"
	"fmt"
	"sync"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
)

type Memory struct {
	mu       sync.RWMutex
	profiles map[string]core.VoiceProfile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[string]core.VoiceProfile)}
}

func (m *Memory) Put(p core.VoiceProfile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: voice profile without id", core.ErrInvalidMessage)
	}
	m.mu.Lock()
	m.profiles[p.ID] = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) Lookup(ctx context.Context, id string) (*core.VoiceProfile, error) {
	m.mu.RLock()
	p, ok := m.profiles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: voice profile %s", core.ErrNotFound, id)
	}
	return &p, nil
}

func (m *Memory) Close() error { return nil }
