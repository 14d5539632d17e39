package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
)

const keyPrefix = "voice/"

type Badger struct {
	db *badger.DB
}

// NewBadger opens (or creates) the on-disk store at dir.
func NewBadger(dir string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open profile store %s: %w", dir, err)
	}
	log.Info().Str("module", "profile").Str("dir", dir).Msg("badger profile store opened")
	return &Badger{db: db}, nil
}

// NewBadgerInMemory keeps everything in RAM; used by tests.
func NewBadgerInMemory() (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory profile store: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Put(p core.VoiceProfile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: voice profile without id", core.ErrInvalidMessage)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode voice profile %s: %w", p.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+p.ID), raw)
	})
}

func (b *Badger) Lookup(ctx context.Context, id string) (*core.VoiceProfile, error) {
	var p core.VoiceProfile
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: voice profile %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup voice profile %s: %w", id, err)
	}
	return &p, nil
}

func (b *Badger) Close() error { return b.db.Close() }
