// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxParticipantIDLen = 36
	MaxDisplayNameLen   = 64
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrNoTargetLanguages  = errors.New("no target languages")
	ErrEmptyLanguage      = errors.New("empty language code")
)

type ParticipantID string

// Language is an ISO 639-1 code ("en", "pt"). The lang package owns
// the registry of supported codes; domain treats it as an opaque tag.
type Language string

// Participant is a live connection's identity plus translation
// preferences. Transports and producers live in the sfu layer, not here.
type Participant struct {
	ID              ParticipantID `json:"id"`
	DisplayName     string        `json:"displayName,omitempty"`
	SourceLanguage  Language      `json:"sourceLanguage"`
	TargetLanguages []Language    `json:"targetLanguages"`
	VoiceProfileID  string        `json:"voiceProfileId,omitempty"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
// Fresh participants speak and listen in English until setLanguages says otherwise.
func NewParticipant(displayName string) (*Participant, error) {
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Participant{
		ID:              ParticipantID(uuid.NewString()),
		DisplayName:     displayName,
		SourceLanguage:  "en",
		TargetLanguages: []Language{"en"},
	}, nil
}

// ActiveTarget is the language translated audio is delivered in.
// Only the first target is active at a time; the rest are kept for
// future multi-track delivery.
func (p *Participant) ActiveTarget() Language {
	if len(p.TargetLanguages) == 0 {
		return p.SourceLanguage
	}
	return p.TargetLanguages[0]
}

func (p *Participant) SetLanguages(src Language, targets []Language) error {
	if src == "" {
		return ErrEmptyLanguage
	}
	if len(targets) == 0 {
		return ErrNoTargetLanguages
	}
	for _, t := range targets {
		if t == "" {
			return ErrEmptyLanguage
		}
	}
	p.SourceLanguage = src
	p.TargetLanguages = targets
	return nil
}
