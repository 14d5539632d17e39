package core

import "errors"

// Failure taxonomy shared across layers. Callers wrap these with
// fmt.Errorf("...: %w", err) so handlers can classify via errors.Is.
var (
	// ErrNotFound: a referenced producer/transport/router/profile does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidMessage: unknown or malformed signaling payload.
	ErrInvalidMessage = errors.New("invalid protocol message")
	// ErrModelLoad: a model could not be brought to LOADED.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference: one stage failed for one request; scope never widens.
	ErrInference = errors.New("inference failed")
	// ErrQueueFull: a chunk was dropped instead of blocking the producer.
	ErrQueueFull = errors.New("queue full")
	// ErrConnClosed: the signaling connection is gone.
	ErrConnClosed = errors.New("connection closed")
	// ErrLimitExceeded: room or participant cap reached.
	ErrLimitExceeded = errors.New("limit exceeded")
)
