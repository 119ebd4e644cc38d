// Package stt turns a voice message into text through a hosted speech-to-text API.
package stt

import (
	"context"
	"io"
	"time"
)

// Request is one transcription call. The credential travels with the request so
// backends hold no key of their own.
type Request struct {
	Audio      io.Reader
	Filename   string
	Language   string // ISO-639-1, empty lets the API detect it
	SampleRate int    // from the Ogg header, 0 when unknown
	Credential string
}

// Transcript is the text produced for one attachment.
type Transcript struct {
	Text     string
	Language string
	Duration time.Duration
}

// Transcriber performs a single, stateless transcription call.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Transcript, error)
	Name() string
}

// Validator is implemented by backends that can check a credential without transcribing.
type Validator interface {
	Validate(ctx context.Context, credential string) error
}
