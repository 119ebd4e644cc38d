package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultFilename = "voice-message.ogg"

// ErrModelUnavailable is wrapped in an auth error when a key works but cannot use the model.
var ErrModelUnavailable = errors.New("API key does not have access to the transcription model")

// OpenAIConfig configures the Whisper backend.
type OpenAIConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI transcribes audio with the OpenAI audio transcription endpoint.
type OpenAI struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAI creates a Whisper backend. It keeps no credential; every call brings its own.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (o *OpenAI) Name() string {
	return "OpenAI " + o.model
}

func (o *OpenAI) client(credential string) *openai.Client {
	c := openai.DefaultConfig(credential)
	if o.baseURL != "" {
		c.BaseURL = o.baseURL
	}
	c.HTTPClient = o.httpClient
	return openai.NewClientWithConfig(c)
}

// Transcribe sends the audio in one request and returns the text of the JSON response.
func (o *OpenAI) Transcribe(ctx context.Context, req Request) (Transcript, error) {
	const op = "openai transcription"
	if req.Credential == "" {
		return Transcript{}, authError(op, 0, ErrMissingCredential)
	}
	filename := req.Filename
	if filename == "" {
		filename = defaultFilename
	}

	resp, err := o.client(req.Credential).CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: filename,
		Reader:   req.Audio,
		Language: req.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return Transcript{}, classifyOpenAIError(op, err)
	}

	return Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}, nil
}

// Validate checks the key by listing models and looking for the configured one.
func (o *OpenAI) Validate(ctx context.Context, credential string) error {
	const op = "openai key validation"
	if credential == "" {
		return authError(op, 0, ErrMissingCredential)
	}
	models, err := o.client(credential).ListModels(ctx)
	if err != nil {
		return classifyOpenAIError(op, err)
	}
	for _, m := range models.Models {
		if m.ID == o.model {
			return nil
		}
	}
	return authError(op, 0, fmt.Errorf("%w: %s", ErrModelUnavailable, o.model))
}

func classifyOpenAIError(op string, err error) *Error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return classifyStatus(op, reqErr.HTTPStatusCode, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return classifyStatus(op, apiErr.HTTPStatusCode, err)
	}
	if isTransportError(err) {
		return networkError(op, err)
	}
	// Anything else came back from the API but could not be decoded.
	return upstreamError(op, 0, err)
}

func classifyStatus(op string, status int, err error) *Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return authError(op, status, err)
	default:
		return upstreamError(op, status, err)
	}
}
