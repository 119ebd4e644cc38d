package stt

import (
	"context"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultGoogleLanguage   = "en-US"
	defaultOpusSampleRateHz = 48000
)

// recognizer is the part of the Cloud Speech client the backend uses.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

type speechClient struct {
	c *speech.Client
}

func (s speechClient) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return s.c.Recognize(ctx, req)
}

func (s speechClient) Close() error {
	return s.c.Close()
}

// Google transcribes audio with a synchronous Cloud Speech Recognize call.
type Google struct {
	newRecognizer func(ctx context.Context, credential string) (recognizer, error)
}

// NewGoogle creates a Cloud Speech backend that authenticates with an API key per call.
func NewGoogle() *Google {
	return &Google{
		newRecognizer: func(ctx context.Context, credential string) (recognizer, error) {
			c, err := speech.NewClient(ctx, option.WithAPIKey(credential))
			if err != nil {
				return nil, err
			}
			return speechClient{c: c}, nil
		},
	}
}

func (g *Google) Name() string {
	return "Google Cloud Speech"
}

func (g *Google) Transcribe(ctx context.Context, req Request) (Transcript, error) {
	const op = "google transcription"
	if req.Credential == "" {
		return Transcript{}, authError(op, 0, ErrMissingCredential)
	}
	audio, err := io.ReadAll(req.Audio)
	if err != nil {
		return Transcript{}, upstreamError(op, 0, fmt.Errorf("could not read audio: %w", err))
	}

	client, err := g.newRecognizer(ctx, req.Credential)
	if err != nil {
		return Transcript{}, networkError(op, err)
	}
	defer func() { _ = client.Close() }()

	sampleRate := opusSampleRate(req.SampleRate)
	lang := req.Language
	if lang == "" {
		lang = defaultGoogleLanguage
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz:            int32(sampleRate),
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Transcript{}, classifyGRPCError(op, err)
	}

	var parts []string
	detected := ""
	for _, result := range resp.GetResults() {
		if detected == "" {
			detected = result.GetLanguageCode()
		}
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}

	t := Transcript{
		Text:     strings.Join(parts, " "),
		Language: detected,
	}
	if billed := resp.GetTotalBilledTime(); billed != nil {
		t.Duration = billed.AsDuration()
	}
	return t, nil
}

// opusSampleRate returns rate when OGG_OPUS accepts it and 48000 otherwise. The Ogg
// header carries the encoder's input rate, which can be anything.
func opusSampleRate(rate int) int {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return rate
	default:
		return defaultOpusSampleRateHz
	}
}

func classifyGRPCError(op string, err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		if isTransportError(err) {
			return networkError(op, err)
		}
		return upstreamError(op, 0, err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return authError(op, 0, err)
	case codes.InvalidArgument:
		// Cloud APIs reject a bad key as an invalid argument.
		if strings.Contains(st.Message(), "API key") {
			return authError(op, 0, err)
		}
		return upstreamError(op, 0, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return networkError(op, err)
	default:
		return upstreamError(op, 0, err)
	}
}
