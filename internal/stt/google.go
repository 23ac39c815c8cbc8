package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// recognizer is the subset of the Cloud Speech client used here.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// GoogleConfig configures a GoogleTranscriber.
type GoogleConfig struct {
	LanguageCode    string
	CredentialsFile string
	// SampleRate applies to WAV input only. Zero lets the service read the header.
	SampleRate int
}

// GoogleTranscriber uses Cloud Speech-to-Text synchronous recognition.
type GoogleTranscriber struct {
	client   recognizer
	language string
	rate     int32
	log      zerolog.Logger
}

// NewGoogleTranscriber creates a client using Application Default Credentials,
// or CredentialsFile when set.
func NewGoogleTranscriber(ctx context.Context, cfg GoogleConfig, log zerolog.Logger) (*GoogleTranscriber, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGoogleTranscriber: create speech client: %w", err)
	}
	return newGoogleTranscriber(client, cfg, log), nil
}

func newGoogleTranscriber(client recognizer, cfg GoogleConfig, log zerolog.Logger) *GoogleTranscriber {
	lang := cfg.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	return &GoogleTranscriber{
		client:   client,
		language: lang,
		rate:     int32(cfg.SampleRate),
		log:      log.With().Str("provider", "google").Logger(),
	}
}

// Name identifies the provider in logs and errors.
func (g *GoogleTranscriber) Name() string { return "google" }

// Close releases the underlying connection.
func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}

// Transcribe recognizes the clip and joins the best alternative of each result.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, clip Audio) (string, error) {
	cfg := &speechpb.RecognitionConfig{
		Encoding:     encodingFor(clip),
		LanguageCode: g.language,
	}
	if cfg.Encoding == speechpb.RecognitionConfig_LINEAR16 && g.rate > 0 {
		cfg.SampleRateHertz = g.rate
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.Data}},
	})
	if err != nil {
		g.log.Error().Err(err).Str("file", clip.name()).Msg("Recognize failed")
		return "", fmt.Errorf("google: recognize: %w", err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

func encodingFor(clip Audio) speechpb.RecognitionConfig_AudioEncoding {
	switch clip.Ext() {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
