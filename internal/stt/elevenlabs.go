package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/audio"
	"github.com/dvloznov/expense-voice/internal/retry"
)

const (
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	DefaultElevenLabsModel   = "scribe_v1"
)

// ElevenLabsConfig configures an ElevenLabsClient.
type ElevenLabsConfig struct {
	APIKey  string
	ModelID string
	BaseURL string
	Timeout time.Duration
	Retry   retry.Config
}

// ElevenLabsClient talks to the ElevenLabs Scribe REST API.
type ElevenLabsClient struct {
	apiKey     string
	modelID    string
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
	log        zerolog.Logger
}

// NewElevenLabsClient creates a client. Zero config fields take defaults.
func NewElevenLabsClient(cfg ElevenLabsConfig, log zerolog.Logger) *ElevenLabsClient {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultElevenLabsModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &ElevenLabsClient{
		apiKey:     cfg.APIKey,
		modelID:    cfg.ModelID,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      cfg.Retry,
		log:        log.With().Str("provider", "elevenlabs").Logger(),
	}
}

// Name identifies the provider in logs and errors.
func (c *ElevenLabsClient) Name() string { return "elevenlabs" }

// HasAPIKey reports whether a key is configured.
func (c *ElevenLabsClient) HasAPIKey() bool { return c.apiKey != "" }

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends the clip to Scribe and returns the recognized text.
func (c *ElevenLabsClient) Transcribe(ctx context.Context, clip Audio) (string, error) {
	if !c.HasAPIKey() {
		return "", fmt.Errorf("elevenlabs: API key not configured")
	}

	var result transcriptionResponse
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		body, contentType, err := c.transcriptionForm(clip)
		if err != nil {
			return err
		}
		resp, err := c.post(ctx, "/v1/speech-to-text", body, contentType)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return readProviderError(resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		c.log.Error().Err(err).Str("file", clip.name()).Msg("Transcription failed")
		return "", fmt.Errorf("elevenlabs: %w", err)
	}

	c.log.Debug().Str("file", clip.name()).Int("chars", len(result.Text)).Msg("Transcription succeeded")
	return result.Text, nil
}

func (c *ElevenLabsClient) transcriptionForm(clip Audio) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, clip.name()))
	header.Set("Content-Type", clip.MIMEType())
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	if err := writer.WriteField("model_id", c.modelID); err != nil {
		return nil, "", fmt.Errorf("writing model field: %w", err)
	}
	if err := writer.WriteField("timestamps_granularity", "word"); err != nil {
		return nil, "", fmt.Errorf("writing granularity field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func (c *ElevenLabsClient) post(ctx context.Context, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

func readProviderError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ProviderError{Provider: "elevenlabs", StatusCode: resp.StatusCode, Body: string(respBody)}
}

// ProbeStatus summarizes whether a key can be used for speech-to-text.
type ProbeStatus string

const (
	ProbeValid        ProbeStatus = "valid"
	ProbeRateLimited  ProbeStatus = "rate_limited"
	ProbeNoPermission ProbeStatus = "no_permission"
	ProbeNoCredits    ProbeStatus = "no_credits"
	ProbeMissingKey   ProbeStatus = "missing_key"
	ProbeError        ProbeStatus = "error"
)

// ProbeResult is the outcome of Probe.
type ProbeResult struct {
	Status         ProbeStatus `json:"status" yaml:"status"`
	Message        string      `json:"message" yaml:"message"`
	HasAPIKey      bool        `json:"has_api_key" yaml:"has_api_key"`
	UserEmail      string      `json:"user_email,omitempty" yaml:"user_email,omitempty"`
	UserStatusCode int         `json:"user_status_code,omitempty" yaml:"user_status_code,omitempty"`
	STTStatusCode  int         `json:"stt_status_code,omitempty" yaml:"stt_status_code,omitempty"`
}

// OK reports whether the key can transcribe.
func (r *ProbeResult) OK() bool {
	return r.Status == ProbeValid || r.Status == ProbeRateLimited
}

// Probe checks the key against the user endpoint and then sends half a
// second of silence to speech-to-text. 422 on silence still proves the key works.
func (c *ElevenLabsClient) Probe(ctx context.Context) *ProbeResult {
	res := &ProbeResult{HasAPIKey: c.HasAPIKey()}
	if !res.HasAPIKey {
		res.Status = ProbeMissingKey
		res.Message = "ELEVENLABS_API_KEY is not set"
		return res
	}

	if err := c.probeUser(ctx, res); err != nil {
		res.Status = ProbeError
		res.Message = err.Error()
		return res
	}

	silence := audio.EncodeWAV(make([]int16, audio.DefaultSampleRate/2), audio.DefaultSampleRate, 1)
	body, contentType, err := c.transcriptionForm(Audio{Data: silence, Filename: "test.wav", ContentType: "audio/wav"})
	if err != nil {
		res.Status = ProbeError
		res.Message = err.Error()
		return res
	}
	resp, err := c.post(ctx, "/v1/speech-to-text", body, contentType)
	if err != nil {
		res.Status = ProbeError
		res.Message = err.Error()
		return res
	}
	defer resp.Body.Close()
	res.STTStatusCode = resp.StatusCode

	switch resp.StatusCode {
	case http.StatusOK:
		res.Status = ProbeValid
		res.Message = "API key works for speech-to-text"
	case http.StatusUnprocessableEntity:
		res.Status = ProbeValid
		res.Message = "API key is valid (test audio was rejected)"
	case http.StatusTooManyRequests:
		res.Status = ProbeRateLimited
		res.Message = "Temporarily rate limited, but the key appears valid"
	case http.StatusUnauthorized:
		res.Status = ProbeNoPermission
		res.Message = "API key has no speech-to-text permission"
	case http.StatusPaymentRequired:
		res.Status = ProbeNoCredits
		res.Message = "Account has insufficient credits"
	default:
		res.Status = ProbeError
		res.Message = readProviderError(resp).Error()
	}

	c.log.Info().Str("status", string(res.Status)).Int("stt_status", res.STTStatusCode).Msg("Probed API key")
	return res
}

func (c *ElevenLabsClient) probeUser(ctx context.Context, res *ProbeResult) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/user", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	res.UserStatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("Unexpected status from user endpoint")
		return nil
	}

	var user struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err == nil {
		res.UserEmail = user.Email
	}
	return nil
}
