package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/api/middleware"
	"github.com/dvloznov/expense-voice/internal/logger"
	"github.com/dvloznov/expense-voice/internal/pipeline"
	"github.com/dvloznov/expense-voice/internal/stt"
)

// ExpenseService runs the text and speech pipelines.
type ExpenseService interface {
	ProcessText(ctx context.Context, text string, categories []string) (*pipeline.ClassificationResult, error)
	ProcessAudio(ctx context.Context, audio stt.Audio, categories []string) (*pipeline.ClassificationResult, error)
}

// Prober checks speech-to-text credentials.
type Prober interface {
	Probe(ctx context.Context) *stt.ProbeResult
}

// ExpenseHandler serves the classification endpoints.
type ExpenseHandler struct {
	svc            ExpenseService
	categories     []string
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewExpenseHandler creates a new expense handler. categories is the list
// reported by GET /categories and used when a speech request names none.
func NewExpenseHandler(svc ExpenseService, categories []string, maxUploadBytes int64, log zerolog.Logger) *ExpenseHandler {
	if len(categories) == 0 {
		categories = pipeline.DefaultCategories()
	}
	return &ExpenseHandler{
		svc:            svc,
		categories:     categories,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// ClassifyExpense handles POST /classify-expense
func (h *ExpenseHandler) ClassifyExpense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string   `json:"text"`
		Categories []string `json:"categories"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" || len(req.Categories) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Missing text or categories")
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	result, err := h.svc.ProcessText(ctx, text, req.Categories)
	switch {
	case errors.Is(err, pipeline.ErrTranslationFailed):
		log.Error().Err(err).Msg("Translation failed")
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Translation failed", err.Error(), nil)
		return
	case errors.Is(err, pipeline.ErrUpstreamFailure):
		log.Error().Err(err).Msg("Classification failed")
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Classification failed", err.Error(), nil)
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to classify expense")
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Classification failed", err.Error(), nil)
		return
	}

	if len(result.ClassifiedItems) == 0 {
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Classification failed", "Empty list returned", nil)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// SpeechToText handles POST /speech-to-text
func (h *ExpenseHandler) SpeechToText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Audio file too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded audio")
		middleware.WriteError(w, http.StatusBadRequest, "No audio file provided")
		return
	}

	categories := nonEmpty(r.MultipartForm.Value["categories"])
	if len(categories) == 0 {
		categories = h.categories
	}

	audio := stt.Audio{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
	log.Info().
		Str("filename", audio.Filename).
		Int("bytes", len(data)).
		Str("content_type", audio.ContentType).
		Msg("Processing audio file")

	result, err := h.svc.ProcessAudio(ctx, audio, categories)
	switch {
	case errors.Is(err, pipeline.ErrNoSpeech):
		log.Warn().Msg("Empty transcript received")
		middleware.WriteErrorDetails(w, http.StatusBadRequest, "No speech detected",
			"The audio file did not produce any transcribed text",
			map[string]interface{}{
				"original_text":    "",
				"translated_text":  "",
				"classified_items": []pipeline.ExpenseRecord{},
			})
		return
	case errors.Is(err, pipeline.ErrTranscriptionFailed):
		log.Error().Err(err).Msg("Speech-to-text failed")
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Speech-to-text service unavailable", err.Error(),
			map[string]interface{}{
				"suggestion": "Please try using the text classification endpoint directly",
			})
		return
	case errors.Is(err, pipeline.ErrTranslationFailed):
		log.Error().Err(err).Msg("Translation failed")
		var transcript string
		var te *pipeline.TranslationError
		if errors.As(err, &te) {
			transcript = te.OriginalText
		}
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Translation failed", err.Error(),
			map[string]interface{}{
				"original_text":    transcript,
				"translated_text":  "",
				"classified_items": []pipeline.ExpenseRecord{},
			})
		return
	case errors.Is(err, pipeline.ErrUpstreamFailure):
		log.Error().Err(err).Msg("Classification failed")
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Classification failed", err.Error(), nil)
		return
	case err != nil:
		log.Error().Err(err).Msg("Unexpected error in speech-to-text endpoint")
		middleware.WriteErrorDetails(w, http.StatusInternalServerError, "Speech processing failed", err.Error(),
			map[string]interface{}{
				"debug_info": map[string]interface{}{
					"audio_filename":     audio.Filename,
					"audio_content_type": audio.ContentType,
					"categories":         categories,
				},
			})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// ListCategories handles GET /categories
func (h *ExpenseHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": h.categories,
		"count":      len(h.categories),
	})
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// StatusHandler serves liveness and provider checks.
type StatusHandler struct {
	prober Prober
	now    func() time.Time
	log    zerolog.Logger
}

// NewStatusHandler creates a StatusHandler. prober may be nil when no
// ElevenLabs client is configured.
func NewStatusHandler(prober Prober, log zerolog.Logger) *StatusHandler {
	return &StatusHandler{prober: prober, now: time.Now, log: log}
}

// Root handles GET /
func (h *StatusHandler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// Health handles GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().Format(time.RFC3339),
	})
}

// TestElevenLabs handles GET /test-elevenlabs
func (h *StatusHandler) TestElevenLabs(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, &stt.ProbeResult{
			Status:  stt.ProbeMissingKey,
			Message: "ElevenLabs is not configured",
		})
		return
	}

	res := h.prober.Probe(r.Context())
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusInternalServerError
	}
	middleware.WriteJSON(w, status, res)
}

// Routes registers every endpoint on a new mux.
func Routes(expenses *ExpenseHandler, status *StatusHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /classify-expense", expenses.ClassifyExpense)
	mux.HandleFunc("POST /speech-to-text", expenses.SpeechToText)
	mux.HandleFunc("GET /categories", expenses.ListCategories)
	mux.HandleFunc("GET /health", status.Health)
	mux.HandleFunc("GET /test-elevenlabs", status.TestElevenLabs)
	mux.HandleFunc("GET /", status.Root)
	return mux
}
