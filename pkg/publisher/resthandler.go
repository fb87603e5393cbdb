package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// HandlerConfig tunes the REST surface.
type HandlerConfig struct {
	// APIKey, when set, must be presented by callers in the X-API-Key
	// header. Empty disables the check; role enforcement is normally the
	// hosting environment's job.
	APIKey string `yaml:"api_key" json:"api_key"`
}

// NewHandler builds the HTTP surface for the publisher service:
//
//	POST /cloud-publisher/publish  - publish a metric list
//	GET  /healthz                  - liveness probe
func NewHandler(service *Service, cfg HandlerConfig, logger zerolog.Logger) http.Handler {
	h := &restHandler{
		service: service,
		apiKey:  cfg.APIKey,
		logger:  logger.With().Str("component", "restHandler").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cloud-publisher/publish", h.handlePublish)
	mux.HandleFunc("/healthz", h.handleHealth)
	return mux
}

type restHandler struct {
	service *Service
	apiKey  string
	logger  zerolog.Logger
}

func (h *restHandler) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.apiKey != "" && r.Header.Get("X-API-Key") != h.apiKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var request *PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to decode publish request body")
		h.writePlainError(w, http.StatusBadRequest, badRequestErrorMessage)
		return
	}
	h.logger.Debug().Interface("request", request).Msg("Publish request received")

	messageID, err := h.service.PublishMetrics(r.Context(), request)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// The success body is a bare JSON integer, the message id.
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, "%d", messageID)
}

func (h *restHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeError maps the error taxonomy onto HTTP responses. Validation,
// parse and publish failures are all the caller's 400; a publish failure
// carries the backend's own message as the body.
func (h *restHandler) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.writePlainError(w, http.StatusBadRequest, validationErr.Message)
		return
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		h.writePlainError(w, http.StatusBadRequest, parseErr.Error())
		return
	}
	var publishErr *PublishError
	if errors.As(err, &publishErr) {
		h.writePlainError(w, http.StatusBadRequest, publishErr.Err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("Unexpected error handling publish request")
	h.writePlainError(w, http.StatusInternalServerError, "Internal server error")
}

func (h *restHandler) writePlainError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
