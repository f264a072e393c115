package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
	"github.com/pesio-ai/be-mfg-scans/internal/logger"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
	"github.com/pesio-ai/be-mfg-scans/internal/service"
)

// ScanServiceInterface is what the transport layers need from the engine
type ScanServiceInterface interface {
	Scan(ctx context.Context, req *service.ScanRequest) *service.Result
	Rework(ctx context.Context, req *service.ReworkRequest) *service.Result
	Status(ctx context.Context, workplace, article string) (*service.Status, error)
	LookupRecords(ctx context.Context, code string) ([]*repository.ScanRecord, error)
	PalletLabel(ctx context.Context, workplace, article string) (string, error)
	InvalidateRule(ctx context.Context, workplace, article string) error
}

// Pinger reports storage health
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	service   ScanServiceInterface
	localizer *Localizer
	db        Pinger
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler. db may be nil.
func NewHTTPHandler(svc ScanServiceInterface, localizer *Localizer, db Pinger, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service:   svc,
		localizer: localizer,
		db:        db,
		log:       log.Component("http"),
	}
}

// Routes registers every endpoint on mux
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/api/v1/scans", h.Scan)
	mux.HandleFunc("/api/v1/scans/status", h.Status)
	mux.HandleFunc("/api/v1/scans/rework", h.Rework)
	mux.HandleFunc("/api/v1/scans/rework-container", h.ReworkContainer)
	mux.HandleFunc("/api/v1/scans/record", h.Record)
	mux.HandleFunc("/api/v1/labels/pallet", h.PalletLabel)
	mux.HandleFunc("/api/v1/rules/invalidate", h.InvalidateRule)
}

// ScanResponse is the body of every scan and rework response
type ScanResponse struct {
	*service.Result
	Message string `json:"message"`
	Cue     Cue    `json:"cue"`
}

// Scan handles POST /api/v1/scans
func (h *HTTPHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res := h.service.Scan(r.Context(), &req)
	h.writeResult(w, r, res)
}

// Rework handles POST /api/v1/scans/rework for a single unit
func (h *HTTPHandler) Rework(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.ReworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ContainerBatch = ""

	res := h.service.Rework(r.Context(), &req)
	h.writeResult(w, r, res)
}

// ReworkContainer handles POST /api/v1/scans/rework-container
func (h *HTTPHandler) ReworkContainer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.ReworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ContainerBatch) == "" {
		writeError(w, http.StatusBadRequest, "container_batch is required")
		return
	}
	req.Code = ""

	res := h.service.Rework(r.Context(), &req)
	h.writeResult(w, r, res)
}

// Status handles GET /api/v1/scans/status
func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workplace := r.URL.Query().Get("workplace")
	article := r.URL.Query().Get("article")
	if workplace == "" || article == "" {
		writeError(w, http.StatusBadRequest, "workplace and article are required")
		return
	}

	st, err := h.service.Status(r.Context(), workplace, article)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Record handles GET /api/v1/scans/record
func (h *HTTPHandler) Record(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := h.service.LookupRecords(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// PalletLabel handles GET /api/v1/labels/pallet
func (h *HTTPHandler) PalletLabel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workplace := r.URL.Query().Get("workplace")
	article := r.URL.Query().Get("article")
	if workplace == "" || article == "" {
		writeError(w, http.StatusBadRequest, "workplace and article are required")
		return
	}

	label, err := h.service.PalletLabel(r.Context(), workplace, article)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"label": label})
}

// InvalidateRuleRequest names the rule to drop from the caches
type InvalidateRuleRequest struct {
	Workplace string `json:"workplace"`
	Article   string `json:"article"`
}

// InvalidateRule handles POST /api/v1/rules/invalidate
func (h *HTTPHandler) InvalidateRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req InvalidateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Workplace == "" || req.Article == "" {
		writeError(w, http.StatusBadRequest, "workplace and article are required")
		return
	}

	if err := h.service.InvalidateRule(r.Context(), req.Workplace, req.Article); err != nil {
		h.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /health
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Health check: database unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HTTPHandler) writeResult(w http.ResponseWriter, r *http.Request, res *service.Result) {
	writeJSON(w, HTTPStatusFor(res), &ScanResponse{
		Result:  res,
		Message: h.localizer.Message(r.Header.Get("Accept-Language"), res),
		Cue:     CueFor(res.Reason),
	})
}

func (h *HTTPHandler) writeAppError(w http.ResponseWriter, err error) {
	var status int
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidInput:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrCodeConflict:
		status = http.StatusConflict
	case apperrors.ErrCodeUnavailable:
		status = http.StatusServiceUnavailable
	default:
		h.log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// HTTPStatusFor maps a result tag to a response status
func HTTPStatusFor(res *service.Result) int {
	switch res.Reason {
	case scancode.OK:
		if res.Kind == service.KindUnit && res.Record != nil {
			return http.StatusCreated
		}
		return http.StatusOK
	case scancode.InvalidRequest:
		return http.StatusBadRequest
	case scancode.RuleNotFound, scancode.NotFound:
		return http.StatusNotFound
	case scancode.Exists:
		return http.StatusConflict
	case scancode.ExternalCheckUnavailable:
		return http.StatusServiceUnavailable
	case scancode.FetchError:
		return http.StatusBadGateway
	case scancode.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
