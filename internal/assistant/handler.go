package assistant

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

var errUnauthorized = apperr.New(apperr.KindUnauthorized, "not authorized")

// Handler exposes the assistant endpoints.
type Handler struct {
	svc    *Service
	skin   *SkinAnalyzer
	logger *logging.Logger
}

// NewHandler creates an assistant handler. A nil skin analyzer disables image analysis.
func NewHandler(svc *Service, skin *SkinAnalyzer, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, skin: skin, logger: logging.OrDefault(logger)}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// Chat handles POST /api/ai/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	var req chatRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	reply, err := h.svc.Chat(r.Context(), caller.UserID, req.SessionID, req.Message)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"data": reply})
}

// ClearChat handles DELETE /api/ai/chat?sessionId=.
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	h.svc.ClearHistory(caller.UserID, r.URL.Query().Get("sessionId"))
	respond.OK(w, http.StatusOK, map[string]any{"message": "Chat history cleared"})
}

// Medications handles POST /api/ai/medications.
func (h *Handler) Medications(w http.ResponseWriter, r *http.Request) {
	var req MedicationRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	advice, err := h.svc.Medications(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"data": advice})
}

// HealthTips handles GET /api/ai/health-tips?count=.
func (h *Handler) HealthTips(w http.ResponseWriter, r *http.Request) {
	n := 3
	if raw := r.URL.Query().Get("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			respond.Error(w, r, h.logger, apperr.Validation("count must be a positive integer"))
			return
		}
		n = v
	}
	respond.OK(w, http.StatusOK, map[string]any{"tips": h.svc.HealthTips(n)})
}

// AnalyzeSkin handles POST /api/skin/analyze as multipart with an "image" file.
func (h *Handler) AnalyzeSkin(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	if h.skin == nil {
		respond.Fail(w, http.StatusServiceUnavailable, "image analysis is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, r, h.logger, apperr.Validation("image must be 5 MB or smaller"))
			return
		}
		respond.Error(w, r, h.logger, apperr.Wrap(apperr.KindValidation, "multipart form with an image field required", err))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Validation("image is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Wrap(apperr.KindValidation, "could not read image", err))
		return
	}
	analysis, err := h.skin.Analyze(r.Context(), caller.UserID, data)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"analysis": analysis})
}
