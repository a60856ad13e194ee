package doctors

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// Handler serves the doctor catalog and its admin management endpoints.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a doctor handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	return &Handler{repo: repo, logger: logging.OrDefault(logger)}
}

// List handles GET /api/doctors. Only available doctors are listed publicly.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Speciality:    strings.TrimSpace(r.URL.Query().Get("speciality")),
		OnlyAvailable: true,
	}
	list, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []*Doctor{}
	}
	respond.OK(w, http.StatusOK, map[string]any{"doctors": list})
}

// ListAll handles GET /api/admin/doctors.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context(), ListFilter{})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []*Doctor{}
	}
	respond.OK(w, http.StatusOK, map[string]any{"doctors": list})
}

// Get handles GET /api/doctors/{doctorID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"doctor": doc})
}

// Create handles POST /api/admin/doctors.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	doc, err := in.NewDoctor()
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := h.repo.Create(r.Context(), doc); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.logger.Info("doctor added", "doctor_id", doc.ID, "speciality", doc.Speciality)
	respond.OK(w, http.StatusCreated, map[string]any{"message": "Doctor added", "doctor": doc})
}

// Update handles PUT /api/admin/doctors/{doctorID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	doc, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := in.Apply(doc); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := h.repo.Update(r.Context(), doc); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"message": "Doctor updated", "doctor": doc})
}

// SetAvailability handles POST /api/admin/doctors/{doctorID}/availability.
// Without a body it toggles the current flag.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "doctorID")
	var body struct {
		Available *bool `json:"available"`
	}
	if r.ContentLength > 0 {
		if err := respond.Decode(r, &body); err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}
	}
	if body.Available == nil {
		doc, err := h.repo.GetByID(r.Context(), id)
		if err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}
		toggled := !doc.Available
		body.Available = &toggled
	}
	doc, err := h.repo.SetAvailability(r.Context(), id, *body.Available)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.logger.Info("doctor availability changed", "doctor_id", doc.ID, "available", doc.Available)
	respond.OK(w, http.StatusOK, map[string]any{"message": "Availability changed", "doctor": doc})
}
