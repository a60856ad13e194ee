package appointments

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

var errUnauthorized = apperr.New(apperr.KindUnauthorized, "not authorized")

// Handler exposes booking, payment and cancellation over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logging.OrDefault(logger)}
}

// Slots handles GET /api/doctors/{doctorID}/slots.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.svc.AvailableSlots(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"days": buckets})
}

// Book handles POST /api/appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	var req BookRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	req.PatientID = caller.UserID

	result, err := h.svc.Book(r.Context(), req)
	if err != nil {
		h.orderError(w, r, result, err)
		return
	}
	respond.OK(w, http.StatusCreated, bookingFields(result))
}

// RequestOrder handles POST /api/appointments/{appointmentID}/order.
func (h *Handler) RequestOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	result, err := h.svc.RequestOrder(r.Context(), caller, chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.orderError(w, r, result, err)
		return
	}
	respond.OK(w, http.StatusOK, bookingFields(result))
}

// orderError reports a failed order while still handing back the pending appointment,
// so the client knows what to retry.
func (h *Handler) orderError(w http.ResponseWriter, r *http.Request, result *BookingResult, err error) {
	if result == nil || result.Appointment == nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	status := apperr.HTTPStatus(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path, "status", status)
	}
	respond.JSON(w, status, map[string]any{
		"success":     false,
		"message":     apperr.Message(err),
		"appointment": result.Appointment,
	})
}

func bookingFields(result *BookingResult) map[string]any {
	return map[string]any{
		"appointment": result.Appointment,
		"orderId":     result.OrderID,
		"amount":      result.Amount,
		"currency":    result.Currency,
		"keyId":       result.KeyID,
	}
}

// ConfirmPayment handles POST /api/payments/verify.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	var req ConfirmRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	res, err := h.svc.ConfirmPayment(r.Context(), caller, req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	message := "Payment successful"
	if res.AlreadyConfirmed {
		message = "Payment already confirmed"
	}
	respond.OK(w, http.StatusOK, map[string]any{
		"message":          message,
		"appointment":      res.Appointment,
		"alreadyConfirmed": res.AlreadyConfirmed,
	})
}

// ListMine handles GET /api/appointments.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	list, err := h.svc.ListMine(r.Context(), caller)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"appointments": list})
}

// Get handles GET /api/appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	view, err := h.svc.Get(r.Context(), caller, chi.URLParam(r, "appointmentID"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"appointment": view})
}

// Cancel handles POST /api/appointments/{appointmentID}/cancel. The body is optional.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		respond.Error(w, r, h.logger, errUnauthorized)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := respond.Decode(r, &body); err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}
	}
	view, err := h.svc.Cancel(r.Context(), caller, chi.URLParam(r, "appointmentID"), body.Reason)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"message": "Appointment cancelled", "appointment": view})
}

// ListAll handles GET /api/admin/appointments?status=pending,confirmed&doctorId=&limit=.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{DoctorID: strings.TrimSpace(q.Get("doctorId"))}
	for _, raw := range strings.Split(q.Get("status"), ",") {
		switch st := Status(strings.ToLower(strings.TrimSpace(raw))); st {
		case "":
		case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
			filter.Statuses = append(filter.Statuses, st)
		default:
			respond.Error(w, r, h.logger, apperr.Validation("unknown status "+string(st)))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.Error(w, r, h.logger, apperr.Validation("limit must be a positive integer"))
			return
		}
		filter.Limit = n
	}
	list, err := h.svc.ListAll(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"appointments": list})
}
