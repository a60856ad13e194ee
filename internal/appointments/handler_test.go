package appointments

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/internal/payments"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(f.svc, logging.Discard())
	r := chi.NewRouter()
	r.Get("/api/doctors/{doctorID}/slots", h.Slots)
	r.Post("/api/appointments", h.Book)
	r.Get("/api/appointments", h.ListMine)
	r.Get("/api/appointments/{appointmentID}", h.Get)
	r.Post("/api/appointments/{appointmentID}/cancel", h.Cancel)
	r.Post("/api/appointments/{appointmentID}/order", h.RequestOrder)
	r.Post("/api/payments/verify", h.ConfirmPayment)
	r.Get("/api/admin/appointments", h.ListAll)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, caller *identity.Principal, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req = req.WithContext(identity.WithPrincipal(req.Context(), *caller))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestHandlerBookAndVerify(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	rec, body := doJSON(t, router, http.MethodPost, "/api/appointments", &f.patient, map[string]string{
		"docId": f.doctor.ID, "slotDate": "6_1_2025", "slotTime": "10:30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.Equal(t, true, body["success"])
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, float64(50000), body["amount"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/appointments", &f.patient, map[string]string{
		"docId": f.doctor.ID, "slotDate": "6_1_2025", "slotTime": "10:30",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot not available", body["message"])

	verify := map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_77",
		"razorpay_signature":  payments.Sign(testKeySecret, orderID, "pay_77"),
	}
	rec, body = doJSON(t, router, http.MethodPost, "/api/payments/verify", &f.patient, verify)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, false, body["alreadyConfirmed"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/payments/verify", &f.patient, verify)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["alreadyConfirmed"])

	verify["razorpay_signature"] = "deadbeef"
	rec, _ = doJSON(t, router, http.MethodPost, "/api/payments/verify", &f.patient, verify)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRequiresCaller(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	rec, body := doJSON(t, router, http.MethodPost, "/api/appointments", nil, map[string]string{"docId": f.doctor.ID})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestHandlerGatewayFailureReturnsAppointment(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	f.gateway.FailWith(errors.New("boom"))

	rec, body := doJSON(t, router, http.MethodPost, "/api/appointments", &f.patient, map[string]string{
		"docId": f.doctor.ID, "slotDate": "6_1_2025", "slotTime": "16:00",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	appt, ok := body["appointment"].(map[string]any)
	require.True(t, ok, body)
	id, _ := appt["id"].(string)
	require.NotEmpty(t, id)

	f.gateway.FailWith(nil)
	rec, body = doJSON(t, router, http.MethodPost, "/api/appointments/"+id+"/order", &f.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.NotEmpty(t, body["orderId"])
}

func TestHandlerCancelAndList(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	res := f.book(t, "6_1_2025", "10:30")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/appointments/"+res.Appointment.ID+"/cancel", &f.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/appointments/"+res.Appointment.ID+"/cancel", &f.patient, map[string]string{"reason": "travelling"})
	require.Equal(t, http.StatusOK, rec.Code, body)

	rec, body = doJSON(t, router, http.MethodGet, "/api/admin/appointments?status=cancelled", &f.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list, _ := body["appointments"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "travelling", list[0].(map[string]any)["cancellationReason"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/admin/appointments?status=bogus", &f.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/api/doctors/"+f.doctor.ID+"/slots", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days, _ := body["days"].([]any)
	assert.Len(t, days, 7)
}

func TestHandlerListMineEmptyIsArray(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	rec, body := doJSON(t, router, http.MethodGet, "/api/appointments", &f.other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := body["appointments"].([]any)
	assert.True(t, ok, "expected [] not null, got %v", body["appointments"])
	assert.Empty(t, list)
}
