package doctors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

func newTestRouter(t *testing.T) (http.Handler, *InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	h := NewHandler(repo, logging.Discard())
	r := chi.NewRouter()
	r.Get("/api/doctors", h.List)
	r.Get("/api/doctors/{doctorID}", h.Get)
	r.Post("/api/admin/doctors", h.Create)
	r.Put("/api/admin/doctors/{doctorID}", h.Update)
	r.Post("/api/admin/doctors/{doctorID}/availability", h.SetAvailability)
	return r, repo
}

func seedDoctor(t *testing.T, repo *InMemoryRepository, name, speciality string, available bool) *Doctor {
	t.Helper()
	d := &Doctor{Name: name, Email: strings.ToLower(strings.ReplaceAll(name, " ", "")) + "@clinic.test", Speciality: speciality, Fees: 500, Available: available}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	return d
}

func TestListOnlyAvailable(t *testing.T) {
	router, repo := newTestRouter(t)
	seedDoctor(t, repo, "Dr Mehta", "Cardiologist", true)
	seedDoctor(t, repo, "Dr Iyer", "Dermatologist", false)
	seedDoctor(t, repo, "Dr Khan", "Dermatologist", true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/doctors?speciality=dermatologist", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Doctors []Doctor `json:"doctors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Doctors) != 1 || body.Doctors[0].Name != "Dr Khan" {
		t.Fatalf("unexpected doctors %+v", body.Doctors)
	}
}

func TestGetUnknownDoctor(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/doctors/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateValidatesAndStores(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/doctors", strings.NewReader(`{"name":"Dr Rao"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}

	payload := `{"name":"Dr Rao","email":"Rao@Clinic.test","speciality":"Neurologist","fees":700,"experience":4}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/doctors", strings.NewReader(payload)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	list, _ := repo.List(context.Background(), ListFilter{})
	if len(list) != 1 || list[0].Email != "rao@clinic.test" || !list[0].Available {
		t.Fatalf("unexpected stored doctors %+v", list)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/doctors", strings.NewReader(payload)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rec.Code)
	}
}

func TestUpdateAndToggleAvailability(t *testing.T) {
	router, repo := newTestRouter(t)
	d := seedDoctor(t, repo, "Dr Mehta", "Cardiologist", true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/doctors/"+d.ID, strings.NewReader(`{"fees":900}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got, _ := repo.GetByID(context.Background(), d.ID)
	if got.Fees != 900 {
		t.Fatalf("expected fees 900, got %d", got.Fees)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/doctors/"+d.ID+"/availability", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got, _ = repo.GetByID(context.Background(), d.ID)
	if got.Available {
		t.Fatal("expected availability toggled off")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/doctors/"+d.ID+"/availability", strings.NewReader(`{"available":true}`)))
	got, _ = repo.GetByID(context.Background(), d.ID)
	if rec.Code != http.StatusOK || !got.Available {
		t.Fatalf("expected explicit availability true, code %d", rec.Code)
	}
}
