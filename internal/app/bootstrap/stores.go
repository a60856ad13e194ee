package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/wolfman30/doctor-booking-platform/internal/admin"
	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/doctors"
	"github.com/wolfman30/doctor-booking-platform/internal/payments"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
)

// Stores groups the persistence the API needs.
type Stores struct {
	Users        users.Repository
	Doctors      doctors.Repository
	Appointments appointments.Store
	Processed    payments.ProcessedTracker
	Counts       admin.CountSource
	Persistent   bool
}

// BuildStores returns Postgres-backed stores for pool, or in-memory stores when pool
// is nil. Memory stores lose everything on restart and are meant for local runs.
func BuildStores(pool *pgxpool.Pool) *Stores {
	if pool == nil {
		userRepo := users.NewInMemoryRepository()
		doctorRepo := doctors.NewInMemoryRepository()
		apptStore := appointments.NewMemoryStore()
		return &Stores{
			Users:        userRepo,
			Doctors:      doctorRepo,
			Appointments: apptStore,
			Processed:    payments.NewMemoryProcessedStore(),
			Counts:       admin.NewMemoryCounts(doctorRepo, userRepo, apptStore),
		}
	}
	return &Stores{
		Users:        users.NewPostgresRepository(pool),
		Doctors:      doctors.NewPostgresRepository(pool),
		Appointments: appointments.NewPostgresStore(pool),
		Processed:    payments.NewPostgresProcessedStore(pool),
		Counts:       admin.NewSQLCounts(stdlib.OpenDBFromPool(pool)),
		Persistent:   true,
	}
}
