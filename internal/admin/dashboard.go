// Package admin serves the clinic dashboard and operator endpoints.
package admin

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/doctors"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
)

// Counts are the dashboard totals. Appointments and Revenue exclude cancelled bookings;
// Revenue only counts paid ones and is in major currency units.
type Counts struct {
	Doctors      int            `json:"doctors"`
	Patients     int            `json:"patients"`
	Appointments int            `json:"appointments"`
	Revenue      int64          `json:"revenue"`
	ByStatus     map[string]int `json:"byStatus"`
}

// CountSource computes dashboard totals.
type CountSource interface {
	Counts(ctx context.Context) (*Counts, error)
}

var dashboardStatuses = []string{
	string(appointments.StatusPending),
	string(appointments.StatusConfirmed),
	string(appointments.StatusCompleted),
	string(appointments.StatusCancelled),
}

// SQLCounts aggregates in the database.
type SQLCounts struct {
	db *sql.DB
}

// NewSQLCounts wraps a database/sql handle.
func NewSQLCounts(db *sql.DB) *SQLCounts {
	return &SQLCounts{db: db}
}

// Counts runs the aggregate queries.
func (s *SQLCounts) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{ByStatus: emptyBreakdown()}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&c.Doctors); err != nil {
		return nil, fmt.Errorf("admin: count doctors: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`, string(identity.RolePatient),
	).Scan(&c.Patients); err != nil {
		return nil, fmt.Errorf("admin: count patients: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount) FILTER (WHERE payment), 0)
		FROM appointments
		WHERE NOT cancelled
	`).Scan(&c.Appointments, &c.Revenue); err != nil {
		return nil, fmt.Errorf("admin: count appointments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM appointments
		WHERE status = ANY($1)
		GROUP BY status
	`, pq.Array(dashboardStatuses))
	if err != nil {
		return nil, fmt.Errorf("admin: status breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("admin: scan breakdown: %w", err)
		}
		c.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: status breakdown: %w", err)
	}
	return c, nil
}

// MemoryCounts aggregates over the in-memory stores used in development.
type MemoryCounts struct {
	doctors      doctors.Repository
	users        users.Repository
	appointments appointments.Store
}

// NewMemoryCounts builds a CountSource over repositories without SQL access.
func NewMemoryCounts(d doctors.Repository, u users.Repository, a appointments.Store) *MemoryCounts {
	return &MemoryCounts{doctors: d, users: u, appointments: a}
}

// Counts walks the stores.
func (m *MemoryCounts) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{ByStatus: emptyBreakdown()}
	docs, err := m.doctors.List(ctx, doctors.ListFilter{})
	if err != nil {
		return nil, err
	}
	c.Doctors = len(docs)
	if c.Patients, err = m.users.CountByRole(ctx, identity.RolePatient); err != nil {
		return nil, err
	}
	all, err := m.appointments.List(ctx, appointments.ListFilter{})
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		c.ByStatus[string(a.Status)]++
		if a.Cancelled {
			continue
		}
		c.Appointments++
		if a.Payment {
			c.Revenue += a.Amount
		}
	}
	return c, nil
}

func emptyBreakdown() map[string]int {
	out := make(map[string]int, len(dashboardStatuses))
	for _, s := range dashboardStatuses {
		out[s] = 0
	}
	return out
}
