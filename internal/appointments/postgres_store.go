package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking-platform/internal/database"
	"github.com/wolfman30/doctor-booking-platform/internal/slots"
)

const appointmentColumns = `id, patient_id, doctor_id, slot_date, slot_time, slot_at, problem, amount, currency,
	payment, COALESCE(order_id, ''), COALESCE(payment_id, ''), cancelled, cancellation_reason, status,
	reminder_sent, created_at, updated_at`

// PostgresStore keeps appointments in Postgres. Slot exclusivity rests on the
// appointments_active_slot_key partial unique index.
type PostgresStore struct {
	db database.DB
}

// NewPostgresStore wraps a pgx pool or mock.
func NewPostgresStore(db database.DB) *PostgresStore {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	query := `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_date, slot_time, slot_at, problem, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query,
		a.ID, a.PatientID, a.DoctorID, a.SlotDate, a.SlotTime, a.SlotAt.UTC(), a.Problem, a.Amount, a.Currency, string(a.Status),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "appointments_active_slot_key") {
			return ErrSlotTaken
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
}

func (s *PostgresStore) GetByOrderID(ctx context.Context, orderID string) (*Appointment, error) {
	if orderID == "" {
		return nil, ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE order_id = $1`, orderID)
}

func (s *PostgresStore) getOne(ctx context.Context, query string, args ...any) (*Appointment, error) {
	a, err := scanAppointment(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) SetOrderID(ctx context.Context, id, orderID string) (*Appointment, error) {
	query := `
		UPDATE appointments SET order_id = $2, updated_at = now()
		WHERE id = $1 AND NOT payment AND NOT cancelled AND status = 'pending'
		RETURNING ` + appointmentColumns
	a, err := scanAppointment(s.db.QueryRow(ctx, query, id, orderID))
	if err == nil {
		return a, nil
	}
	if !database.IsNoRows(err) {
		return nil, fmt.Errorf("appointments: set order: %w", err)
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNotPending
}

func (s *PostgresStore) MarkPaid(ctx context.Context, orderID, paymentID string) (*Appointment, bool, error) {
	query := `
		UPDATE appointments
		SET payment = true, payment_id = $2, status = 'confirmed', updated_at = now()
		WHERE order_id = $1 AND NOT payment AND NOT cancelled
		RETURNING ` + appointmentColumns
	a, err := scanAppointment(s.db.QueryRow(ctx, query, orderID, paymentID))
	if err == nil {
		return a, true, nil
	}
	if !database.IsNoRows(err) {
		return nil, false, fmt.Errorf("appointments: mark paid: %w", err)
	}
	current, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *PostgresStore) Cancel(ctx context.Context, id, reason string) (*Appointment, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, ErrNotFound
	}
	query := `
		UPDATE appointments
		SET cancelled = true, status = 'cancelled', cancellation_reason = $2, updated_at = now()
		WHERE id = $1 AND NOT cancelled AND status <> 'completed'
		RETURNING ` + appointmentColumns
	a, err := scanAppointment(s.db.QueryRow(ctx, query, id, reason))
	if err == nil {
		return a, true, nil
	}
	if !database.IsNoRows(err) {
		return nil, false, fmt.Errorf("appointments: cancel: %w", err)
	}
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return s.List(ctx, ListFilter{PatientID: patientID})
}

// List returns matches newest first.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	var (
		where []string
		args  []any
	)
	if filter.DoctorID != "" {
		args = append(args, filter.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return s.queryMany(ctx, query, args...)
}

func (s *PostgresStore) BookedSlots(ctx context.Context, doctorID string, dates []string) (slots.BookedSet, error) {
	booked := slots.NewBookedSet()
	if _, err := uuid.Parse(doctorID); err != nil || len(dates) == 0 {
		return booked, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT slot_date, slot_time FROM appointments
		WHERE doctor_id = $1 AND NOT cancelled AND slot_date = ANY($2)
	`, doctorID, dates)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k slots.Key
		if err := rows.Scan(&k.Date, &k.Time); err != nil {
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		booked[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	return booked, nil
}

func (s *PostgresStore) ListReminderDue(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE payment AND NOT cancelled AND NOT reminder_sent AND slot_at BETWEEN $1 AND $2
		ORDER BY slot_at`
	return s.queryMany(ctx, query, from.UTC(), to.UTC())
}

func (s *PostgresStore) ClaimReminder(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET reminder_sent = true, updated_at = now()
		WHERE id = $1 AND NOT reminder_sent
	`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: claim reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CancelUnpaidBefore(ctx context.Context, cutoff time.Time, reason string) ([]*Appointment, error) {
	query := `
		UPDATE appointments
		SET cancelled = true, cancellation_reason = $2, updated_at = now()
		WHERE created_at < $1 AND NOT payment AND NOT cancelled
		RETURNING ` + appointmentColumns
	return s.queryMany(ctx, query, cutoff.UTC(), reason)
}

func (s *PostgresStore) CompletePastBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = 'completed', updated_at = now()
		WHERE slot_at < $1 AND status <> 'completed'
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("appointments: complete past: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: query: %w", err)
	}
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.SlotDate, &a.SlotTime, &a.SlotAt, &a.Problem, &a.Amount, &a.Currency,
		&a.Payment, &a.OrderID, &a.PaymentID, &a.Cancelled, &a.CancellationReason, &status,
		&a.ReminderSent, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}
