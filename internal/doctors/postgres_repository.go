package doctors

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking-platform/internal/database"
)

const doctorColumns = `id, name, email, phone, speciality, degree, experience, fees, about, image, address,
	available, rating, rating_count, created_at, updated_at`

// PostgresRepository stores doctors in Postgres.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository wraps a pgx pool or mock.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	if db == nil {
		panic("doctors: db required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *Doctor) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	query := `
		INSERT INTO doctors (id, name, email, phone, speciality, degree, experience, fees, about, image, address, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		d.ID, d.Name, d.Email, d.Phone, d.Speciality, d.Degree, d.Experience, d.Fees,
		d.About, d.Image, d.Address, d.Available,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "doctors_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("doctors: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	d, err := scanDoctor(r.db.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	return d, nil
}

// List returns matching doctors ordered by name.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	var (
		where []string
		args  []any
	)
	if filter.OnlyAvailable {
		where = append(where, "available")
	}
	if filter.Speciality != "" {
		args = append(args, filter.Speciality)
		where = append(where, fmt.Sprintf("lower(speciality) = lower($%d)", len(args)))
	}
	query := `SELECT ` + doctorColumns + ` FROM doctors`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("doctors: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: scan failed: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctors: list rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *Doctor) error {
	query := `
		UPDATE doctors
		SET name = $2, email = $3, phone = $4, speciality = $5, degree = $6, experience = $7,
			fees = $8, about = $9, image = $10, address = $11, available = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		d.ID, d.Name, d.Email, d.Phone, d.Speciality, d.Degree, d.Experience, d.Fees,
		d.About, d.Image, d.Address, d.Available,
	).Scan(&d.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return ErrNotFound
		}
		if database.IsUniqueViolation(err, "doctors_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("doctors: update failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetAvailability(ctx context.Context, id string, available bool) (*Doctor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `UPDATE doctors SET available = $2, updated_at = now() WHERE id = $1 RETURNING ` + doctorColumns
	d, err := scanDoctor(r.db.QueryRow(ctx, query, id, available))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: set availability failed: %w", err)
	}
	return d, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.Speciality, &d.Degree, &d.Experience, &d.Fees,
		&d.About, &d.Image, &d.Address, &d.Available, &d.Rating, &d.RatingCount,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
