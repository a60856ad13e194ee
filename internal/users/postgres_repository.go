package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/doctor-booking-platform/internal/database"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
)

const userColumns = `id, name, email, COALESCE(phone, ''), password_hash, role, COALESCE(google_id, ''),
	image, address, gender, dob, created_at, updated_at`

// PostgresRepository stores users in the relational database.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository initializes a repo backed by a pgx pool or mock.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	if db == nil {
		panic("users: db required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = identity.RolePatient
	}
	query := `
		INSERT INTO users (id, name, email, phone, password_hash, role, google_id, image, address, gender, dob)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, string(u.Role), u.GoogleID,
		u.Image, u.Address, u.Gender, u.DOB,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueErr(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("users: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	if phone == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *PostgresRepository) GetByGoogleID(ctx context.Context, googleID string) (*User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
}

// Update writes every mutable column.
func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, phone = NULLIF($4, ''), password_hash = $5, role = $6,
			google_id = NULLIF($7, ''), image = $8, address = $9, gender = $10, dob = $11,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, string(u.Role), u.GoogleID,
		u.Image, u.Address, u.Gender, u.DOB,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return ErrNotFound
		}
		if mapped := mapUniqueErr(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("users: update failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountByRole(ctx context.Context, role identity.Role) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("users: count failed: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: select failed: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &role, &u.GoogleID,
		&u.Image, &u.Address, &u.Gender, &u.DOB, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = identity.Role(role)
	return &u, nil
}

func mapUniqueErr(err error) error {
	switch {
	case database.IsUniqueViolation(err, "users_email_key"):
		return ErrEmailTaken
	case database.IsUniqueViolation(err, "users_phone_key"):
		return ErrPhoneTaken
	case database.IsUniqueViolation(err, "users_google_id_key"):
		return ErrGoogleIDTaken
	}
	return nil
}
