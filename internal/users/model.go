package users

import (
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
)

// User is a patient or administrator account.
type User struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone,omitempty"`
	PasswordHash string        `json:"-"`
	Role         identity.Role `json:"role"`
	GoogleID     string        `json:"-"`
	Image        string        `json:"image,omitempty"`
	Address      string        `json:"address,omitempty"`
	Gender       string        `json:"gender,omitempty"`
	DOB          string        `json:"dob,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ProfileUpdate carries the fields a user may change on their own profile.
type ProfileUpdate struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Gender  *string `json:"gender"`
	DOB     *string `json:"dob"`
	Image   *string `json:"image"`
}

// Apply copies the set fields onto u after validating them.
func (p ProfileUpdate) Apply(u *User) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ErrNameRequired
		}
		u.Name = name
	}
	if p.Phone != nil {
		phone, err := NormalizePhone(*p.Phone)
		if err != nil && strings.TrimSpace(*p.Phone) != "" {
			return err
		}
		u.Phone = phone
	}
	if p.Address != nil {
		u.Address = strings.TrimSpace(*p.Address)
	}
	if p.Gender != nil {
		u.Gender = strings.TrimSpace(*p.Gender)
	}
	if p.DOB != nil {
		u.DOB = strings.TrimSpace(*p.DOB)
	}
	if p.Image != nil {
		u.Image = strings.TrimSpace(*p.Image)
	}
	return nil
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// NormalizePhone keeps a leading + and digits; 10 to 15 digits are accepted.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}
	out := b.String()
	digits := strings.TrimPrefix(out, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return out, nil
}

var (
	ErrNotFound      = apperr.NotFound("user not found")
	ErrEmailTaken    = apperr.New(apperr.KindConflict, "email already registered")
	ErrPhoneTaken    = apperr.New(apperr.KindConflict, "phone already registered")
	ErrGoogleIDTaken = apperr.New(apperr.KindConflict, "google account already linked")
	ErrNameRequired  = apperr.Validation("name is required")
	ErrEmailRequired = apperr.Validation("email is required")
	ErrInvalidEmail  = apperr.Validation("enter a valid email")
	ErrInvalidPhone  = apperr.Validation("enter a valid phone number")
)
