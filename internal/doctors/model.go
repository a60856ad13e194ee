package doctors

import (
	"strings"
	"time"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
)

// Doctor is a bookable practitioner.
type Doctor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Speciality  string    `json:"speciality"`
	Degree      string    `json:"degree,omitempty"`
	Experience  int       `json:"experience"`
	Fees        int64     `json:"fees"`
	About       string    `json:"about,omitempty"`
	Image       string    `json:"image,omitempty"`
	Address     string    `json:"address,omitempty"`
	Available   bool      `json:"available"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"ratingCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Speciality    string
	OnlyAvailable bool
}

// Matches reports whether d passes the filter.
func (f ListFilter) Matches(d *Doctor) bool {
	if f.OnlyAvailable && !d.Available {
		return false
	}
	if f.Speciality != "" && !strings.EqualFold(d.Speciality, f.Speciality) {
		return false
	}
	return true
}

// Input is the admin payload for creating or updating a doctor.
type Input struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Speciality *string `json:"speciality"`
	Degree     *string `json:"degree"`
	Experience *int    `json:"experience"`
	Fees       *int64  `json:"fees"`
	About      *string `json:"about"`
	Image      *string `json:"image"`
	Address    *string `json:"address"`
	Available  *bool   `json:"available"`
}

// NewDoctor validates a create payload. Name, email, speciality and fees are required.
func (in Input) NewDoctor() (*Doctor, error) {
	d := &Doctor{Available: true}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Email == nil || strings.TrimSpace(*in.Email) == "" {
		return nil, apperr.Validation("email is required")
	}
	if in.Speciality == nil || strings.TrimSpace(*in.Speciality) == "" {
		return nil, apperr.Validation("speciality is required")
	}
	if in.Fees == nil {
		return nil, apperr.Validation("fees is required")
	}
	if err := in.Apply(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Apply copies set fields onto d.
func (in Input) Apply(d *Doctor) error {
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return apperr.Validation("name cannot be empty")
		}
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !strings.Contains(email, "@") {
			return apperr.Validation("enter a valid email")
		}
		d.Email = email
	}
	if in.Phone != nil {
		d.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Speciality != nil {
		if strings.TrimSpace(*in.Speciality) == "" {
			return apperr.Validation("speciality cannot be empty")
		}
		d.Speciality = strings.TrimSpace(*in.Speciality)
	}
	if in.Degree != nil {
		d.Degree = strings.TrimSpace(*in.Degree)
	}
	if in.Experience != nil {
		if *in.Experience < 0 {
			return apperr.Validation("experience cannot be negative")
		}
		d.Experience = *in.Experience
	}
	if in.Fees != nil {
		if *in.Fees <= 0 {
			return apperr.Validation("fees must be positive")
		}
		d.Fees = *in.Fees
	}
	if in.About != nil {
		d.About = strings.TrimSpace(*in.About)
	}
	if in.Image != nil {
		d.Image = strings.TrimSpace(*in.Image)
	}
	if in.Address != nil {
		d.Address = strings.TrimSpace(*in.Address)
	}
	if in.Available != nil {
		d.Available = *in.Available
	}
	return nil
}

var (
	ErrNotFound    = apperr.NotFound("doctor not found")
	ErrEmailTaken  = apperr.New(apperr.KindConflict, "doctor email already exists")
	ErrUnavailable = apperr.NotFound("doctor not available")
)
