// Package appointments owns the booking lifecycle: slot reservation, gateway orders,
// payment confirmation and cancellation.
package appointments

import (
	"time"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/doctors"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ReasonPaymentTimeout is recorded when an unpaid booking is released.
const ReasonPaymentTimeout = "Payment timeout"

// Appointment is a patient's booking of one doctor slot.
type Appointment struct {
	ID                 string    `json:"id"`
	PatientID          string    `json:"patientId"`
	DoctorID           string    `json:"doctorId"`
	SlotDate           string    `json:"slotDate"`
	SlotTime           string    `json:"slotTime"`
	SlotAt             time.Time `json:"slotAt"`
	Problem            string    `json:"problem,omitempty"`
	Amount             int64     `json:"amount"`
	Currency           string    `json:"currency"`
	Payment            bool      `json:"payment"`
	OrderID            string    `json:"orderId,omitempty"`
	PaymentID          string    `json:"paymentId,omitempty"`
	Cancelled          bool      `json:"cancelled"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	Status             Status    `json:"status"`
	ReminderSent       bool      `json:"reminderSent"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Payable reports whether a gateway order may still be paid against a.
func (a *Appointment) Payable() bool {
	return !a.Payment && !a.Cancelled && a.Status == StatusPending
}

// DoctorSummary is the doctor subset embedded in views.
type DoctorSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Speciality string `json:"speciality"`
	Image      string `json:"image,omitempty"`
	Fees       int64  `json:"fees"`
	Address    string `json:"address,omitempty"`
}

// PatientSummary is the patient subset embedded in views.
type PatientSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Image string `json:"image,omitempty"`
}

// View is an appointment joined with its doctor and patient. Responses and events carry
// views rather than bare rows.
type View struct {
	Appointment
	Doctor  *DoctorSummary  `json:"doctor,omitempty"`
	Patient *PatientSummary `json:"patient,omitempty"`
}

func summarizeDoctor(d *doctors.Doctor) *DoctorSummary {
	if d == nil {
		return nil
	}
	return &DoctorSummary{ID: d.ID, Name: d.Name, Speciality: d.Speciality, Image: d.Image, Fees: d.Fees, Address: d.Address}
}

func summarizePatient(u *users.User) *PatientSummary {
	if u == nil {
		return nil
	}
	return &PatientSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Image: u.Image}
}

// BookRequest is the input of Book. PatientID comes from the authenticated caller.
type BookRequest struct {
	DoctorID  string `json:"docId"`
	SlotDate  string `json:"slotDate"`
	SlotTime  string `json:"slotTime"`
	Problem   string `json:"problem"`
	PatientID string `json:"-"`
}

// BookingResult is what the client needs to open the gateway checkout.
type BookingResult struct {
	Appointment *View  `json:"appointment"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	KeyID       string `json:"keyId"`
}

// ConfirmRequest carries the gateway callback fields.
type ConfirmRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// ConfirmResult reports the confirmed appointment. AlreadyConfirmed is set when the
// payment had been applied by an earlier call.
type ConfirmResult struct {
	Appointment      *View `json:"appointment"`
	AlreadyConfirmed bool  `json:"alreadyConfirmed"`
}

// ListFilter narrows admin listings.
type ListFilter struct {
	DoctorID  string
	PatientID string
	Statuses  []Status
	Limit     int
}

func (f ListFilter) matches(a *Appointment) bool {
	if f.DoctorID != "" && a.DoctorID != f.DoctorID {
		return false
	}
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

var (
	ErrNotFound             = apperr.NotFound("appointment not found")
	ErrSlotTaken            = apperr.New(apperr.KindConflict, "slot not available")
	ErrForbidden            = apperr.New(apperr.KindForbidden, "not allowed to access this appointment")
	ErrInvalidSignature     = apperr.New(apperr.KindInvalidSignature, "invalid payment signature")
	ErrAppointmentCancelled = apperr.New(apperr.KindConflict, "appointment is cancelled")
	ErrAlreadyCancelled     = apperr.New(apperr.KindConflict, "appointment already cancelled")
	ErrCompleted            = apperr.New(apperr.KindConflict, "appointment already completed")
	ErrNotPending           = apperr.New(apperr.KindConflict, "appointment is not awaiting payment")
	ErrTooManyOrders        = apperr.Validation("too many payment attempts, try again later")
	ErrGatewayFailed        = apperr.New(apperr.KindUpstream, "payment gateway unavailable, retry the order")
	ErrMissingFields        = apperr.Validation("missing required fields")
)
