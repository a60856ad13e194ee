package appointments

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/doctors"
	"github.com/wolfman30/doctor-booking-platform/internal/events"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking-platform/internal/payments"
	"github.com/wolfman30/doctor-booking-platform/internal/slots"
	"github.com/wolfman30/doctor-booking-platform/internal/users"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

var appointmentsTracer = otel.Tracer("doctor-booking.internal.appointments")

// DoctorLookup resolves doctors for booking and views.
type DoctorLookup interface {
	GetByID(ctx context.Context, id string) (*doctors.Doctor, error)
}

// PatientLookup resolves patients for views.
type PatientLookup interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

// Publisher fans appointment events out to live subscribers. Delivery is best effort
// and never fails the calling operation.
type Publisher interface {
	AppointmentEvent(ctx context.Context, topic events.Topic, view *View)
}

// Options configures the booking service.
type Options struct {
	Hours          slots.Hours
	Currency       string
	MinorUnits     int64
	GatewayTimeout time.Duration
	KeySecret      string
	Now            func() time.Time
}

// Service runs the booking transaction, payment confirmation and cancellation.
type Service struct {
	store     Store
	doctors   DoctorLookup
	patients  PatientLookup
	gateway   payments.Gateway
	limiter   payments.OrderLimiter
	publisher Publisher
	metrics   *metrics.BookingMetrics
	opts      Options
	logger    *logging.Logger
}

// NewService constructs the booking service.
func NewService(store Store, doctorLookup DoctorLookup, patientLookup PatientLookup, gateway payments.Gateway, opts Options, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if doctorLookup == nil {
		panic("appointments: doctor lookup required")
	}
	if gateway == nil {
		panic("appointments: payment gateway required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MinorUnits <= 0 {
		opts.MinorUnits = 100
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}
	if opts.Hours.Step <= 0 {
		opts.Hours = slots.DefaultHours()
	}
	return &Service{
		store:    store,
		doctors:  doctorLookup,
		patients: patientLookup,
		gateway:  gateway,
		opts:     opts,
		logger:   logging.OrDefault(logger),
	}
}

// SetLimiter enables the per-patient order velocity check.
func (s *Service) SetLimiter(l payments.OrderLimiter) { s.limiter = l }

// SetPublisher wires live notifications.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// SetMetrics wires Prometheus counters.
func (s *Service) SetMetrics(m *metrics.BookingMetrics) { s.metrics = m }

// Hours returns the slot grid the service validates against.
func (s *Service) Hours() slots.Hours { return s.opts.Hours }

// AvailableSlots lists the doctor's open slots for the booking window.
func (s *Service) AvailableSlots(ctx context.Context, doctorID string) ([]slots.DayBucket, error) {
	doc, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doc.Available {
		return nil, doctors.ErrUnavailable
	}
	now := s.opts.Now()
	booked, err := s.store.BookedSlots(ctx, doc.ID, slots.WindowDates(now, s.opts.Hours))
	if err != nil {
		return nil, err
	}
	return slots.Compute(now, booked, s.opts.Hours), nil
}

// Book reserves a slot and opens a gateway order for it. When the gateway fails the
// pending appointment is still returned alongside an upstream error so the client can
// retry with RequestOrder.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookingResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.doctor_id", req.DoctorID),
		attribute.String("booking.patient_id", req.PatientID),
	)

	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.SlotDate = strings.TrimSpace(req.SlotDate)
	req.SlotTime = strings.TrimSpace(req.SlotTime)
	if req.DoctorID == "" || req.SlotDate == "" || req.SlotTime == "" || req.PatientID == "" {
		s.metrics.ObserveBooking("invalid")
		return nil, ErrMissingFields
	}
	start, err := slots.Validate(req.SlotDate, req.SlotTime, s.opts.Now(), s.opts.Hours)
	if err != nil {
		s.metrics.ObserveBooking("invalid")
		return nil, err
	}

	doc, err := s.doctors.GetByID(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doc.Available {
		return nil, doctors.ErrUnavailable
	}

	appt := &Appointment{
		PatientID: req.PatientID,
		DoctorID:  doc.ID,
		SlotDate:  req.SlotDate,
		SlotTime:  req.SlotTime,
		SlotAt:    start,
		Problem:   strings.TrimSpace(req.Problem),
		Amount:    doc.Fees,
		Currency:  s.opts.Currency,
		Status:    StatusPending,
	}
	if err := s.store.Insert(ctx, appt); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			s.metrics.ObserveBooking("conflict")
		} else {
			s.metrics.ObserveBooking("error")
			span.RecordError(err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.appointment_id", appt.ID))

	result, err := s.openOrder(ctx, appt, doc)
	if err != nil {
		s.metrics.ObserveBooking("order_failed")
		span.RecordError(err)
		return result, err
	}
	s.metrics.ObserveBooking("booked")
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", doc.ID,
		"patient_id", appt.PatientID,
		"slot_date", appt.SlotDate,
		"slot_time", appt.SlotTime,
		"order_id", result.OrderID,
	)
	s.publish(ctx, events.TopicAppointmentBooked, result.Appointment)
	return result, nil
}

// RequestOrder creates a fresh gateway order for the caller's pending appointment.
func (s *Service) RequestOrder(ctx context.Context, caller identity.Principal, id string) (*BookingResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.request_order")
	defer span.End()
	span.SetAttributes(attribute.String("booking.appointment_id", id))

	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.UserID != appt.PatientID {
		return nil, ErrForbidden
	}
	if appt.Cancelled {
		return nil, ErrAppointmentCancelled
	}
	if !appt.Payable() {
		return nil, ErrNotPending
	}
	firstOrder := appt.OrderID == ""

	result, err := s.openOrder(ctx, appt, nil)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	s.logger.Info("payment order created", "appointment_id", appt.ID, "order_id", result.OrderID)
	if firstOrder {
		s.publish(ctx, events.TopicAppointmentBooked, result.Appointment)
	}
	return result, nil
}

// openOrder runs the velocity check and the bounded gateway call, then records the
// order id. The returned result always carries the appointment view.
func (s *Service) openOrder(ctx context.Context, appt *Appointment, doc *doctors.Doctor) (*BookingResult, error) {
	result := &BookingResult{
		Amount:   appt.Amount * s.opts.MinorUnits,
		Currency: appt.Currency,
		KeyID:    s.gateway.KeyID(),
	}
	result.Appointment = s.view(ctx, appt, doc)

	if s.limiter != nil {
		check, err := s.limiter.AllowOrder(ctx, appt.PatientID)
		if err != nil {
			s.logger.Warn("order velocity check failed", "error", err, "patient_id", appt.PatientID)
		} else if !check.Allowed {
			return result, ErrTooManyOrders
		}
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()
	started := time.Now()
	order, err := s.gateway.CreateOrder(gwCtx, payments.OrderRequest{
		Amount:   result.Amount,
		Currency: appt.Currency,
		Receipt:  appt.ID,
		Notes: map[string]string{
			"appointmentId": appt.ID,
			"patientId":     appt.PatientID,
			"doctorId":      appt.DoctorID,
		},
	})
	s.metrics.ObserveGatewayLatency("create_order", err != nil, time.Since(started).Seconds())
	if err != nil {
		s.logger.Error("payment order failed", "error", err, "appointment_id", appt.ID)
		return result, apperr.Wrap(apperr.KindUpstream, ErrGatewayFailed.Message, err)
	}

	updated, err := s.store.SetOrderID(ctx, appt.ID, order.ID)
	if err != nil {
		return result, err
	}
	result.OrderID = order.ID
	result.Appointment = s.view(ctx, updated, doc)
	return result, nil
}

// ConfirmPayment applies a client-reported payment after checking ownership and the
// gateway signature.
func (s *Service) ConfirmPayment(ctx context.Context, caller identity.Principal, req ConfirmRequest) (*ConfirmResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.confirm_payment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.order_id", req.OrderID))

	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		s.metrics.ObservePayment("client", "invalid")
		return nil, ErrMissingFields
	}
	appt, err := s.store.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(appt.PatientID) {
		s.metrics.ObservePayment("client", "forbidden")
		return nil, ErrForbidden
	}
	if !payments.VerifySignature(s.opts.KeySecret, req.OrderID, req.PaymentID, req.Signature) {
		s.metrics.ObservePayment("client", "bad_signature")
		s.logger.Warn("payment signature mismatch", "order_id", req.OrderID, "appointment_id", appt.ID)
		return nil, ErrInvalidSignature
	}
	return s.applyPayment(ctx, "client", req.OrderID, req.PaymentID)
}

// ConfirmFromGateway applies a payment already authenticated by a gateway webhook.
func (s *Service) ConfirmFromGateway(ctx context.Context, orderID, paymentID string) (bool, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.confirm_webhook")
	defer span.End()
	span.SetAttributes(attribute.String("payment.order_id", orderID))

	res, err := s.applyPayment(ctx, "webhook", orderID, paymentID)
	if err != nil {
		return false, err
	}
	return res.AlreadyConfirmed, nil
}

func (s *Service) applyPayment(ctx context.Context, source, orderID, paymentID string) (*ConfirmResult, error) {
	appt, changed, err := s.store.MarkPaid(ctx, orderID, paymentID)
	if err != nil {
		s.metrics.ObservePayment(source, "error")
		return nil, err
	}
	if !changed {
		switch {
		case appt.Payment:
			s.metrics.ObservePayment(source, "duplicate")
			return &ConfirmResult{Appointment: s.view(ctx, appt, nil), AlreadyConfirmed: true}, nil
		case appt.Cancelled:
			s.metrics.ObservePayment(source, "cancelled")
			s.logger.Warn("payment for cancelled appointment", "order_id", orderID, "payment_id", paymentID, "appointment_id", appt.ID)
			return nil, ErrAppointmentCancelled
		default:
			return nil, ErrNotPending
		}
	}

	s.metrics.ObservePayment(source, "confirmed")
	s.logger.Info("payment confirmed", "appointment_id", appt.ID, "order_id", orderID, "payment_id", paymentID, "source", source)
	view := s.view(ctx, appt, nil)
	s.publish(ctx, events.TopicPaymentComplete, view)
	return &ConfirmResult{Appointment: view}, nil
}

// Cancel cancels an appointment on behalf of its patient or an admin.
func (s *Service) Cancel(ctx context.Context, caller identity.Principal, id, reason string) (*View, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking.appointment_id", id))

	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(appt.PatientID) {
		return nil, ErrForbidden
	}
	by := "patient"
	if caller.IsAdmin() && caller.UserID != appt.PatientID {
		by = "admin"
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Cancelled by " + by
	}

	updated, changed, err := s.store.Cancel(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !changed {
		if updated.Cancelled {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrCompleted
	}
	s.metrics.ObserveCancellation(by)
	s.logger.Info("appointment cancelled", "appointment_id", id, "by", by, "paid", updated.Payment)
	view := s.view(ctx, updated, nil)
	s.publish(ctx, events.TopicAppointmentCancelled, view)
	return view, nil
}

// Get returns one appointment visible to the caller.
func (s *Service) Get(ctx context.Context, caller identity.Principal, id string) (*View, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(appt.PatientID) {
		return nil, ErrForbidden
	}
	return s.view(ctx, appt, nil), nil
}

// ListMine returns the caller's appointments, newest first.
func (s *Service) ListMine(ctx context.Context, caller identity.Principal) ([]*View, error) {
	list, err := s.store.ListByPatient(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list), nil
}

// ListAll returns appointments across patients for admins.
func (s *Service) ListAll(ctx context.Context, filter ListFilter) ([]*View, error) {
	list, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list), nil
}

// Views joins rows with their doctor and patient.
func (s *Service) Views(ctx context.Context, list []*Appointment) []*View {
	return s.views(ctx, list)
}

func (s *Service) views(ctx context.Context, list []*Appointment) []*View {
	docs := make(map[string]*doctors.Doctor)
	pats := make(map[string]*users.User)
	out := make([]*View, 0, len(list))
	for _, a := range list {
		doc, ok := docs[a.DoctorID]
		if !ok {
			doc = s.lookupDoctor(ctx, a.DoctorID)
			docs[a.DoctorID] = doc
		}
		pat, ok := pats[a.PatientID]
		if !ok {
			pat = s.lookupPatient(ctx, a.PatientID)
			pats[a.PatientID] = pat
		}
		out = append(out, &View{Appointment: *a, Doctor: summarizeDoctor(doc), Patient: summarizePatient(pat)})
	}
	return out
}

// view joins a single row. doc may be nil and is then looked up.
func (s *Service) view(ctx context.Context, a *Appointment, doc *doctors.Doctor) *View {
	if doc == nil {
		doc = s.lookupDoctor(ctx, a.DoctorID)
	}
	return &View{
		Appointment: *a,
		Doctor:      summarizeDoctor(doc),
		Patient:     summarizePatient(s.lookupPatient(ctx, a.PatientID)),
	}
}

func (s *Service) lookupDoctor(ctx context.Context, id string) *doctors.Doctor {
	doc, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("doctor lookup failed", "error", err, "doctor_id", id)
		return nil
	}
	return doc
}

func (s *Service) lookupPatient(ctx context.Context, id string) *users.User {
	if s.patients == nil {
		return nil
	}
	u, err := s.patients.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("patient lookup failed", "error", err, "patient_id", id)
		return nil
	}
	return u
}

func (s *Service) publish(ctx context.Context, topic events.Topic, view *View) {
	if s.publisher == nil {
		return
	}
	s.publisher.AppointmentEvent(ctx, topic, view)
}
