package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/doctor-booking-platform/internal/slots"
)

// Store persists appointments. Implementations enforce slot exclusivity themselves and
// report a duplicate live booking as ErrSlotTaken; every state transition is a
// conditional write so concurrent callers cannot both win.
type Store interface {
	Insert(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	GetByOrderID(ctx context.Context, orderID string) (*Appointment, error)
	// SetOrderID attaches a gateway order to a payable appointment.
	SetOrderID(ctx context.Context, id, orderID string) (*Appointment, error)
	// MarkPaid flips an unpaid, live appointment to confirmed. When nothing changed it
	// returns the current row and false.
	MarkPaid(ctx context.Context, orderID, paymentID string) (*Appointment, bool, error)
	// Cancel cancels a live, uncompleted appointment. When nothing changed it returns the
	// current row and false.
	Cancel(ctx context.Context, id, reason string) (*Appointment, bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	BookedSlots(ctx context.Context, doctorID string, dates []string) (slots.BookedSet, error)
	ListReminderDue(ctx context.Context, from, to time.Time) ([]*Appointment, error)
	// ClaimReminder marks the reminder sent and reports whether this caller set it.
	ClaimReminder(ctx context.Context, id string) (bool, error)
	CancelUnpaidBefore(ctx context.Context, cutoff time.Time, reason string) ([]*Appointment, error)
	CompletePastBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore is a Store for development and tests. A single mutex makes every
// check-and-write atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Appointment
	now   func() time.Time
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Appointment), now: time.Now}
}

func (s *MemoryStore) Insert(ctx context.Context, a *Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if !existing.Cancelled && existing.DoctorID == a.DoctorID &&
			existing.SlotDate == a.SlotDate && existing.SlotTime == a.SlotTime {
			return ErrSlotTaken
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = StatusPending
	}
	cp := *a
	s.byID[a.ID] = &cp
	s.order = append(s.order, a.ID)
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetByOrderID(ctx context.Context, orderID string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a := s.byOrderLocked(orderID); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) byOrderLocked(orderID string) *Appointment {
	if orderID == "" {
		return nil
	}
	for _, a := range s.byID {
		if a.OrderID == orderID {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) SetOrderID(ctx context.Context, id, orderID string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !a.Payable() {
		return nil, ErrNotPending
	}
	a.OrderID = orderID
	a.UpdatedAt = s.now().UTC()
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) MarkPaid(ctx context.Context, orderID, paymentID string) (*Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.byOrderLocked(orderID)
	if a == nil {
		return nil, false, ErrNotFound
	}
	changed := false
	if !a.Payment && !a.Cancelled {
		a.Payment = true
		a.PaymentID = paymentID
		a.Status = StatusConfirmed
		a.UpdatedAt = s.now().UTC()
		changed = true
	}
	cp := *a
	return &cp, changed, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, id, reason string) (*Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	changed := false
	if !a.Cancelled && a.Status != StatusCompleted {
		a.Cancelled = true
		a.Status = StatusCancelled
		a.CancellationReason = reason
		a.UpdatedAt = s.now().UTC()
		changed = true
	}
	cp := *a
	return &cp, changed, nil
}

func (s *MemoryStore) ListByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	return s.List(ctx, ListFilter{PatientID: patientID})
}

// List returns matches newest first.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Appointment
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.byID[s.order[i]]
		if !filter.matches(a) {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) BookedSlots(ctx context.Context, doctorID string, dates []string) (slots.BookedSet, error) {
	want := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		want[d] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	booked := slots.NewBookedSet()
	for _, a := range s.byID {
		if a.Cancelled || a.DoctorID != doctorID {
			continue
		}
		if _, ok := want[a.SlotDate]; ok {
			booked[slots.Key{Date: a.SlotDate, Time: a.SlotTime}] = struct{}{}
		}
	}
	return booked, nil
}

func (s *MemoryStore) ListReminderDue(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Appointment
	for _, a := range s.byID {
		if !a.Payment || a.Cancelled || a.ReminderSent {
			continue
		}
		if a.SlotAt.Before(from) || a.SlotAt.After(to) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotAt.Before(out[j].SlotAt) })
	return out, nil
}

func (s *MemoryStore) ClaimReminder(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok || a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	a.UpdatedAt = s.now().UTC()
	return true, nil
}

func (s *MemoryStore) CancelUnpaidBefore(ctx context.Context, cutoff time.Time, reason string) ([]*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Appointment
	for _, a := range s.byID {
		if a.Payment || a.Cancelled || !a.CreatedAt.Before(cutoff) {
			continue
		}
		// Status is left as-is; only the flag and reason change.
		a.Cancelled = true
		a.CancellationReason = reason
		a.UpdatedAt = s.now().UTC()
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) CompletePastBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.byID {
		if a.Status == StatusCompleted || !a.SlotAt.Before(cutoff) {
			continue
		}
		a.Status = StatusCompleted
		a.UpdatedAt = s.now().UTC()
		n++
	}
	return n, nil
}
