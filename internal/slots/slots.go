// Package slots computes the bookable half-hour grid for a doctor.
//
// Slot identity is the pair (date key, time key): dates are "D_M_YYYY" with no zero
// padding and times are 24h "HH:MM". Keys are compared as exact strings everywhere, so
// every parser here rejects non-canonical spellings.
package slots

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
)

const (
	// DateLayout is the Go layout of a slot date key.
	DateLayout = "2_1_2006"
	// TimeLayout is the Go layout of a slot time key.
	TimeLayout = "15:04"
)

var weekdays = [...]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// Hours describes the clinic's daily slot grid.
type Hours struct {
	Open        time.Duration // offset from local midnight of the first slot
	Close       time.Duration // slots start strictly before Close
	Step        time.Duration
	Days        int
	SameDayLead time.Duration
	Location    *time.Location
}

// DefaultHours is 10:00-21:00 in 30 minute steps over 7 days.
func DefaultHours() Hours {
	return Hours{
		Open:     10 * time.Hour,
		Close:    21 * time.Hour,
		Step:     30 * time.Minute,
		Days:     7,
		Location: time.UTC,
	}
}

// NewHours builds Hours from "HH:MM" clock strings and a time zone name.
func NewHours(open, close string, step time.Duration, days int, lead time.Duration, tz string) (Hours, error) {
	openOff, err := ParseClock(open)
	if err != nil {
		return Hours{}, fmt.Errorf("slots: open: %w", err)
	}
	closeOff, err := ParseClock(close)
	if err != nil {
		return Hours{}, fmt.Errorf("slots: close: %w", err)
	}
	if closeOff <= openOff {
		return Hours{}, fmt.Errorf("slots: close %s must be after open %s", close, open)
	}
	if step <= 0 || days <= 0 {
		return Hours{}, fmt.Errorf("slots: step and days must be positive")
	}
	loc := time.UTC
	if tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return Hours{}, fmt.Errorf("slots: timezone: %w", err)
		}
	}
	return Hours{Open: openOff, Close: closeOff, Step: step, Days: days, SameDayLead: lead, Location: loc}, nil
}

func (h Hours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Key identifies a slot.
type Key struct {
	Date string
	Time string
}

// BookedSet holds the keys already taken by non-cancelled appointments.
type BookedSet map[Key]struct{}

// NewBookedSet builds a set from keys.
func NewBookedSet(keys ...Key) BookedSet {
	set := make(BookedSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether the slot is taken.
func (b BookedSet) Has(date, tm string) bool {
	_, ok := b[Key{Date: date, Time: tm}]
	return ok
}

// Slot is one bookable start time.
type Slot struct {
	Date      string    `json:"slotDate"`
	Time      string    `json:"slotTime"`
	StartsAt  time.Time `json:"startsAt"`
	Available bool      `json:"available"`
}

// DayBucket groups a day's available slots. Buckets are always emitted, possibly empty.
type DayBucket struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Slots   []Slot `json:"slots"`
}

// Compute returns h.Days buckets starting with now's local day. A slot is listed when it
// is not booked and starts strictly after now; on the current day the same-day lead is
// added to now.
func Compute(now time.Time, booked BookedSet, h Hours) []DayBucket {
	loc := h.location()
	local := now.In(loc)

	buckets := make([]DayBucket, 0, h.Days)
	for i := 0; i < h.Days; i++ {
		day := time.Date(local.Year(), local.Month(), local.Day()+i, 0, 0, 0, 0, loc)
		bucket := DayBucket{
			Date:    FormatDate(day),
			Weekday: weekdays[day.Weekday()],
			Slots:   []Slot{},
		}
		cutoff := h.cutoff(now, day)
		if h.Step > 0 {
			for off := h.Open; off < h.Close; off += h.Step {
				start := atOffset(day, off, loc)
				if !start.After(cutoff) {
					continue
				}
				tm := FormatTime(start)
				if booked.Has(bucket.Date, tm) {
					continue
				}
				bucket.Slots = append(bucket.Slots, Slot{Date: bucket.Date, Time: tm, StartsAt: start, Available: true})
			}
		}
		buckets = append(buckets, bucket)
	}
	return buckets
}

// WindowDates returns the date keys covered by Compute for now.
func WindowDates(now time.Time, h Hours) []string {
	loc := h.location()
	local := now.In(loc)
	out := make([]string, 0, h.Days)
	for i := 0; i < h.Days; i++ {
		out = append(out, FormatDate(time.Date(local.Year(), local.Month(), local.Day()+i, 0, 0, 0, 0, loc)))
	}
	return out
}

// FormatDate renders a slot date key.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// FormatTime renders a slot time key.
func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ParseDate parses a canonical date key as local midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil || FormatDate(t) != date {
		return time.Time{}, apperr.Validation("slotDate must be formatted as D_M_YYYY")
	}
	return t, nil
}

// Instant resolves a slot key to its start time without checking the grid.
func Instant(date, tm string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := time.Parse(TimeLayout, tm)
	if err != nil || clock.Format(TimeLayout) != tm {
		return time.Time{}, apperr.Validation("slotTime must be formatted as HH:MM")
	}
	off := time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute
	return atOffset(day, off, day.Location()), nil
}

// Validate checks that the key names a slot on the grid that has not started yet, and
// returns its start instant.
func Validate(date, tm string, now time.Time, h Hours) (time.Time, error) {
	start, err := Instant(date, tm, h.location())
	if err != nil {
		return time.Time{}, err
	}
	off := time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute
	if off < h.Open || off >= h.Close {
		return time.Time{}, apperr.Validation("slot is outside clinic hours")
	}
	if h.Step > 0 && (off-h.Open)%h.Step != 0 {
		return time.Time{}, apperr.Validation(fmt.Sprintf("slot must align to %s steps", h.Step))
	}
	if !start.After(h.cutoff(now, start)) {
		return time.Time{}, apperr.Validation("slot is in the past")
	}
	return start, nil
}

// cutoff is the instant a slot on day must start after: now plus the lead when day is
// today in clinic time, now otherwise.
func (h Hours) cutoff(now, day time.Time) time.Time {
	local := now.In(h.location())
	d := day.In(h.location())
	if d.Year() == local.Year() && d.YearDay() == local.YearDay() {
		return now.Add(h.SameDayLead)
	}
	return now
}

func atOffset(day time.Time, off time.Duration, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, int(off/time.Minute), 0, 0, loc)
}
