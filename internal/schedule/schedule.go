// Package schedule models the weekly send slots each user receives practice
// emails on. Days are numbered 0 for Monday through 6 for Sunday and times
// are "HH:MM" in the server's local time.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/itsbennie/bennie/internal/storage"
)

// Slot is one weekly send time.
type Slot struct {
	Day  int
	Time string
}

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Weekday converts t's weekday to the Monday-first numbering.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// At returns the slot t falls in.
func At(t time.Time) Slot {
	return Slot{Day: Weekday(t), Time: t.Format("15:04")}
}

// ParseDays parses a comma-separated day list such as "0,2,4".
func ParseDays(s string) ([]int, error) {
	var days []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid day of week %q: want 0 (Monday) to 6 (Sunday)", part)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no days in %q", s)
	}
	sort.Ints(days)
	return days, nil
}

// ParseTime validates an "HH:MM" time of day and returns it normalized.
func ParseTime(s string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return t.Format("15:04"), nil
}

// Defaults builds the slots new users start with from the configured day
// list and time.
func Defaults(days, timeOfDay string) ([]Slot, error) {
	ds, err := ParseDays(days)
	if err != nil {
		return nil, err
	}
	tod, err := ParseTime(timeOfDay)
	if err != nil {
		return nil, err
	}
	slots := make([]Slot, len(ds))
	for i, d := range ds {
		slots[i] = Slot{Day: d, Time: tod}
	}
	return slots, nil
}

// Due reports whether now falls on one of the slots, to the minute.
func Due(slots []Slot, now time.Time) bool {
	cur := At(now)
	for _, s := range slots {
		if s == cur {
			return true
		}
	}
	return false
}

// Next returns the earliest upcoming send time across slots. A slot on the
// same weekday as from is scheduled for next week. ok is false when slots
// is empty or contains no valid entries.
func Next(slots []Slot, from time.Time) (next time.Time, ok bool) {
	for _, s := range slots {
		t, err := nextOccurrence(s, from)
		if err != nil {
			continue
		}
		if !ok || t.Before(next) {
			next, ok = t, true
		}
	}
	return next, ok
}

func nextOccurrence(s Slot, from time.Time) (time.Time, error) {
	tod, err := time.Parse("15:04", s.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot time %q", s.Time)
	}
	daysAhead := s.Day - Weekday(from)
	if daysAhead <= 0 {
		daysAhead += 7
	}
	d := from.AddDate(0, 0, daysAhead)
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), 0, 0, from.Location()), nil
}

// Describe renders the slot days for humans: "Monday, Wednesday, and Friday".
func Describe(slots []Slot) string {
	seen := make(map[int]bool)
	var days []int
	for _, s := range slots {
		if s.Day >= 0 && s.Day <= 6 && !seen[s.Day] {
			seen[s.Day] = true
			days = append(days, s.Day)
		}
	}
	sort.Ints(days)
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = dayNames[d]
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

// FromRecords converts the active stored schedules to slots.
func FromRecords(records []storage.Schedule) []Slot {
	var slots []Slot
	for _, r := range records {
		if r.Active {
			slots = append(slots, Slot{Day: r.DayOfWeek, Time: r.TimeOfDay})
		}
	}
	return slots
}

// Records converts slots to active storage rows for userID.
func Records(userID string, slots []Slot) []storage.Schedule {
	out := make([]storage.Schedule, len(slots))
	for i, s := range slots {
		out[i] = storage.Schedule{UserID: userID, DayOfWeek: s.Day, TimeOfDay: s.Time, Active: true}
	}
	return out
}
