package schedule

import (
	"testing"
	"time"
)

func TestWeekday(t *testing.T) {
	// 2025-01-06 is a Monday.
	mon := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	for i := range 7 {
		if got := Weekday(mon.AddDate(0, 0, i)); got != i {
			t.Errorf("Weekday(+%d) = %d, want %d", i, got, i)
		}
	}
}

func TestParseDays(t *testing.T) {
	got, err := ParseDays(" 4,0, 2,0 ")
	if err != nil {
		t.Fatalf("ParseDays: %v", err)
	}
	want := []int{0, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("ParseDays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseDays[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"", "7", "-1", "mon", " , "} {
		if _, err := ParseDays(bad); err == nil {
			t.Errorf("ParseDays(%q): expected error", bad)
		}
	}
}

func TestParseTime(t *testing.T) {
	if got, err := ParseTime("8:05"); err != nil || got != "08:05" {
		t.Errorf("ParseTime(8:05) = %q, %v", got, err)
	}
	for _, bad := range []string{"", "24:00", "8am", "08:60"} {
		if _, err := ParseTime(bad); err == nil {
			t.Errorf("ParseTime(%q): expected error", bad)
		}
	}
}

func TestDefaults(t *testing.T) {
	slots, err := Defaults("0,2,4", "08:00")
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	want := []Slot{{0, "08:00"}, {2, "08:00"}, {4, "08:00"}}
	if len(slots) != len(want) {
		t.Fatalf("Defaults = %v", slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("slot %d = %v, want %v", i, slots[i], want[i])
		}
	}
}

func TestDue(t *testing.T) {
	slots := []Slot{{0, "08:00"}, {2, "08:00"}}
	wed := time.Date(2025, 1, 8, 8, 0, 42, 0, time.UTC)
	if !Due(slots, wed) {
		t.Error("Wednesday 08:00 should be due")
	}
	if Due(slots, wed.Add(time.Minute)) {
		t.Error("Wednesday 08:01 should not be due")
	}
	if Due(slots, wed.AddDate(0, 0, 1)) {
		t.Error("Thursday 08:00 should not be due")
	}
	if Due(nil, wed) {
		t.Error("no slots should never be due")
	}
}

func TestNext(t *testing.T) {
	slots := []Slot{{0, "08:00"}, {2, "08:00"}, {4, "08:00"}}

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			"tuesday goes to wednesday",
			time.Date(2025, 1, 7, 12, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 8, 8, 0, 0, 0, time.UTC),
		},
		{
			"same weekday before slot time skips to next slot day",
			time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 8, 8, 0, 0, 0, time.UTC),
		},
		{
			"friday evening wraps to monday",
			time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 13, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(slots, tt.from)
			if !ok {
				t.Fatal("Next returned !ok")
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next = %v, want %v", got, tt.want)
			}
		})
	}

	// A single slot on today's weekday moves a full week ahead.
	mon := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)
	got, _ := Next([]Slot{{0, "08:00"}}, mon)
	if want := time.Date(2025, 1, 13, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next(same weekday) = %v, want %v", got, want)
	}

	if _, ok := Next(nil, mon); ok {
		t.Error("Next(nil) should report !ok")
	}
	if _, ok := Next([]Slot{{1, "bad"}}, mon); ok {
		t.Error("Next with only invalid slots should report !ok")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		slots []Slot
		want  string
	}{
		{[]Slot{{4, "08:00"}, {0, "08:00"}, {2, "08:00"}}, "Monday, Wednesday, and Friday"},
		{[]Slot{{1, "08:00"}, {3, "18:00"}}, "Tuesday and Thursday"},
		{[]Slot{{6, "09:00"}, {6, "18:00"}}, "Sunday"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Describe(tt.slots); got != tt.want {
			t.Errorf("Describe(%v) = %q, want %q", tt.slots, got, tt.want)
		}
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	slots := []Slot{{0, "08:00"}, {2, "09:30"}}
	recs := Records("u1", slots)
	recs = append(recs, recs[0])
	recs[2].Active = false

	got := FromRecords(recs)
	if len(got) != 2 || got[0] != slots[0] || got[1] != slots[1] {
		t.Errorf("FromRecords = %v, want %v", got, slots)
	}
	if recs[0].UserID != "u1" || !recs[0].Active {
		t.Errorf("Records[0] = %+v", recs[0])
	}
}
