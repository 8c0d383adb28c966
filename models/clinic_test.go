package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPromotionIsActive(t *testing.T) {
	p := Promotion{
		StartDate: NewDate(2026, time.October, 10),
		EndDate:   NewDate(2026, time.October, 20),
	}
	cases := []struct {
		day  Date
		want bool
	}{
		{NewDate(2026, time.October, 9), false},
		{NewDate(2026, time.October, 10), true},
		{NewDate(2026, time.October, 15), true},
		{NewDate(2026, time.October, 20), true},
		{NewDate(2026, time.October, 21), false},
	}
	for _, c := range cases {
		if got := p.IsActive(c.day); got != c.want {
			t.Errorf("IsActive(%s) = %v, want %v", c.day, got, c.want)
		}
	}
}

func TestDateOfUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:30 UTC on the 18th is already the 19th at UTC+3.
	instant := time.Date(2026, time.October, 18, 22, 30, 0, 0, time.UTC)
	if got := DateOf(instant.In(loc)); got.String() != "2026-10-19" {
		t.Errorf("DateOf = %s, want 2026-10-19", got)
	}
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Day  Date `json:"day"`
		Zero Date `json:"zero"`
	}
	if err := json.Unmarshal([]byte(`{"day":"2026-03-08","zero":null}`), &payload); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !payload.Day.Equal(NewDate(2026, time.March, 8).Time) {
		t.Errorf("Unexpected day %v", payload.Day)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"day":"2026-03-08","zero":null}` {
		t.Errorf("Unexpected JSON %s", out)
	}

	if err := json.Unmarshal([]byte(`{"day":"08.03.2026"}`), &payload); err == nil {
		t.Error("Expected invalid date to fail")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2026-10-19 00:00:00+00:00"); err != nil {
		t.Fatalf("Scan(string) failed: %v", err)
	}
	if d.String() != "2026-10-19" {
		t.Errorf("Scan(string) = %s", d)
	}
	if err := d.Scan(time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)); err != nil || d.String() != "2026-05-01" {
		t.Errorf("Scan(time) = %s, %v", d, err)
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Errorf("Scan(nil) = %s, %v", d, err)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{"new", "confirmed", "canceled"} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "NEW", "cancelled", "done"} {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true", s)
		}
	}
}

func TestContainsPattern(t *testing.T) {
	cases := map[string]string{
		"Cat":  "%cat%",
		"100%": `%100\%%`,
		"a_b":  `%a\_b%`,
		`c:\d`: `%c:\\d%`,
		"ПЁС":  "%пёс%",
	}
	for in, want := range cases {
		if got := ContainsPattern(in); got != want {
			t.Errorf("ContainsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
