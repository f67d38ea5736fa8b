package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSONRoundTrip(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2024-01-01"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2024-01-01"` {
		t.Errorf("round trip = %s", out)
	}
}

func TestDateUnmarshalNull(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`null`), &d); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !d.IsZero() {
		t.Errorf("null should decode to the zero date, got %v", d)
	}
	out, _ := json.Marshal(d)
	if string(out) != "null" {
		t.Errorf("zero date marshals to %s, want null", out)
	}
}

func TestDateUnmarshalRFC3339KeepsCalendarDay(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"2024-01-01T23:00:00+02:00"`, "2024-01-01"},
		{`"2023-12-31T23:00:00-02:00"`, "2023-12-31"},
		{`"2024-06-15T00:30:00Z"`, "2024-06-15"},
	}
	for _, tt := range tests {
		var d Date
		if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if got := d.String(); got != tt.want {
			t.Errorf("%s decoded to %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDateUnmarshalRejectsGarbage(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"not-a-date"`), &d); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan(time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan time.Time: %v", err)
	}
	if d.String() != "2024-03-05" {
		t.Errorf("scanned date = %q", d.String())
	}

	if err := d.Scan("2024-03-06"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if d.String() != "2024-03-06" {
		t.Errorf("scanned date = %q", d.String())
	}

	if err := d.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !d.IsZero() {
		t.Error("nil should scan to the zero date")
	}
}
