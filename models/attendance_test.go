package models

import "testing"

func TestDeriveKind(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		message string
		want    AttendanceKind
	}{
		{"plain present", StatusPresent, "", KindPresent},
		{"early maps to present", StatusEarly, "", KindPresent},
		{"late", StatusLate, "", KindLate},
		{"early leave", StatusEarlyLeave, "", KindEarlyLeave},
		{"absent", StatusAbsent, "", KindAbsent},
		{"marker beats present status", StatusPresent, ProxyMarker, KindProxy},
		{"marker beats late status", StatusLate, "note " + ProxyMarker, KindProxy},
		{"marker embedded in text", StatusPresent, "前半のみ " + ProxyMarker + " 山田", KindProxy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveKind(tt.status, tt.message); got != tt.want {
				t.Errorf("DeriveKind(%q, %q) = %q, want %q", tt.status, tt.message, got, tt.want)
			}
		})
	}
}

func TestStripProxyMarker(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		want       string
		wantMarked bool
	}{
		{"no marker", "regular note", "regular note", false},
		{"only marker", ProxyMarker, "", true},
		{"marker with note", ProxyMarker + " by Tanaka", "by Tanaka", true},
		{"marker trailing", "by Tanaka " + ProxyMarker, "by Tanaka", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, marked := StripProxyMarker(tt.message)
			if got != tt.want || marked != tt.wantMarked {
				t.Errorf("StripProxyMarker(%q) = (%q, %v), want (%q, %v)",
					tt.message, got, marked, tt.want, tt.wantMarked)
			}
		})
	}
}

func TestEncodeLegacyMessageRoundTrip(t *testing.T) {
	encoded := EncodeLegacyMessage(KindProxy, "by Tanaka")
	if got := DeriveKind(StatusPresent, encoded); got != KindProxy {
		t.Fatalf("encoded proxy message classified as %q", got)
	}
	cleaned, marked := StripProxyMarker(encoded)
	if !marked || cleaned != "by Tanaka" {
		t.Fatalf("round trip lost the note: (%q, %v)", cleaned, marked)
	}

	// Non-proxy kinds must never gain the marker.
	if got := EncodeLegacyMessage(KindLate, "overslept"); got != "overslept" {
		t.Fatalf("EncodeLegacyMessage(late) = %q", got)
	}
}

func TestLegacyStatus(t *testing.T) {
	tests := []struct {
		kind AttendanceKind
		want string
	}{
		{KindPresent, StatusPresent},
		{KindLate, StatusLate},
		{KindEarlyLeave, StatusEarlyLeave},
		{KindAbsent, StatusAbsent},
		{KindProxy, StatusPresent},
	}
	for _, tt := range tests {
		if got := tt.kind.LegacyStatus(); got != tt.want {
			t.Errorf("LegacyStatus(%q) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestCountsPresent(t *testing.T) {
	present := []AttendanceKind{KindPresent, KindLate, KindEarlyLeave}
	for _, k := range present {
		if !k.CountsPresent() {
			t.Errorf("%q should count as present", k)
		}
	}
	notPresent := []AttendanceKind{KindProxy, KindAbsent}
	for _, k := range notPresent {
		if k.CountsPresent() {
			t.Errorf("%q should not count as present", k)
		}
	}
}
