package phone

import "testing"

func TestDirectoryLookup(t *testing.T) {
	dir := DefaultDirectory()

	tests := []struct {
		name          string
		country       string
		national      string
		wantCode      string
		wantSupported bool
		wantMatch     bool
	}{
		{name: "orange_senegal_77", country: "SN", national: "774567890", wantCode: "ORANGE_SN", wantSupported: true, wantMatch: true},
		{name: "orange_senegal_78", country: "SN", national: "781234567", wantCode: "ORANGE_SN", wantSupported: true, wantMatch: true},
		{name: "free_senegal", country: "SN", national: "761234567", wantCode: "FREE_SN", wantSupported: true, wantMatch: true},
		{name: "non_capable_operator", country: "SN", national: "751234567", wantCode: "PROMOBILE_SN", wantSupported: false, wantMatch: true},
		{name: "unknown_prefix", country: "SN", national: "711234567", wantMatch: false},
		{name: "unknown_country", country: "GH", national: "241234567", wantMatch: false},
		{name: "mtn_ivory_coast", country: "CI", national: "0512345678", wantCode: "MTN_CI", wantSupported: true, wantMatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := dir.Lookup(tt.country, tt.national)
			if ok != tt.wantMatch {
				t.Fatalf("Lookup(%q, %q) match = %v, want %v", tt.country, tt.national, ok, tt.wantMatch)
			}
			if !tt.wantMatch {
				return
			}
			if entry.OperatorCode != tt.wantCode {
				t.Fatalf("expected operator %q, got %q", tt.wantCode, entry.OperatorCode)
			}
			if entry.MobileMoneySupported != tt.wantSupported {
				t.Fatalf("expected mobile money supported=%v, got %v", tt.wantSupported, entry.MobileMoneySupported)
			}
		})
	}
}

func TestDirectoryLookup_LongestPrefixWins(t *testing.T) {
	dir := DefaultDirectory()

	// Guinea has a one-digit Cellcom range overlapped by the two-digit Orange
	// and MTN ranges; the most specific prefix must win.
	entry, ok := dir.Lookup("GN", "621234567")
	if !ok {
		t.Fatal("expected a match for GN 62x range")
	}
	if entry.OperatorCode != "ORANGE_GN" {
		t.Fatalf("expected longest prefix ORANGE_GN, got %q", entry.OperatorCode)
	}

	entry, ok = dir.Lookup("GN", "661234567")
	if !ok {
		t.Fatal("expected a match for GN 66x range")
	}
	if entry.OperatorCode != "MTN_GN" {
		t.Fatalf("expected longest prefix MTN_GN, got %q", entry.OperatorCode)
	}

	// A number on the shared one-digit range but outside the longer prefixes
	// falls back to the generic entry.
	entry, ok = dir.Lookup("GN", "601234567")
	if !ok {
		t.Fatal("expected a match for GN 60x range")
	}
	if entry.OperatorCode != "CELLCOM_GN" {
		t.Fatalf("expected fallback CELLCOM_GN, got %q", entry.OperatorCode)
	}
}
