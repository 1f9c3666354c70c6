package registry

import "testing"

func TestCanTransition_Legal(t *testing.T) {
	legal := []struct {
		from, to Status
	}{
		{StatusPending, StatusActive},
		{StatusPending, StatusRevoked},
		{StatusActive, StatusRevoked},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}
}

func TestCanTransition_Illegal(t *testing.T) {
	illegal := []struct {
		from, to Status
	}{
		{StatusRevoked, StatusActive},
		{StatusRevoked, StatusPending},
		{StatusActive, StatusPending},
		{StatusActive, StatusActive},
		{StatusPending, StatusPending},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "active", "revoked"} {
		st, err := ParseStatus(s)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", s, err)
		}
		if string(st) != s {
			t.Errorf("expected %q, got %q", s, st)
		}
	}
	if _, err := ParseStatus("approved"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestPurposeValid(t *testing.T) {
	for _, p := range Purposes {
		if !p.Valid() {
			t.Errorf("expected %q to be valid", p)
		}
	}
	if Purpose("Marketing Outreach").Valid() {
		t.Error("expected unknown purpose to be invalid")
	}
}

func TestScopeString(t *testing.T) {
	active := StatusActive
	sc := Scope{SubjectID: "patient-001", Status: &active}
	if got := sc.String(); got != "subject=patient-001 status=active" {
		t.Errorf("unexpected scope string: %s", got)
	}
	if got := (Scope{}).String(); got != "subject=* status=all" {
		t.Errorf("unexpected empty scope string: %s", got)
	}
}
