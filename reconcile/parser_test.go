package reconcile

import "testing"

func TestParseParticipants(t *testing.T) {
	parsed, errs := ParseParticipants("AUTOR:John Doe|REU: Big Corp S.A. ")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 participants got %d", len(parsed))
	}
	if parsed[0].Role != "AUTOR" || parsed[0].Name != "John Doe" {
		t.Fatalf("unexpected first participant: %+v", parsed[0])
	}
	if parsed[1].Role != "REU" || parsed[1].Name != "Big Corp S.A." {
		t.Fatalf("unexpected second participant: %+v", parsed[1])
	}
}

func TestParseParticipantsMalformed(t *testing.T) {
	parsed, errs := ParseParticipants("AUTOR:John Doe|no-separator-here|REU:Jane Poe")
	if len(errs) != 1 {
		t.Fatalf("expected 1 malformed entry, got %v", errs)
	}
	if len(parsed) != 2 {
		t.Fatalf("malformed entry must not drop well-formed ones, got %d", len(parsed))
	}
}

func TestParseParticipantsEmpty(t *testing.T) {
	parsed, errs := ParseParticipants("")
	if len(parsed) != 0 || len(errs) != 0 {
		t.Fatalf("expected empty result, got %v / %v", parsed, errs)
	}

	parsed, errs = ParseParticipants(" | | ")
	if len(parsed) != 0 || len(errs) != 0 {
		t.Fatalf("blank entries must be ignored, got %v / %v", parsed, errs)
	}
}

func TestParseAttorneys(t *testing.T) {
	parsed, errs := ParseAttorneys("AUTOR:Jane Roe (OAB123)|REU:No Bar Counsel")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 attorneys got %d", len(parsed))
	}
	if parsed[0].Name != "Jane Roe" || parsed[0].BarRegistration != "OAB123" {
		t.Fatalf("expected bar registration stripped from name, got %+v", parsed[0])
	}
	if parsed[1].Name != "No Bar Counsel" || parsed[1].BarRegistration != "" {
		t.Fatalf("unexpected attorney without bar: %+v", parsed[1])
	}
}

func TestParseAttorneysOnlyTrailingBar(t *testing.T) {
	parsed, errs := ParseAttorneys("AUTOR:Roe (Junior) Associates (OAB9)")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if parsed[0].Name != "Roe (Junior) Associates" || parsed[0].BarRegistration != "OAB9" {
		t.Fatalf("only the trailing segment is the bar registration, got %+v", parsed[0])
	}
}
