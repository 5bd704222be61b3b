// ABOUTME: Tests for message classification
// ABOUTME: Checks every outcome and that each input maps to exactly one of them

package classify

import (
	"strings"
	"testing"
)

const allowed = "owner@example.com"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		body     string
		expected Outcome
	}{
		{name: "foreign sender", from: "stranger@example.org", body: "[add] test", expected: OutOfScope},
		{name: "display name sender", from: "Owner <owner@example.com>", body: "[add] test", expected: Add},
		{name: "no marker", from: allowed, body: "hello there", expected: NoCommand},
		{name: "add", from: allowed, body: "[add] saw a heron", expected: Add},
		{name: "delete", from: allowed, body: "[delete] saw a heron", expected: Delete},
		{name: "both markers", from: allowed, body: "[add] x [delete] y", expected: Ambiguous},
		{name: "marker mid text", from: allowed, body: "note [delete]", expected: Delete},
		{name: "empty body", from: allowed, body: "", expected: NoCommand},
		{name: "unbracketed word", from: allowed, body: "add this", expected: NoCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.from, strings.ToLower(tt.body), allowed)
			if got != tt.expected {
				t.Errorf("Classify() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClassifyEmptyAllowlist(t *testing.T) {
	if got := Classify("anyone@example.com", "[add] x", ""); got != OutOfScope {
		t.Errorf("expected empty allowlist to reject every sender, got %v", got)
	}
}

func TestClassifyExhaustive(t *testing.T) {
	senders := []string{"", allowed, "x@y.z", "Owner <owner@example.com>"}
	bodies := []string{"", "[add]", "[delete]", "[add][delete]", "plain", "[ADD] upper", "[add] [add]"}

	for _, from := range senders {
		for _, body := range bodies {
			got := Classify(from, strings.ToLower(body), allowed)
			matches := 0
			for _, o := range Outcomes {
				if got == o {
					matches++
				}
			}
			if matches != 1 {
				t.Errorf("Classify(%q, %q) = %v matched %d defined outcomes", from, body, got, matches)
			}
		}
	}
}

func TestOutcomeString(t *testing.T) {
	expected := map[Outcome]string{
		OutOfScope: "out-of-scope",
		NoCommand:  "ignored-no-command",
		Ambiguous:  "ignored-ambiguous",
		Add:        "add",
		Delete:     "delete",
	}
	for o, s := range expected {
		if o.String() != s {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, o.String(), s)
		}
	}
	if Outcome(99).String() != "unknown" {
		t.Errorf("expected unknown for undefined outcome")
	}
	if !Add.IsCommand() || !Delete.IsCommand() || Ambiguous.IsCommand() {
		t.Error("IsCommand mismatch")
	}
}

func TestParseOutcome(t *testing.T) {
	for _, o := range Outcomes {
		got, ok := ParseOutcome(o.String())
		if !ok || got != o {
			t.Errorf("ParseOutcome(%q) = %v, %v", o.String(), got, ok)
		}
	}
	if _, ok := ParseOutcome("bogus"); ok {
		t.Error("expected bogus outcome to be rejected")
	}
}
