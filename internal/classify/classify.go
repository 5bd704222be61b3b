// ABOUTME: Message classification by sender allowlist and command markers
// ABOUTME: Maps a sender and lowercased body to exactly one terminal outcome

package classify

import "strings"

// Command markers recognised in message bodies. Matching is case-insensitive.
const (
	AddMarker    = "[add]"
	DeleteMarker = "[delete]"
)

// Outcome is the result of classifying one message.
type Outcome int

const (
	// OutOfScope means the sender is not the allowed address.
	OutOfScope Outcome = iota
	// NoCommand means the body carries neither marker.
	NoCommand
	// Ambiguous means the body carries both markers.
	Ambiguous
	// Add means the body carries only the add marker.
	Add
	// Delete means the body carries only the delete marker.
	Delete
)

// Outcomes lists every outcome in declaration order.
var Outcomes = []Outcome{OutOfScope, NoCommand, Ambiguous, Add, Delete}

func (o Outcome) String() string {
	switch o {
	case OutOfScope:
		return "out-of-scope"
	case NoCommand:
		return "ignored-no-command"
	case Ambiguous:
		return "ignored-ambiguous"
	case Add:
		return "add"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// IsCommand reports whether the outcome mutates entries.
func (o Outcome) IsCommand() bool {
	return o == Add || o == Delete
}

// Sender reports whether the From header value contains the allowed address.
// An empty allowed address matches nothing.
func Sender(from, allowedFrom string) bool {
	return allowedFrom != "" && strings.Contains(from, allowedFrom)
}

// Body classifies an in-scope body that has already been lowercased.
func Body(bodyLower string) Outcome {
	hasAdd := strings.Contains(bodyLower, AddMarker)
	hasDelete := strings.Contains(bodyLower, DeleteMarker)
	switch {
	case hasAdd && hasDelete:
		return Ambiguous
	case hasAdd:
		return Add
	case hasDelete:
		return Delete
	default:
		return NoCommand
	}
}

// Classify combines the sender check and body markers.
func Classify(from, bodyLower, allowedFrom string) Outcome {
	if !Sender(from, allowedFrom) {
		return OutOfScope
	}
	return Body(bodyLower)
}

// ParseOutcome returns the outcome whose String form is s.
func ParseOutcome(s string) (Outcome, bool) {
	for _, o := range Outcomes {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}
