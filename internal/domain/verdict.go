package domain

// VerdictKind enumerates safety validator outcomes.
type VerdictKind string

const (
	VerdictAllowed VerdictKind = "allowed"
	VerdictWarning VerdictKind = "warning"
	VerdictBlocked VerdictKind = "blocked"
)

// Verdict is the safety classification of one command text.
type Verdict struct {
	Kind   VerdictKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
	Rule   string      `json:"rule,omitempty"`
}

// Allowed builds a plain allow verdict.
func Allowed() Verdict {
	return Verdict{Kind: VerdictAllowed}
}

// Warning builds an allow-with-warning verdict.
func Warning(rule, reason string) Verdict {
	return Verdict{Kind: VerdictWarning, Rule: rule, Reason: reason}
}

// Blocked builds a blocking verdict.
func Blocked(rule, reason string) Verdict {
	return Verdict{Kind: VerdictBlocked, Rule: rule, Reason: reason}
}

func (v Verdict) IsBlocked() bool { return v.Kind == VerdictBlocked }
func (v Verdict) IsWarning() bool { return v.Kind == VerdictWarning }
