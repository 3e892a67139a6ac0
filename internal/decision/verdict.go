// Package decision evaluates triggering events against candidate templates
// and reduces the opinions of independent filters into one verdict per
// template.
package decision

import "fmt"

// Verdict is ordered by restrictiveness. The zero value is SendNow.
type Verdict int

const (
	SendNow Verdict = iota
	SendLater
	SendNever
)

var verdictNames = [...]string{
	SendNow:   "SEND_NOW",
	SendLater: "SEND_LATER",
	SendNever: "SEND_NEVER",
}

func (v Verdict) String() string {
	if v < SendNow || v > SendNever {
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
	return verdictNames[v]
}

func (v Verdict) MarshalText() ([]byte, error) {
	if v < SendNow || v > SendNever {
		return nil, fmt.Errorf("invalid verdict %d", int(v))
	}
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func ParseVerdict(s string) (Verdict, error) {
	for i, name := range verdictNames {
		if name == s {
			return Verdict(i), nil
		}
	}
	return SendNow, fmt.Errorf("unknown verdict %q", s)
}

// Decision is a verdict together with the reason that produced it.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason,omitempty"`
}

func Now() Decision {
	return Decision{Verdict: SendNow}
}

func Later(reason string) Decision {
	return Decision{Verdict: SendLater, Reason: reason}
}

func Never(reason string) Decision {
	return Decision{Verdict: SendNever, Reason: reason}
}

// MostRestrictive returns the decision with the highest verdict. Ties keep
// the earliest argument so the first reported reason survives.
func MostRestrictive(decisions ...Decision) Decision {
	merged := Now()
	for _, d := range decisions {
		if d.Verdict > merged.Verdict {
			merged = d
		}
	}
	return merged
}
