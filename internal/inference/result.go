package inference

import "fmt"

type Label int

const (
	LowRisk  Label = 0
	HighRisk Label = 1
)

func (l Label) String() string {
	if l == HighRisk {
		return "high-risk"
	}
	return "low-risk"
}

// Result is derived per request and never stored.
type Result struct {
	Label       Label
	Probability float64 // of heart disease being present
}

func (r Result) Message() string {
	if r.Label == HighRisk {
		return fmt.Sprintf("High risk of heart disease (Probability: %.2f%%)", r.Probability*100)
	}
	return fmt.Sprintf("Low risk of heart disease (Probability: %.2f%%)", r.Probability*100)
}

const ConsultNote = "Consult a healthcare professional for further evaluation."
