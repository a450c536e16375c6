package common

import "fmt"

// Outcome is the acquisition status of a day
type Outcome int

const (
	OutcomePENDING Outcome = iota // No flag: in progress, interrupted or never started
	OutcomeSUCCESS
	OutcomeFAILURE
)

func (o Outcome) String() string {
	switch o {
	case OutcomePENDING:
		return "PENDING"
	case OutcomeSUCCESS:
		return "SUCCESS"
	case OutcomeFAILURE:
		return "FAILURE"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// FlagName returns the name of the flag file of the outcome, or "" for OutcomePENDING
func (o Outcome) FlagName() string {
	switch o {
	case OutcomeSUCCESS, OutcomeFAILURE:
		return o.String()
	}
	return ""
}

// Usable returns true if the data of the day can be consumed
func (o Outcome) Usable() bool {
	return o == OutcomeSUCCESS
}
