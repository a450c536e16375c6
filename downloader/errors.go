package downloader

import "fmt"

// Stage of the acquisition of a day
type Stage int

const (
	StageReset Stage = iota
	StageFetchMetadata
	StageFilter
	StageBuildPlan
	StageExecute
)

func (s Stage) String() string {
	switch s {
	case StageReset:
		return "reset"
	case StageFetchMetadata:
		return "fetch_metadata"
	case StageFilter:
		return "filter"
	case StageBuildPlan:
		return "build_plan"
	case StageExecute:
		return "execute"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ParseStage returns the stage from its String() representation
func ParseStage(s string) (Stage, error) {
	for stage := StageReset; stage <= StageExecute; stage++ {
		if stage.String() == s {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", s)
}

// StageError attributes a failure to the stage of the acquisition that raised it
type StageError struct {
	Stage Stage
	Err   error
}

func (e StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e StageError) Unwrap() error { return e.Err }

// TransferError is returned when a listing or a download of a product file fails
type TransferError struct {
	Op       string // list or fetch
	Location string
	Err      error
}

func (e TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

func (e TransferError) Unwrap() error { return e.Err }
