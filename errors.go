package selcheck

import "fmt"

// InvalidSelectionError reports a malformed selection: vector ranks that
// disagree with the space rank, a zero stride, or a region reaching outside
// the extent.
type InvalidSelectionError struct {
	Kind   SelectionKind
	Dim    int // offending dimension, -1 when not dimension-specific
	Reason string
}

// Error implements the error interface.
func (e *InvalidSelectionError) Error() string {
	if e.Dim < 0 {
		return fmt.Sprintf("invalid %s selection: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s selection in dimension %d: %s", e.Kind, e.Dim, e.Reason)
}

// CountMismatchError reports that the store-space and memory-space
// selections of one transfer describe different element counts.
type CountMismatchError struct {
	StoreCount  uint64
	MemoryCount uint64
}

// Error implements the error interface.
func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("selection count mismatch: store selects %d elements, memory selects %d",
		e.StoreCount, e.MemoryCount)
}

// IOError reports a storage collaborator failure. Op names the operation
// (create, open, write, read, close) and Name the dataset or store involved.
type IOError struct {
	Op   string
	Name string
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store %s %q failed", e.Op, e.Name)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Name, e.Err)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *IOError) Unwrap() error { return e.Err }

// ioErr builds an IOError, passing nil causes through unchanged.
func ioErr(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Name: name, Err: err}
}

// collectiveErr marks an operation that failed on a peer worker: the local
// call succeeded but the group-wide reduction latched a failure.
func collectiveErr(op, name string) error {
	return &IOError{Op: op, Name: name, Err: fmt.Errorf("collective operation failed on a peer worker")}
}

// MismatchError reports the first verification mismatch of a check loop.
// Position is the linear element position within the checked buffer; Coord,
// when non-nil, is the store-space coordinate it maps to.
type MismatchError struct {
	Position uint64
	Coord    []uint64
	Got      int32
	Want     int32
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	if e.Coord != nil {
		return fmt.Sprintf("verification mismatch at position %d (store coordinate %v): got %d, want %d",
			e.Position, e.Coord, e.Got, e.Want)
	}
	return fmt.Sprintf("verification mismatch at position %d: got %d, want %d",
		e.Position, e.Got, e.Want)
}

// Stage names the scenario state-machine step a failure belongs to.
type Stage string

// Scenario stages, in execution order.
const (
	StageSetup    Stage = "setup"
	StageFill     Stage = "fill"
	StageWrite    Stage = "write"
	StageReopen   Stage = "reopen"
	StageRead     Stage = "read"
	StageVerify   Stage = "verify"
	StageTeardown Stage = "teardown"
)

// StageError tags an underlying failure with the stage it occurred in.
// Message formatting stays with the caller; the value carries structure.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *StageError) Unwrap() error { return e.Err }

// atStage wraps err with its stage; nil passes through.
func atStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ScenarioError identifies the scenario and part a stage failure belongs to.
type ScenarioError struct {
	Scenario string
	Part     string
	Err      error
}

// Error implements the error interface.
func (e *ScenarioError) Error() string {
	if e.Part != "" && e.Part != e.Scenario {
		return fmt.Sprintf("scenario %q part %q: %v", e.Scenario, e.Part, e.Err)
	}
	return fmt.Sprintf("scenario %q: %v", e.Scenario, e.Err)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *ScenarioError) Unwrap() error { return e.Err }
