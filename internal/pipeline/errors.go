package pipeline

import "fmt"

// Stage names a processing phase.
type Stage string

const (
	StageRender   Stage = "render"
	StageConvert  Stage = "convert"
	StageParse    Stage = "parse"
	StageAnnotate Stage = "annotate"
	StageExport   Stage = "export"
)

// StageError reports which phase a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
