package model

// PipelinePhase is the phase of an install pipeline run.
type PipelinePhase string

const (
	PipelinePhaseIdle      PipelinePhase = "idle"
	PipelinePhaseRunning   PipelinePhase = "running"
	PipelinePhaseSucceeded PipelinePhase = "succeeded"
	PipelinePhaseFailed    PipelinePhase = "failed"
)

// PipelineState is a progress event of an install pipeline run.
type PipelineState struct {
	Phase     PipelinePhase
	StepIndex int
	StepName  string
	// Percent never regresses inside a run.
	Percent int
	Message string
}
