package relfreq

import "github.com/bwmills/relfreq/internal/pkg/relfs"

// Phase is a stage of job execution
type Phase int

// Phases of the pipeline
const (
	MapPhase Phase = iota
	ReducePhase
)

// task is the unit of work dispatched to an executor. It carries
// everything a remote invocation needs to reconstruct its slice of
// the job.
type task struct {
	Phase            Phase
	BinID            uint
	Splits           []inputSplit
	IntermediateBins uint
	IntermediateDir  string
	OutputPath       string
	MaxTokenLength   int
	FileSystemType   relfs.FileSystemType
}
