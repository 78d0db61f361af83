package relfreq

// executor runs a job's map and reduce tasks. The driver fans tasks out
// to an executor; the local executor runs them in-process, the lambda
// executor ships them to AWS Lambda invocations of the same binary.
type executor interface {
	RunMapper(job *Job, mapperID uint, splits []inputSplit) error
	RunReducer(job *Job, binID uint) error
}

type localExecutor struct{}

func (localExecutor) RunMapper(job *Job, mapperID uint, splits []inputSplit) error {
	return job.runMapper(mapperID, splits)
}

func (localExecutor) RunReducer(job *Job, binID uint) error {
	return job.runReducer(binID)
}
