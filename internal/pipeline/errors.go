package pipeline

import "fmt"

const (
	msgNoContent     = "no content found"
	msgTimeLimit     = "job exceeded time limit"
	msgScheduleFault = "failed to schedule job"
)

// JobFailure is returned by Pipeline.Run when an attempt did not complete.
// A transient failure leaves the job in processing so the worker can run it
// again; any other failure has already been written to the job record.
type JobFailure struct {
	JobID     string
	Message   string
	Transient bool
	Err       error
}

func (f *JobFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("job %s: %s: %v", f.JobID, f.Message, f.Err)
	}
	return fmt.Sprintf("job %s: %s", f.JobID, f.Message)
}

func (f *JobFailure) Unwrap() error { return f.Err }

func (f *JobFailure) Retryable() bool { return f.Transient }
