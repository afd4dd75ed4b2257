package workflow

import "errors"

// Step is the UI phase the embedded app is in.
type Step string

const (
	StepPreview    Step = "preview"
	StepUpload     Step = "upload"
	StepProcessing Step = "processing"
	StepResult     Step = "result"
)

var (
	ErrNoProductImage    = errors.New("no product image available")
	ErrNoUserImage       = errors.New("no user image uploaded")
	ErrNoResult          = errors.New("no result image available")
	ErrInvalidTransition = errors.New("invalid step transition")
)

// State is a snapshot of the single per-session workflow state. Only the
// Session mutates it; presentation code reads copies via Snapshot.
type State struct {
	Step         Step
	Direction    int
	ProductImage string
	UserImage    string
	ResultImage  string
	TaskID       string
	Progress     float64
	Err          string
}

// JobState classifies a poll response.
type JobState string

const (
	// JobStateUnknown marks a transient or malformed response; the poll loop
	// retries on the next tick.
	JobStateUnknown    JobState = "unknown"
	JobStateProcessing JobState = "processing"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
)

// JobStatus is the relay's answer to a single poll.
type JobStatus struct {
	State JobState
	// Progress is the provider's numeric hint in [0,100]; negative when the
	// provider sent none.
	Progress  float64
	ResultURL string
	Message   string
}

// SubmissionError is a job submission the relay or provider rejected. The
// message is user-facing and carries the provider's error code.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return e.Message
}
