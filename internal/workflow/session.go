// Package workflow owns the try-on state machine: step transitions, image
// intake, job submission, and the polling loop that tracks an in-flight job
// until a terminal status.
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wearly/tryon-embed/internal/intake"
)

// JobClient submits try-on jobs and polls their status through the
// same-origin relay.
type JobClient interface {
	Submit(ctx context.Context, humanImage, clothImage string) (string, error)
	Poll(ctx context.Context, taskID string) (JobStatus, error)
}

// ProductFetcher turns a product image reference (URL or data URI) into a
// base64 data URI, routing cross-origin URLs through the relay's proxy.
type ProductFetcher interface {
	FetchDataURI(ctx context.Context, src string) (string, error)
}

// ResultSink persists the result image on user request ("save").
type ResultSink interface {
	Save(ctx context.Context, resultURL string) error
}

// SharePlatform is an optional platform share capability; when absent or
// unavailable, sharing falls back to the save path.
type SharePlatform interface {
	CanShare() bool
	Share(ctx context.Context, resultURL string) error
}

const (
	defaultProgressTick = 200 * time.Millisecond
	defaultStatusTick   = 5 * time.Second
	// simulatedProgressCap keeps simulated progress from implying completion
	// before a real terminal status arrives.
	simulatedProgressCap = 95
	// hintProgressCap bounds provider progress hints the same way.
	hintProgressCap = 90
)

type Deps struct {
	Jobs       JobClient
	Products   ProductFetcher
	Normalizer *intake.Normalizer
	Sink       ResultSink
	Share      SharePlatform
	Logger     *slog.Logger

	ProgressTick time.Duration
	StatusTick   time.Duration
	// PollBudget bounds how long a job may stay in Processing before it is
	// failed as timed out. Zero keeps polling until a terminal status.
	PollBudget time.Duration
}

// Session drives one embedded try-on session. All state lives behind one
// mutex; the polling loop is the only goroutine the session ever starts, and
// it is torn down on any exit from Processing.
type Session struct {
	id        uuid.UUID
	jobs      JobClient
	products  ProductFetcher
	normalize *intake.Normalizer
	sink      ResultSink
	share     SharePlatform
	logger    *slog.Logger

	progressTick time.Duration
	statusTick   time.Duration
	pollBudget   time.Duration

	mu         sync.Mutex
	st         State
	episode    int
	closed     bool
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

func NewSession(deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	normalize := deps.Normalizer
	if normalize == nil {
		normalize = intake.New(intake.Options{})
	}

	progressTick := deps.ProgressTick
	if progressTick <= 0 {
		progressTick = defaultProgressTick
	}

	statusTick := deps.StatusTick
	if statusTick <= 0 {
		statusTick = defaultStatusTick
	}

	return &Session{
		id:           uuid.New(),
		jobs:         deps.Jobs,
		products:     deps.Products,
		normalize:    normalize,
		sink:         deps.Sink,
		share:        deps.Share,
		logger:       logger,
		progressTick: progressTick,
		statusTick:   statusTick,
		pollBudget:   deps.PollBudget,
		st:           State{Step: StepPreview},
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Snapshot returns a copy of the current state for presentation reads.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// SetProductImage records the product image received from the host page.
// The reference is immutable for the session once set; later calls are
// ignored.
func (s *Session) SetProductImage(src string) {
	if src == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.ProductImage != "" {
		return
	}
	s.st.ProductImage = src
}

// GoToStep performs a user-initiated step change. Processing and Result are
// only reachable through Submit and the polling loop; moving away from
// Processing cancels the active polling loop.
func (s *Session) GoToStep(step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch step {
	case StepPreview:
	case StepUpload:
		if s.st.Step == StepPreview && s.st.ProductImage == "" {
			return ErrNoProductImage
		}
	default:
		return ErrInvalidTransition
	}

	if s.st.Step == StepProcessing {
		s.stopPollingLocked()
	}
	if s.st.Step == StepResult {
		s.st.ResultImage = ""
	}

	s.st.Direction = direction(step)
	s.st.Step = step
	return nil
}

// Upload validates and normalizes a user-selected file. On failure the
// user image stays unset and the error message is surfaced inline.
func (s *Session) Upload(contentType string, data []byte) error {
	s.mu.Lock()
	s.st.Err = ""
	s.mu.Unlock()

	encoded, err := s.normalize.Normalize(contentType, data)
	if err != nil {
		s.mu.Lock()
		s.st.Err = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.st.UserImage = encoded
	s.mu.Unlock()
	return nil
}

// Submit sends the image pair to the relay and, on success, enters
// Processing and starts the polling loop. On failure the session returns to
// Upload with a user-facing error and no task ID.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.st.Step != StepUpload {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if s.st.ProductImage == "" {
		s.mu.Unlock()
		return ErrNoProductImage
	}
	if s.st.UserImage == "" {
		s.mu.Unlock()
		return ErrNoUserImage
	}

	productImage := s.st.ProductImage
	userImage := s.st.UserImage

	s.st.Err = ""
	s.st.Progress = 0
	s.st.Direction = direction(StepProcessing)
	s.st.Step = StepProcessing
	s.mu.Unlock()

	taskID, err := s.submitPair(ctx, productImage, userImage)
	if err != nil {
		s.mu.Lock()
		if !s.closed && s.st.Step == StepProcessing {
			s.st.Err = "Failed to process images: " + err.Error()
			s.st.Direction = direction(StepUpload)
			s.st.Step = StepUpload
		}
		s.st.TaskID = ""
		s.mu.Unlock()
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed || s.st.Step != StepProcessing {
		// Torn down (navigation or Close) while the submission was in
		// flight; the job keeps running provider-side, which is accepted.
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.st.TaskID = taskID
	s.episode++
	episode := s.episode
	s.pollCancel = cancel
	s.pollDone = done
	s.mu.Unlock()

	s.logger.Info("try-on job submitted",
		"session_id", s.id,
		"task_id", taskID,
	)

	go s.pollLoop(pollCtx, taskID, episode, done)
	return nil
}

func (s *Session) submitPair(ctx context.Context, productImage, userImage string) (string, error) {
	productURI, err := s.products.FetchDataURI(ctx, productImage)
	if err != nil {
		return "", err
	}

	return s.jobs.Submit(ctx, base64Content(userImage), base64Content(productURI))
}

// SaveResult downloads the result image through the configured sink.
func (s *Session) SaveResult(ctx context.Context) error {
	resultURL := s.Snapshot().ResultImage
	if resultURL == "" {
		return ErrNoResult
	}
	return s.sink.Save(ctx, resultURL)
}

// ShareResult shares through the platform capability when available and
// falls back to the save path otherwise.
func (s *Session) ShareResult(ctx context.Context) error {
	resultURL := s.Snapshot().ResultImage
	if resultURL == "" {
		return ErrNoResult
	}

	if s.share != nil && s.share.CanShare() {
		return s.share.Share(ctx, resultURL)
	}
	return s.sink.Save(ctx, resultURL)
}

// Close ends the session, cancelling any active polling loop and waiting for
// it to exit. The provider-side job, if any, keeps running.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	done := s.pollDone
	s.stopPollingLocked()
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// stopPollingLocked tears the polling loop down: cancels its context, clears
// the task ID, and bumps the episode so a stale loop can never mutate state
// again. Callers hold s.mu.
func (s *Session) stopPollingLocked() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.pollDone = nil
	s.st.TaskID = ""
	s.episode++
}

func (s *Session) pollLoop(ctx context.Context, taskID string, episode int, done chan struct{}) {
	defer close(done)

	progressTicker := time.NewTicker(s.progressTick)
	defer progressTicker.Stop()
	statusTicker := time.NewTicker(s.statusTick)
	defer statusTicker.Stop()

	started := time.Now()

	// The original schedule jumps to 10 as soon as a task ID exists.
	s.withEpisode(episode, func() {
		if s.st.Progress < 10 {
			s.st.Progress = 10
		}
	})

	for {
		select {
		case <-ctx.Done():
			return

		case <-progressTicker.C:
			s.withEpisode(episode, func() {
				s.st.Progress = simulateProgress(s.st.Progress)
			})

		case <-statusTicker.C:
			if s.pollBudget > 0 && time.Since(started) > s.pollBudget {
				s.finishFailure(episode, "Processing timed out")
				return
			}

			status, err := s.jobs.Poll(ctx, taskID)
			if err != nil {
				// Transient by policy: absorbed and retried, never shown.
				s.logger.Debug("status check failed",
					"session_id", s.id,
					"task_id", taskID,
					"error", err,
				)
				continue
			}

			switch status.State {
			case JobStateSucceeded:
				s.finishSuccess(episode, status.ResultURL)
				return
			case JobStateFailed:
				s.finishFailure(episode, "Processing failed: "+status.Message)
				return
			case JobStateProcessing:
				if status.Progress >= 0 {
					s.adoptProgressHint(episode, status.Progress)
				}
			default:
				s.logger.Debug("unrecognized status response",
					"session_id", s.id,
					"task_id", taskID,
					"state", status.State,
				)
			}
		}
	}
}

// withEpisode runs fn under the session lock only while the given polling
// episode is still current, so a torn-down loop cannot mutate state.
func (s *Session) withEpisode(episode int, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.episode != episode {
		return false
	}
	fn()
	return true
}

func (s *Session) finishSuccess(episode int, resultURL string) {
	current := s.withEpisode(episode, func() {
		s.st.ResultImage = resultURL
		s.st.Progress = 100
		s.st.TaskID = ""
		s.st.Direction = direction(StepResult)
		s.st.Step = StepResult
		s.pollCancel = nil
		s.pollDone = nil
		s.episode++
	})
	if current {
		s.logger.Info("try-on job succeeded", "session_id", s.id)
	}
}

func (s *Session) finishFailure(episode int, message string) {
	current := s.withEpisode(episode, func() {
		s.st.Err = message
		s.st.TaskID = ""
		s.st.Direction = direction(StepUpload)
		s.st.Step = StepUpload
		s.pollCancel = nil
		s.pollDone = nil
		s.episode++
	})
	if current {
		s.logger.Info("try-on job failed",
			"session_id", s.id,
			"reason", message,
		)
	}
}

func (s *Session) adoptProgressHint(episode int, hint float64) {
	s.withEpisode(episode, func() {
		bounded := hint
		if bounded > hintProgressCap {
			bounded = hintProgressCap
		}
		if bounded > s.st.Progress {
			s.st.Progress = bounded
		}
	})
}

// simulateProgress advances displayed progress with a decelerating schedule,
// capped below 100 so only a real terminal status can complete the bar.
func simulateProgress(current float64) float64 {
	var increment float64
	switch {
	case current < 10:
		increment = 2.0
	case current < 20:
		increment = 1.5
	case current < 40:
		increment = 1.0
	case current < 70:
		increment = 0.5
	default:
		increment = 0.2
	}

	next := current + increment
	if next > simulatedProgressCap {
		return simulatedProgressCap
	}
	return next
}

func direction(target Step) int {
	if target == StepPreview {
		return -1
	}
	return 1
}

// base64Content strips the data URI prefix, leaving the raw base64 payload
// the provider wire format expects.
func base64Content(dataURI string) string {
	if i := strings.IndexByte(dataURI, ','); i >= 0 {
		return dataURI[i+1:]
	}
	return dataURI
}
