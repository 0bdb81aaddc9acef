package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/google/uuid"
)

// Session errors.
var (
	ErrStepsLoading     = errors.New("steps are still loading")
	ErrAlreadySubmitted = errors.New("tasting already submitted")
	ErrUnknownStep      = errors.New("step not found in this session")
	ErrNotAQuestion     = errors.New("step does not take an answer")
	ErrInvalidOption    = errors.New("value is not one of the step's options")
)

// Submitter receives the answer snapshot when a participant reaches the thanks step.
type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) error
}

// Session is one participant's pass through a tasting. It owns the step sequence, the cursor,
// and the answers; nothing in it is shared with other sessions.
type Session struct {
	mu sync.Mutex

	id          string
	participant models.Participant
	tastingCode string
	createdAt   time.Time
	submitter   Submitter

	packageID int64
	steps     []models.Step
	nav       *Navigator
	answers   *AnswerStore
	fallback  bool
	notice    string

	loading          bool
	generation       uint64
	requestedPackage int64

	// submitted is set, under mu, the moment thanks is first entered. It outlives the navigator,
	// which LoadPackage replaces.
	submitted  bool
	submission *models.Submission
	submitErr  string
}

// NewSession creates a session positioned on the signin step of the fallback sequence until a
// package is loaded.
func NewSession(id string, participant models.Participant, tastingCode string, submitter Submitter) *Session {
	steps := DefaultSteps()
	return &Session{
		id:          id,
		participant: participant,
		tastingCode: tastingCode,
		createdAt:   time.Now(),
		submitter:   submitter,
		steps:       steps,
		nav:         NewNavigator(steps),
		answers:     NewAnswerStore(),
		fallback:    true,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// LoadPackage rebuilds the step sequence for packageID. A load that finishes after a newer
// request was made is discarded; the return value reports whether this load was committed.
func (s *Session) LoadPackage(ctx context.Context, loader *Loader, packageID int64) (bool, error) {
	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return false, ErrAlreadySubmitted
	}
	s.generation++
	gen := s.generation
	s.requestedPackage = packageID
	s.loading = true
	s.mu.Unlock()

	res := loader.Load(ctx, packageID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.requestedPackage != packageID {
		slog.Info("Session.LoadPackage: discarding superseded load", "sessionID", s.id, "packageID", packageID, "requested", s.requestedPackage)
		return false, nil
	}
	if s.submitted {
		s.loading = false
		return false, ErrAlreadySubmitted
	}
	s.loading = false
	s.packageID = packageID
	s.steps = res.Steps
	s.nav = NewNavigator(res.Steps)
	s.answers = NewAnswerStore()
	s.fallback = res.Fallback
	s.notice = res.Notice
	slog.Debug("Session.LoadPackage committed", "sessionID", s.id, "packageID", packageID, "steps", len(res.Steps), "fallback", res.Fallback)
	return true, nil
}

// Advance moves to the next step. Entering thanks for the first time submits the answers.
func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrStepsLoading
	}
	entered := s.nav.Advance()
	sub, first := s.claimSubmissionLocked(entered)
	s.mu.Unlock()

	if first {
		s.submit(ctx, sub)
	}
	return nil
}

// Retreat moves to the previous step.
func (s *Session) Retreat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.Retreat()
}

// JumpTo places the cursor directly, as when re-entering a session at a known step.
func (s *Session) JumpTo(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrStepsLoading
	}
	entered := s.nav.JumpTo(index)
	sub, first := s.claimSubmissionLocked(entered)
	s.mu.Unlock()

	if first {
		s.submit(ctx, sub)
	}
	return nil
}

// ApplyAnswers updates one bottle's fixed-shape answers.
func (s *Session) ApplyAnswers(ordinal int, patch models.AnswerPatch) models.BottleAnswers {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers.Apply(ordinal, patch)
	return s.answers.Get(ordinal)
}

// SetResponse records the answer to a question step. Multiple choice answers must come from
// the step's options when it has any.
func (s *Session) SetResponse(stepID int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.steps, func(st models.Step) bool { return st.ID == stepID })
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownStep, stepID)
	}
	step := s.steps[idx]
	if step.Kind.IsStructural() || step.Kind == models.StepDivider {
		return fmt.Errorf("%w: %s", ErrNotAQuestion, step.Kind)
	}
	if step.Kind == models.StepMultipleChoice && len(step.Options) > 0 {
		for _, v := range values {
			if !slices.Contains(step.Options, v) {
				return fmt.Errorf("%w: %q", ErrInvalidOption, v)
			}
		}
	}
	s.answers.SetResponse(stepID, values)
	return nil
}

// claimSubmissionLocked marks the session submitted when thanks was just entered and nothing
// was submitted before. Callers hold s.mu.
func (s *Session) claimSubmissionLocked(entered bool) (models.Submission, bool) {
	if !entered || s.submitted {
		return models.Submission{}, false
	}
	s.submitted = true
	return s.snapshotLocked(), true
}

// snapshotLocked captures the submission payload. Callers hold s.mu.
func (s *Session) snapshotLocked() models.Submission {
	answers, responses := s.answers.Snapshot()
	bottles := make(map[int]string)
	for _, st := range s.steps {
		if st.Kind == models.StepInterlude {
			bottles[st.BottleOrdinal] = st.BottleName
		}
	}
	return models.Submission{
		ID:           uuid.NewString(),
		SessionID:    s.id,
		TastingCode:  s.tastingCode,
		PackageID:    s.packageID,
		Participant:  s.participant,
		Bottles:      bottles,
		Answers:      answers,
		Responses:    responses,
		UsedFallback: s.fallback,
		SubmittedAt:  time.Now(),
	}
}

func (s *Session) submit(ctx context.Context, sub models.Submission) {
	var errMsg string
	if s.submitter == nil {
		slog.Warn("Session.submit: no submitter configured, answers kept in session only", "sessionID", s.id)
	} else if err := s.submitter.Submit(ctx, sub); err != nil {
		slog.Error("Session.submit: submission failed", "error", err, "sessionID", s.id)
		errMsg = err.Error()
	} else {
		slog.Info("Session.submit succeeded", "sessionID", s.id, "bottles", len(sub.Answers))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submission = &sub
	s.submitErr = errMsg
}

// View is a read-only snapshot of a session for the rendering layer.
type View struct {
	ID           string                       `json:"id"`
	Participant  models.Participant           `json:"participant"`
	TastingCode  string                       `json:"tasting_code,omitempty"`
	PackageID    int64                        `json:"package_id,omitempty"`
	Cursor       int                          `json:"cursor"`
	Total        int                          `json:"total"`
	Current      *models.Step                 `json:"current,omitempty"`
	Steps        []models.Step                `json:"steps,omitempty"`
	Answers      map[int]models.BottleAnswers `json:"answers,omitempty"`
	Responses    map[int][]string             `json:"responses,omitempty"`
	Loading      bool                         `json:"loading"`
	Fallback     bool                         `json:"fallback"`
	Notice       string                       `json:"notice,omitempty"`
	Finished     bool                         `json:"finished"`
	Submitted    bool                         `json:"submitted"`
	SubmissionID string                       `json:"submission_id,omitempty"`
	SubmitError  string                       `json:"submit_error,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
}

// View returns the session's current state. Steps are included only when withSteps is set.
func (s *Session) View(withSteps bool) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers, responses := s.answers.Snapshot()
	v := View{
		ID:          s.id,
		Participant: s.participant,
		TastingCode: s.tastingCode,
		PackageID:   s.packageID,
		Cursor:      s.nav.Cursor(),
		Total:       s.nav.Len(),
		Answers:     answers,
		Responses:   responses,
		Loading:     s.loading,
		Fallback:    s.fallback,
		Notice:      s.notice,
		Finished:    s.nav.Finished(),
		Submitted:   s.submission != nil && s.submitErr == "",
		SubmitError: s.submitErr,
		CreatedAt:   s.createdAt,
	}
	if v.Submitted {
		v.SubmissionID = s.submission.ID
	}
	if cur, ok := s.nav.Current(); ok {
		v.Current = &cur
	}
	if withSteps {
		v.Steps = cloneSteps(s.steps)
	}
	return v
}
