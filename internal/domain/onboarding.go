package domain

import (
	"time"
)

// OnboardingStep is a stage of the onboarding flow. Steps advance along a
// fixed total order and never move backward except via explicit reset.
type OnboardingStep string

const (
	StepLanguage        OnboardingStep = "language"
	StepAssessmentIntro OnboardingStep = "assessment_intro"
	StepAssessment      OnboardingStep = "assessment"
	StepComplete        OnboardingStep = "complete"
)

// stepOrder maps each step to its position in the total order.
var stepOrder = map[OnboardingStep]int{
	StepLanguage:        0,
	StepAssessmentIntro: 1,
	StepAssessment:      2,
	StepComplete:        3,
}

// Index returns the step's position in the total order, -1 for unknown steps.
func (s OnboardingStep) Index() int {
	if i, ok := stepOrder[s]; ok {
		return i
	}
	return -1
}

// SubmissionState tracks one assessment type's submission lifecycle.
type SubmissionState string

const (
	SubmissionPending   SubmissionState = "pending"
	SubmissionCompleted SubmissionState = "completed"
	SubmissionFailed    SubmissionState = "failed"
)

// SubmissionStatus pairs a submission state with optional error text.
type SubmissionStatus struct {
	State SubmissionState `json:"state"`
	Error string          `json:"error,omitempty"`
}

// LanguagePair is the user's native/target language selection.
type LanguagePair struct {
	Native string `json:"native" validate:"required,len=2"`
	Target string `json:"target" validate:"required,len=2"`
}

// Validate checks that both languages are present and distinct.
func (p LanguagePair) Validate() error {
	if err := validate.Struct(p); err != nil {
		return ErrInvalidInput
	}
	if p.Native == p.Target {
		return ErrInvalidInput
	}
	return nil
}

// OnboardingState is the full onboarding bookkeeping for one user.
type OnboardingState struct {
	CurrentStep    OnboardingStep `json:"current_step"`
	AssessmentType AssessmentType `json:"assessment_type,omitempty"` // active type, empty outside the assessment step
	Progress       float64        `json:"progress"`                  // 0-100, monotonically non-decreasing

	Prompts      map[AssessmentType]*Prompt             `json:"prompts"`
	Responses    map[AssessmentType]*AssessmentResponse `json:"responses"`
	PromptLoaded map[AssessmentType]bool                `json:"prompt_loaded"`
	Submissions  map[AssessmentType]SubmissionStatus    `json:"submissions"`

	Languages *LanguagePair     `json:"languages,omitempty"`
	Result    *AssessmentResult `json:"result,omitempty"`

	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOnboardingState returns the initial state for a first visit.
func NewOnboardingState() *OnboardingState {
	return &OnboardingState{
		CurrentStep:  StepLanguage,
		Prompts:      make(map[AssessmentType]*Prompt),
		Responses:    make(map[AssessmentType]*AssessmentResponse),
		PromptLoaded: make(map[AssessmentType]bool),
		Submissions:  make(map[AssessmentType]SubmissionStatus),
		UpdatedAt:    time.Now(),
	}
}

// Advance moves the state to the given step. Only forward transitions are
// permitted; a reset constructs a fresh state instead.
func (s *OnboardingState) Advance(to OnboardingStep) error {
	if to.Index() < 0 {
		return ErrInvalidStepTransition
	}
	if to.Index() < s.CurrentStep.Index() {
		return ErrInvalidStepTransition
	}
	s.CurrentStep = to
	s.UpdatedAt = time.Now()
	return nil
}

// SetProgress raises the progress percentage. Lower values are ignored so
// progress is monotonic within a session.
func (s *OnboardingState) SetProgress(pct float64) {
	if pct > 100 {
		pct = 100
	}
	if pct > s.Progress {
		s.Progress = pct
		s.UpdatedAt = time.Now()
	}
}

// RecordPrompt stores a fetched prompt and marks its type loaded.
func (s *OnboardingState) RecordPrompt(t AssessmentType, p *Prompt) {
	s.Prompts[t] = p
	s.PromptLoaded[t] = true
	s.UpdatedAt = time.Now()
}

// RecordPromptFailure marks a prompt fetch as failed.
func (s *OnboardingState) RecordPromptFailure(t AssessmentType) {
	s.PromptLoaded[t] = false
	s.UpdatedAt = time.Now()
}

// SubmittedAll reports whether every assessment type has a completed
// submission.
func (s *OnboardingState) SubmittedAll() bool {
	for _, t := range AssessmentOrder() {
		if s.Submissions[t].State != SubmissionCompleted {
			return false
		}
	}
	return true
}
