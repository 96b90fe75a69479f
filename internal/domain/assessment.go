package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// AssessmentType is a category of skill-measuring exercise administered
// during onboarding. The same four categories double as the skill axes of
// the learning path.
type AssessmentType string

const (
	AssessmentPronunciation AssessmentType = "pronunciation"
	AssessmentVocabulary    AssessmentType = "vocabulary"
	AssessmentGrammar       AssessmentType = "grammar"
	AssessmentComprehension AssessmentType = "comprehension"
)

// AssessmentOrder returns the fixed order in which assessment types are
// administered.
func AssessmentOrder() []AssessmentType {
	return []AssessmentType{
		AssessmentPronunciation,
		AssessmentVocabulary,
		AssessmentGrammar,
		AssessmentComprehension,
	}
}

// Valid reports whether t is a known assessment type.
func (t AssessmentType) Valid() bool {
	switch t {
	case AssessmentPronunciation, AssessmentVocabulary, AssessmentGrammar, AssessmentComprehension:
		return true
	}
	return false
}

// NextAssessment returns the type that follows t in the fixed order, or
// false when t is the last one.
func NextAssessment(t AssessmentType) (AssessmentType, bool) {
	order := AssessmentOrder()
	for i, cur := range order {
		if cur == t && i+1 < len(order) {
			return order[i+1], true
		}
	}
	return "", false
}

var validate = validator.New()

// -----------------------------------------------------------------------------
// Prompts
//
// Prompt payloads arrive from the onboarding backend as type-tagged records.
// Exactly one payload field must be set, and it must match the tag.
// -----------------------------------------------------------------------------

// Prompt is the question/material payload for one assessment type.
type Prompt struct {
	Type AssessmentType `json:"type"`

	Pronunciation *PronunciationPrompt `json:"pronunciation,omitempty"`
	Vocabulary    *VocabularyPrompt    `json:"vocabulary,omitempty"`
	Grammar       *GrammarPrompt       `json:"grammar,omitempty"`
	Comprehension *ComprehensionPrompt `json:"comprehension,omitempty"`
}

// PronunciationPrompt asks the user to record a set of target phrases.
type PronunciationPrompt struct {
	Targets []PronunciationTarget `json:"targets" validate:"required,min=1,dive"`
}

// PronunciationTarget is a single phrase to pronounce.
type PronunciationTarget struct {
	ID       string `json:"id" validate:"required"`
	Text     string `json:"text" validate:"required"`
	Phonetic string `json:"phonetic,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// VocabularyPrompt asks the user to match words to images.
type VocabularyPrompt struct {
	Items []VocabularyItem `json:"items" validate:"required,min=1,dive"`
}

// VocabularyItem is one word/image matching question.
type VocabularyItem struct {
	ID       string   `json:"id" validate:"required"`
	ImageURL string   `json:"image_url" validate:"required"`
	Choices  []string `json:"choices" validate:"required,min=2"`
}

// GrammarPrompt asks the user to complete sentence structures.
type GrammarPrompt struct {
	Structures []GrammarStructure `json:"structures" validate:"required,min=1,dive"`
}

// GrammarStructure is one fill-in-the-blank sentence.
type GrammarStructure struct {
	ID      string   `json:"id" validate:"required"`
	Pattern string   `json:"pattern" validate:"required"`
	Example string   `json:"example,omitempty"`
	Choices []string `json:"choices" validate:"required,min=2"`
}

// ComprehensionPrompt pairs a video with questions about it.
type ComprehensionPrompt struct {
	VideoURL  string                  `json:"video_url" validate:"required"`
	Questions []ComprehensionQuestion `json:"questions" validate:"required,min=1,dive"`
}

// ComprehensionQuestion is one multiple-choice question about the video.
type ComprehensionQuestion struct {
	ID      string   `json:"id" validate:"required"`
	Text    string   `json:"text" validate:"required"`
	Choices []string `json:"choices" validate:"required,min=2"`
}

// Validate checks the tag/payload pairing and the payload contents.
func (p *Prompt) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown assessment type %q", ErrInvalidPrompt, p.Type)
	}

	var payload any
	set := 0
	for _, candidate := range []struct {
		t       AssessmentType
		v       any
		present bool
	}{
		{AssessmentPronunciation, p.Pronunciation, p.Pronunciation != nil},
		{AssessmentVocabulary, p.Vocabulary, p.Vocabulary != nil},
		{AssessmentGrammar, p.Grammar, p.Grammar != nil},
		{AssessmentComprehension, p.Comprehension, p.Comprehension != nil},
	} {
		if !candidate.present {
			continue
		}
		set++
		if candidate.t == p.Type {
			payload = candidate.v
		}
	}

	if set != 1 || payload == nil {
		return fmt.Errorf("%w: payload does not match type %q", ErrInvalidPrompt, p.Type)
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrompt, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Responses
// -----------------------------------------------------------------------------

// AssessmentResponse is the user's submitted answer set for one type.
type AssessmentResponse struct {
	Type AssessmentType `json:"type"`

	Pronunciation *PronunciationResponse `json:"pronunciation,omitempty"`
	Vocabulary    *AnswerResponse        `json:"vocabulary,omitempty"`
	Grammar       *AnswerResponse        `json:"grammar,omitempty"`
	Comprehension *AnswerResponse        `json:"comprehension,omitempty"`
}

// PronunciationResponse carries one recording reference per target.
type PronunciationResponse struct {
	Recordings map[string]Recording `json:"recordings" validate:"required,min=1"`
}

// Recording is a reference to an uploaded audio attempt.
type Recording struct {
	URL        string `json:"url" validate:"required"`
	DurationMs int    `json:"duration_ms" validate:"gte=0"`
}

// AnswerResponse maps question IDs to the chosen answer.
type AnswerResponse struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

// Validate checks the tag/payload pairing and the payload contents.
func (r *AssessmentResponse) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown assessment type %q", ErrInvalidResponse, r.Type)
	}

	var payload any
	switch r.Type {
	case AssessmentPronunciation:
		if r.Pronunciation != nil {
			payload = r.Pronunciation
		}
	case AssessmentVocabulary:
		if r.Vocabulary != nil {
			payload = r.Vocabulary
		}
	case AssessmentGrammar:
		if r.Grammar != nil {
			payload = r.Grammar
		}
	case AssessmentComprehension:
		if r.Comprehension != nil {
			payload = r.Comprehension
		}
	}
	if payload == nil {
		return fmt.Errorf("%w: payload does not match type %q", ErrInvalidResponse, r.Type)
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// AssessmentResult is the backend's evaluation of the full assessment,
// returned by the final submission and used to seed the learning path.
type AssessmentResult struct {
	Scores         map[AssessmentType]float64  `json:"scores"`          // 0.0 - 1.0 per skill
	CriticalPoints map[AssessmentType][]string `json:"critical_points"` // weak areas per skill
	Level          string                      `json:"level"`           // e.g. "A2"
}

// Score returns the score for t, zero when absent.
func (r *AssessmentResult) Score(t AssessmentType) float64 {
	if r == nil {
		return 0
	}
	return r.Scores[t]
}
