package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func validVocabularyPrompt() *Prompt {
	return &Prompt{
		Type: AssessmentVocabulary,
		Vocabulary: &VocabularyPrompt{
			Items: []VocabularyItem{
				{ID: "v1", ImageURL: "https://cdn.example.com/dog.png", Choices: []string{"der Hund", "die Katze"}},
			},
		},
	}
}

func TestPrompt_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Prompt)
		wantErr bool
	}{
		{"valid", func(p *Prompt) {}, false},
		{"unknown type", func(p *Prompt) { p.Type = "listening" }, true},
		{"payload mismatch", func(p *Prompt) {
			p.Vocabulary = nil
			p.Grammar = &GrammarPrompt{Structures: []GrammarStructure{
				{ID: "g1", Pattern: "Ich ___ nach Hause", Choices: []string{"gehe", "gehst"}},
			}}
		}, true},
		{"two payloads", func(p *Prompt) {
			p.Comprehension = &ComprehensionPrompt{
				VideoURL: "https://cdn.example.com/v.mp4",
				Questions: []ComprehensionQuestion{
					{ID: "q1", Text: "What happened?", Choices: []string{"a", "b"}},
				},
			}
		}, true},
		{"empty items", func(p *Prompt) { p.Vocabulary.Items = nil }, true},
		{"single choice", func(p *Prompt) { p.Vocabulary.Items[0].Choices = []string{"der Hund"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validVocabularyPrompt()
			tt.mutate(p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssessmentResponse_Validate(t *testing.T) {
	resp := &AssessmentResponse{
		Type: AssessmentPronunciation,
		Pronunciation: &PronunciationResponse{
			Recordings: map[string]Recording{
				"t1": {URL: "https://uploads.example.com/r1.webm", DurationMs: 2300},
			},
		},
	}
	if err := resp.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	resp.Type = AssessmentGrammar
	if err := resp.Validate(); err == nil {
		t.Error("Validate() = nil for mismatched payload")
	}
}

func TestPrompt_JSONRoundTrip(t *testing.T) {
	p := validVocabularyPrompt()

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got Prompt
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(&got, p) {
		t.Errorf("round trip = %+v; want %+v", got, p)
	}
}
