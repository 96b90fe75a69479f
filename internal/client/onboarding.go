package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// RESTOnboarding is the HTTP implementation of OnboardingAPI.
type RESTOnboarding struct {
	rest *restClient
}

// NewRESTOnboarding creates an onboarding client against baseURL.
// token authenticates the engine against the assessment backend.
func NewRESTOnboarding(baseURL, token string) *RESTOnboarding {
	return &RESTOnboarding{rest: newRESTClient(baseURL, token)}
}

func (o *RESTOnboarding) Prompt(ctx context.Context, t domain.AssessmentType) (*domain.Prompt, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrWrongAssessmentType, t)
	}

	var prompt domain.Prompt
	if err := o.rest.doJSON(ctx, http.MethodGet, "/v1/assessments/prompts/"+string(t), nil, &prompt); err != nil {
		return nil, err
	}
	if err := prompt.Validate(); err != nil {
		return nil, err
	}
	return &prompt, nil
}

func (o *RESTOnboarding) SubmitLanguages(ctx context.Context, userID string, pair domain.LanguagePair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	req := struct {
		UserID    string              `json:"user_id"`
		Languages domain.LanguagePair `json:"languages"`
	}{userID, pair}

	return o.rest.doJSON(ctx, http.MethodPost, "/v1/onboarding/languages", req, nil)
}

func (o *RESTOnboarding) SubmitAssessment(ctx context.Context, userID string, resp *domain.AssessmentResponse) error {
	if err := resp.Validate(); err != nil {
		return err
	}

	req := struct {
		UserID   string                     `json:"user_id"`
		Response *domain.AssessmentResponse `json:"response"`
	}{userID, resp}

	return o.rest.doJSON(ctx, http.MethodPost, "/v1/assessments/"+string(resp.Type)+"/submit", req, nil)
}

func (o *RESTOnboarding) SubmitFinal(ctx context.Context, userID string, responses map[domain.AssessmentType]*domain.AssessmentResponse) (*domain.AssessmentResult, error) {
	for _, r := range responses {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	req := struct {
		UserID    string                                               `json:"user_id"`
		Responses map[domain.AssessmentType]*domain.AssessmentResponse `json:"responses"`
	}{userID, responses}

	var result domain.AssessmentResult
	if err := o.rest.doJSON(ctx, http.MethodPost, "/v1/assessments/final", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
