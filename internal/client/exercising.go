package client

import (
	"context"
	"net/http"
)

// RESTExercising is the HTTP implementation of ExercisingAPI.
type RESTExercising struct {
	rest *restClient
}

// NewRESTExercising creates an exercising client against baseURL.
func NewRESTExercising(baseURL, token string) *RESTExercising {
	return &RESTExercising{rest: newRESTClient(baseURL, token)}
}

func (e *RESTExercising) Exercise(ctx context.Context, id string) (*ExerciseContent, error) {
	var content ExerciseContent
	if err := e.rest.doJSON(ctx, http.MethodGet, "/v1/exercises/"+id, nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

func (e *RESTExercising) Video(ctx context.Context, id string) (*VideoContent, error) {
	var video VideoContent
	if err := e.rest.doJSON(ctx, http.MethodGet, "/v1/videos/"+id, nil, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (e *RESTExercising) SubmitRecording(ctx context.Context, userID string, attempt RecordingAttempt) (*RecordingResult, error) {
	req := struct {
		UserID  string           `json:"user_id"`
		Attempt RecordingAttempt `json:"attempt"`
	}{userID, attempt}

	var result RecordingResult
	if err := e.rest.doJSON(ctx, http.MethodPost, "/v1/recordings", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *RESTExercising) Report(ctx context.Context, userID, exerciseID string) (*ExerciseReport, error) {
	var report ExerciseReport
	path := "/v1/users/" + userID + "/exercises/" + exerciseID + "/report"
	if err := e.rest.doJSON(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
