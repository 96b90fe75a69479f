package client

import (
	"context"
	"net/http"
)

// RESTAuth is the HTTP implementation of AuthAPI.
type RESTAuth struct {
	rest *restClient
}

// NewRESTAuth creates an auth client against baseURL.
func NewRESTAuth(baseURL string) *RESTAuth {
	return &RESTAuth{rest: newRESTClient(baseURL, "")}
}

func (a *RESTAuth) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	var result AuthResult
	if err := a.rest.doJSON(ctx, http.MethodPost, "/v1/auth/login", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *RESTAuth) Signup(ctx context.Context, email, name, password string) (*AuthResult, error) {
	req := struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}{email, name, password}

	var result AuthResult
	if err := a.rest.doJSON(ctx, http.MethodPost, "/v1/auth/signup", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *RESTAuth) SocialAuth(ctx context.Context, provider, accessToken string) (*AuthResult, error) {
	req := struct {
		Provider    string `json:"provider"`
		AccessToken string `json:"access_token"`
	}{provider, accessToken}

	var result AuthResult
	if err := a.rest.doJSON(ctx, http.MethodPost, "/v1/auth/social", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *RESTAuth) CurrentUser(ctx context.Context, token string) (*RemoteUser, error) {
	c := &restClient{baseURL: a.rest.baseURL, token: token, httpClient: a.rest.httpClient}

	var user RemoteUser
	if err := c.doJSON(ctx, http.MethodGet, "/v1/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *RESTAuth) Logout(ctx context.Context, token string) error {
	c := &restClient{baseURL: a.rest.baseURL, token: token, httpClient: a.rest.httpClient}
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
}
