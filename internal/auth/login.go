package auth

import (
	"context"
	"fmt"
	"net/url"

	stampedehttp "github.com/wesleyorama2/stampede/internal/http"
)

// DefaultLoginPath is the login endpoint of the target API.
const DefaultLoginPath = "/auth/login"

// Credentials identify the load-test user.
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// IsZero reports whether no credentials were configured.
func (c *Credentials) IsZero() bool {
	return c == nil || (c.Username == "" && c.Password == "")
}

// LoginRequest describes a login call.
type LoginRequest struct {
	URL         string
	Credentials Credentials
}

// StatusError is returned when the login endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("login failed with status %d", e.StatusCode)
}

// Login posts the credentials form-encoded and returns the access token.
//
// Transport failures are returned as the executor's *TimeoutError or
// *ConnectionError, a rejected login as *StatusError, and an unusable
// response body as *FormatError.
func Login(ctx context.Context, exec *stampedehttp.Executor, req LoginRequest) (string, error) {
	token, _, err := LoginTimed(ctx, exec, req)
	return token, err
}

// LoginTimed is Login that also returns the response so callers can record
// its latency. The response is nil when the request itself failed.
func LoginTimed(ctx context.Context, exec *stampedehttp.Executor, req LoginRequest) (string, *stampedehttp.Response, error) {
	httpReq := stampedehttp.NewRequest("POST", req.URL).
		WithName("login").
		WithHeader("Accept", "application/json").
		WithForm(url.Values{
			"username": {req.Credentials.Username},
			"password": {req.Credentials.Password},
		})

	resp, err := exec.Execute(ctx, httpReq)
	if err != nil {
		return "", nil, err
	}
	if !resp.IsSuccess() {
		return "", resp, &StatusError{StatusCode: resp.StatusCode}
	}

	token, err := ParseToken(resp.Body)
	if err != nil {
		return "", resp, err
	}
	return token, resp, nil
}
