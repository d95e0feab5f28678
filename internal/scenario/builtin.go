package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/wesleyorama2/stampede/internal/auth"
	stampedehttp "github.com/wesleyorama2/stampede/internal/http"
)

// Built-in scenario names.
const (
	NameBrowse         = "browse"
	NameBrowseAuthOnce = "browse-auth-once"
	NameBrowseAuthEach = "browse-auth-each"
)

// Check names evaluated by the built-in scenarios.
const (
	CheckStatusOK = "status is 200"
	CheckLogin    = "login succeeded"
)

// TokenKey is the SharedContext key holding the bearer token.
const TokenKey = "token"

var defaultEndpoints = []string{
	"/alert_type",
	"/alert/all",
	"/alert_type/1",
	"/dashboard/station-history",
	"/parameter_type",
	"/weather_station/1",
	"/dashboard/alert-types",
	"/dashboard/alert-counts",
	"/dashboard/station-status",
	"/dashboard/measures-status",
}

// DefaultEndpoints returns the read endpoints browsed when none are configured.
func DefaultEndpoints() []string {
	endpoints := make([]string, len(defaultEndpoints))
	copy(endpoints, defaultEndpoints)
	return endpoints
}

// Target is the system under test. It is copied when the built-in scenarios
// are created, so later changes by the caller have no effect on them.
type Target struct {
	BaseURL     string
	Endpoints   []string
	LoginPath   string
	Credentials auth.Credentials
}

func (t Target) withDefaults() Target {
	if len(t.Endpoints) == 0 {
		t.Endpoints = defaultEndpoints
	}
	endpoints := make([]string, len(t.Endpoints))
	copy(endpoints, t.Endpoints)
	t.Endpoints = endpoints

	if t.LoginPath == "" {
		t.LoginPath = auth.DefaultLoginPath
	}
	return t
}

func (t Target) loginRequest() auth.LoginRequest {
	return auth.LoginRequest{
		URL:         stampedehttp.JoinURL(t.BaseURL, t.LoginPath),
		Credentials: t.Credentials,
	}
}

// Builtins creates the built-in scenarios for target.
func Builtins(target Target, exec *stampedehttp.Executor) []*Scenario {
	target = target.withDefaults()

	return []*Scenario{
		{
			Name:        NameBrowse,
			Description: "GET a random endpoint without authentication",
			Iterate: func(ctx context.Context, _ SharedContext) IterationResult {
				var result IterationResult
				browse(ctx, exec, target, "", &result)
				return result
			},
			Checks: []string{CheckStatusOK},
		},
		{
			Name:        NameBrowseAuthOnce,
			Description: "log in once during setup, then GET random endpoints with the shared token",
			Setup: func(ctx context.Context) (SharedContext, error) {
				if target.Credentials.IsZero() {
					return SharedContext{}, errors.New("credentials are required")
				}
				token, err := auth.Login(ctx, exec, target.loginRequest())
				if err != nil {
					return SharedContext{}, fmt.Errorf("login: %w", err)
				}
				return NewSharedContext(map[string]any{TokenKey: token}), nil
			},
			Iterate: func(ctx context.Context, shared SharedContext) IterationResult {
				var result IterationResult
				browse(ctx, exec, target, shared.String(TokenKey), &result)
				return result
			},
			Checks: []string{CheckStatusOK},
		},
		{
			Name:        NameBrowseAuthEach,
			Description: "log in on every iteration, then GET a random endpoint",
			Setup: func(ctx context.Context) (SharedContext, error) {
				if target.Credentials.IsZero() {
					return SharedContext{}, errors.New("credentials are required")
				}
				return SharedContext{}, nil
			},
			Iterate: func(ctx context.Context, _ SharedContext) IterationResult {
				var result IterationResult

				token, resp, err := auth.LoginTimed(ctx, exec, target.loginRequest())
				if resp != nil {
					result.AddRequest("login", resp.Elapsed)
				}
				if !result.AddCheck(CheckLogin, err == nil) {
					result.Err = fmt.Errorf("login: %w", err)
					return result
				}

				browse(ctx, exec, target, token, &result)
				return result
			},
			Checks: []string{CheckLogin, CheckStatusOK},
		},
	}
}

// RegisterBuiltins registers the built-in scenarios for target.
func RegisterBuiltins(reg *Registry, target Target, exec *stampedehttp.Executor) error {
	for _, s := range Builtins(target, exec) {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// browse GETs one random endpoint and checks for a 200.
func browse(ctx context.Context, exec *stampedehttp.Executor, target Target, token string, result *IterationResult) {
	endpoint := target.Endpoints[rand.IntN(len(target.Endpoints))]

	req := stampedehttp.NewRequest(http.MethodGet, stampedehttp.JoinURL(target.BaseURL, endpoint)).
		WithName(endpoint)
	if token != "" {
		req.WithBearerToken(token)
	}

	resp, err := exec.Execute(ctx, req)
	if err != nil {
		result.AddCheck(CheckStatusOK, false)
		result.Err = err
		return
	}

	result.AddRequest(endpoint, resp.Elapsed)
	result.AddCheck(CheckStatusOK, resp.StatusCode == http.StatusOK)
}
