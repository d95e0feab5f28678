package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stampedehttp "github.com/wesleyorama2/stampede/internal/http"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantToken string
		wantErr   bool
		wantJSON  bool
	}{
		{name: "valid", body: `{"access_token":"abc.def","token_type":"bearer"}`, wantToken: "abc.def"},
		{name: "extra fields", body: `{"access_token":"t","user":{"id":1}}`, wantToken: "t"},
		{name: "missing field", body: `{"token_type":"bearer"}`, wantErr: true},
		{name: "empty token", body: `{"access_token":""}`, wantErr: true},
		{name: "wrong type", body: `{"access_token":42}`, wantErr: true},
		{name: "not an object", body: `["access_token"]`, wantErr: true},
		{name: "not json", body: `<html>login</html>`, wantErr: true, wantJSON: true},
		{name: "trailing data", body: `{"access_token":"t"} extra`, wantErr: true, wantJSON: true},
		{name: "empty body", body: ``, wantErr: true, wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ParseToken([]byte(tt.body))
			if tt.wantErr {
				var formatErr *FormatError
				require.ErrorAs(t, err, &formatErr)
				assert.Empty(t, token)
				if tt.wantJSON {
					assert.Contains(t, formatErr.Reason, "not valid JSON")
				} else {
					assert.NotContains(t, formatErr.Reason, "not valid JSON")
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "user@example.com" || r.PostForm.Get("password") != "123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token-1","token_type":"bearer"}`))
	}))
	defer server.Close()

	exec := stampedehttp.NewExecutor(stampedehttp.DefaultClientConfig())

	t.Run("success", func(t *testing.T) {
		token, resp, err := LoginTimed(context.Background(), exec, LoginRequest{
			URL:         server.URL + DefaultLoginPath,
			Credentials: Credentials{Username: "user@example.com", Password: "123"},
		})
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejected", func(t *testing.T) {
		_, err := Login(context.Background(), exec, LoginRequest{
			URL:         server.URL + DefaultLoginPath,
			Credentials: Credentials{Username: "user@example.com", Password: "wrong"},
		})
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	})
}

func TestLogin_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"wrong-field"}`))
	}))
	defer server.Close()

	exec := stampedehttp.NewExecutor(stampedehttp.DefaultClientConfig())
	_, err := Login(context.Background(), exec, LoginRequest{URL: server.URL})

	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Contains(t, formatErr.Error(), "wrong-field")
}

func TestCredentials_IsZero(t *testing.T) {
	var nilCreds *Credentials
	assert.True(t, nilCreds.IsZero())
	assert.True(t, (&Credentials{}).IsZero())
	assert.False(t, (&Credentials{Username: "u"}).IsZero())
}
