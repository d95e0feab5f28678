package target

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Endpoints(t *testing.T) {
	srv := NewServer(Options{})
	server := httptest.NewServer(srv)
	defer server.Close()

	paths := []string{
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

	for _, path := range paths {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	assert.Equal(t, int64(len(paths)), srv.Requests())

	resp, err := http.Get(server.URL + "/dashboard/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Login(t *testing.T) {
	srv := NewServer(Options{Username: "user", Password: "pass", Token: "tok"})
	server := httptest.NewServer(srv)
	defer server.Close()

	resp, err := http.PostForm(server.URL+"/auth/login", url.Values{"username": {"user"}, "password": {"pass"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), srv.Logins())

	resp2, err := http.PostForm(server.URL+"/auth/login", url.Values{"username": {"user"}, "password": {"nope"}})
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	assert.Equal(t, int64(1), srv.Logins())
}

func TestServer_RequireAuth(t *testing.T) {
	srv := NewServer(Options{RequireAuth: true, Token: "tok"})
	server := httptest.NewServer(srv)
	defer server.Close()

	resp, err := http.Get(server.URL + "/alert_type")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/alert_type", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), srv.Rejected())
}

func TestServer_GeneratesToken(t *testing.T) {
	srv := NewServer(Options{})
	assert.NotEmpty(t, srv.Token())
	assert.False(t, strings.Contains(srv.Token(), " "))
}
