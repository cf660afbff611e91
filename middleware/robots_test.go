package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/spinneret"
)

func robotsServer(t *testing.T, body string, fetches *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if fetches != nil {
			fetches.Add(1)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write robots body: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRobotsDisallowedPathDropped(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, "User-agent: *\nDisallow: /private\n", nil)
	m := NewRobots("spinneret-test", nil)

	action, err := m.BeforeRequest(context.Background(), spinneret.NewRequest(srv.URL+"/private/page"))
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionDrop, action.Kind)

	action, err = m.BeforeRequest(context.Background(), spinneret.NewRequest(srv.URL+"/public/page"))
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind)
}

func TestRobotsPolicyCachedPerHost(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	srv := robotsServer(t, "User-agent: *\nDisallow:\n", &fetches)
	m := NewRobots("spinneret-test", nil)

	for i := 0; i < 5; i++ {
		action, err := m.BeforeRequest(context.Background(), spinneret.NewRequest(srv.URL+"/page"))
		require.NoError(t, err)
		require.Equal(t, spinneret.ActionContinue, action.Kind)
	}
	require.Equal(t, int64(1), fetches.Load())
}

func TestRobotsUnreachablePolicyAllows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	m := NewRobots("spinneret-test", nil)

	// a 404 robots.txt means no restrictions
	action, err := m.BeforeRequest(context.Background(), spinneret.NewRequest(srv.URL+"/anything"))
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind)
}

func TestRobotsSpecificAgentGroup(t *testing.T) {
	t.Parallel()

	policy := "User-agent: spinneret-test\nDisallow: /\n\nUser-agent: *\nDisallow:\n"
	srv := robotsServer(t, policy, nil)
	m := NewRobots("spinneret-test", nil)

	action, err := m.BeforeRequest(context.Background(), spinneret.NewRequest(srv.URL+"/page"))
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionDrop, action.Kind)
}
