package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/spinneret"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := NewCache(store, nil)
	req := spinneret.NewRequest("https://example.com/page")

	action, err := m.BeforeRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind, "cold cache must continue to the transport")

	res := &spinneret.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte("<html>cached</html>"),
		URL:        req.URL,
		Request:    req,
		FetchedAt:  time.Now().UTC().Truncate(time.Second),
	}
	action, err = m.AfterResponse(context.Background(), res)
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind)

	action, err = m.BeforeRequest(context.Background(), spinneret.NewRequest("https://example.com/page"))
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionShortCircuit, action.Kind)
	require.NotNil(t, action.Response)
	require.Equal(t, res.Body, action.Response.Body)
	require.Equal(t, res.StatusCode, action.Response.StatusCode)
	require.Equal(t, "text/html", action.Response.Header.Get("Content-Type"))
}

func TestCacheSkipsNonGet(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := NewCache(store, nil)

	req := spinneret.NewRequest("https://example.com/submit")
	req.Method = http.MethodPost

	action, err := m.BeforeRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind)

	_, err = m.AfterResponse(context.Background(), &spinneret.Response{
		StatusCode: http.StatusOK,
		Request:    req,
		URL:        req.URL,
	})
	require.NoError(t, err)
	require.Empty(t, store.data)
}

func TestCacheSkipsFailures(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := NewCache(store, nil)
	req := spinneret.NewRequest("https://example.com/missing")

	_, err := m.AfterResponse(context.Background(), &spinneret.Response{
		StatusCode: http.StatusNotFound,
		Request:    req,
		URL:        req.URL,
	})
	require.NoError(t, err)
	require.Empty(t, store.data)
}

func TestCacheFailsOpen(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.err = errors.New("disk on fire")
	m := NewCache(store, nil)
	req := spinneret.NewRequest("https://example.com/page")

	action, err := m.BeforeRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind)

	action, err = m.AfterResponse(context.Background(), &spinneret.Response{
		StatusCode: http.StatusOK,
		Request:    req,
		URL:        req.URL,
	})
	require.NoError(t, err)
	require.Equal(t, spinneret.ActionContinue, action.Kind)
}
