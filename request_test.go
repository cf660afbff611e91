package spinneret

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFingerprintNormalization(t *testing.T) {
	t.Parallel()

	a := NewRequest("https://Example.com/page?b=2&a=1#frag")
	b := NewRequest("https://example.com/page?a=1&b=2")
	require.Equal(t, a.Fingerprint(), b.Fingerprint())

	// headers never contribute to identity
	c := NewRequest("https://example.com/page?a=1&b=2")
	c.Header.Set("Accept", "text/html")
	require.Equal(t, a.Fingerprint(), c.Fingerprint())
}

func TestFingerprintDistinguishes(t *testing.T) {
	t.Parallel()

	get := NewRequest("https://example.com/form")
	post := NewRequest("https://example.com/form")
	post.Method = http.MethodPost
	require.NotEqual(t, get.Fingerprint(), post.Fingerprint())

	bodyA := NewRequest("https://example.com/form")
	bodyA.Method = http.MethodPost
	bodyA.Body = []byte("a=1")
	bodyB := NewRequest("https://example.com/form")
	bodyB.Method = http.MethodPost
	bodyB.Body = []byte("a=2")
	require.NotEqual(t, bodyA.Fingerprint(), bodyB.Fingerprint())

	require.NotEqual(t,
		NewRequest("https://example.com/x").Fingerprint(),
		NewRequest("https://example.com/y").Fingerprint(),
	)
}

func TestPolitenessKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", NewRequest("https://Example.com:8443/a").PolitenessKey())
	require.Equal(t, "unknown", NewRequest("http://[::1:bad").PolitenessKey())
}

func TestRetryClone(t *testing.T) {
	t.Parallel()

	orig := NewRequest("https://example.com/a").WithPriority(3)
	orig.Retries = 1

	clone := orig.retryClone(50 * time.Millisecond)
	require.Equal(t, 2, clone.Retries)
	require.True(t, clone.SkipDedup)
	require.Equal(t, 3, clone.Priority)
	require.Equal(t, orig.URL, clone.URL)
	require.True(t, clone.notBefore.After(time.Now()))

	// the original is untouched
	require.Equal(t, 1, orig.Retries)
	require.False(t, orig.SkipDedup)
}

func TestRetryCloneDetachesHeaderAndMeta(t *testing.T) {
	t.Parallel()

	orig := NewRequest("https://example.com/a").WithMeta("depth", 1)
	orig.Header.Set("Cookie", "session=abc")

	clone := orig.retryClone(0)
	clone.Header.Set("Cookie", "session=xyz")
	clone.Meta["depth"] = 2

	require.Equal(t, "session=abc", orig.Header.Get("Cookie"))
	require.Equal(t, 1, orig.Meta["depth"])
}

func TestWithMeta(t *testing.T) {
	t.Parallel()

	req := NewRequest("https://example.com/").WithMeta("depth", 2)
	require.Equal(t, 2, req.Meta["depth"])
}
