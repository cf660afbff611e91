package spinneret

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsSnapshotCopiesCounters(t *testing.T) {
	t.Parallel()

	s := NewStats()
	s.RequestsSucceeded.Add(3)
	s.RequestsFailed.Add(1)
	s.ItemsScraped.Add(2)

	snap := s.Snapshot()
	require.Equal(t, int64(3), snap.RequestsSucceeded)
	require.Equal(t, int64(1), snap.RequestsFailed)
	require.Equal(t, int64(2), snap.ItemsScraped)

	s.RequestsSucceeded.Add(1)
	require.Equal(t, int64(3), snap.RequestsSucceeded, "snapshot is detached from live counters")
}

func TestStatsRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewStats()
	s.RequestsSucceeded.Add(7)
	s.RequestsRetried.Add(2)
	s.RequestsDropped.Add(5)
	s.ItemsDeduplicated.Add(1)
	s.ParseErrors.Add(4)
	s.ExportErrors.Add(3)

	restored := NewStats()
	restored.Restore(s.Snapshot())
	require.Equal(t, s.Snapshot(), restored.Snapshot())
}

func TestStatsSnapshotJSONFields(t *testing.T) {
	t.Parallel()

	s := NewStats()
	s.ItemsScraped.Add(9)

	raw, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var decoded map[string]int64
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, int64(9), decoded["items_scraped"])
	require.Contains(t, decoded, "requests_succeeded")
	require.Contains(t, decoded, "requests_failed")
}

func TestStatsConcurrentIncrements(t *testing.T) {
	t.Parallel()

	s := NewStats()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.RequestsSucceeded.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1600), s.RequestsSucceeded.Load())
}
