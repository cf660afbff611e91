package spinneret

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

// Frontier owns the queue of pending fetch requests. It admits new requests
// (dropping duplicates against the dedup index), enforces per-key politeness
// delay and concurrency caps, and hands out work in priority order (FIFO
// within equal priority).
//
// The frontier also tracks the crawl's outstanding work: every admitted
// request counts as one unit until the engine marks it done, which happens
// only after its parse output has been fully processed. When the count
// returns to zero the frontier closes itself and blocked Dequeue callers
// drain with ErrFrontierClosed.
type Frontier struct {
	mu      sync.Mutex
	pending requestHeap
	hosts   map[string]*hostState

	// inFlight holds detached copies taken at dispatch: once a request is
	// handed to a fetch worker, middlewares mutate it concurrently with any
	// checkpoint snapshot, so the live pointer must not be read here.
	inFlight map[uint64]Request

	dedup DedupStore
	stats *Stats

	delay     time.Duration
	perKeyCap int

	nextSeq uint64
	work    int64
	started bool
	closed  bool

	wake   chan struct{}
	doneCh chan struct{}
}

type hostState struct {
	inFlight     int
	lastDispatch time.Time
}

// NewFrontier builds a frontier with the politeness knobs from cfg.
func NewFrontier(cfg Config, dedup DedupStore, stats *Stats) *Frontier {
	return &Frontier{
		hosts:     make(map[string]*hostState),
		inFlight:  make(map[uint64]Request),
		dedup:     dedup,
		stats:     stats,
		delay:     cfg.PolitenessDelay,
		perKeyCap: cfg.PerKeyConcurrency,
		wake:      make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}
}

// Enqueue admits a request to the frontier. Duplicates are dropped, counted,
// and reported via ErrDuplicateRequest; enqueueing after close is a caller
// bug and returns ErrFrontierClosed.
func (f *Frontier) Enqueue(req *Request) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFrontierClosed
	}
	if !req.SkipDedup {
		fresh, err := f.dedup.MarkIfNew(req.Fingerprint())
		if err != nil {
			f.mu.Unlock()
			return fmt.Errorf("dedup check: %w", err)
		}
		if !fresh {
			f.stats.RequestsDropped.Add(1)
			f.mu.Unlock()
			return ErrDuplicateRequest
		}
	}
	f.nextSeq++
	req.seq = f.nextSeq
	f.work++
	f.started = true
	heap.Push(&f.pending, req)
	f.stats.RequestsScheduled.Add(1)
	f.mu.Unlock()
	f.signal()
	return nil
}

// Dequeue blocks until an admissible request exists, the context ends, or
// the frontier closes. Admissible means the request's politeness key is
// below its concurrency cap and the minimum delay since the key's last
// dispatch has elapsed.
func (f *Frontier) Dequeue(ctx context.Context) (*Request, error) {
	for {
		f.mu.Lock()
		if f.closed && f.pending.Len() == 0 {
			f.mu.Unlock()
			return nil, ErrFrontierClosed
		}
		req, wait := f.popAdmissible(time.Now())
		if req != nil {
			more := f.pending.Len() > 0
			f.mu.Unlock()
			if more {
				// cascade the wakeup so sibling dequeuers re-check the queue
				f.signal()
			}
			return req, nil
		}
		f.mu.Unlock()

		var timerC <-chan time.Time
		var timer *time.Timer
		if wait > 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-f.doneCh:
			stopTimer(timer)
		case <-f.wake:
			stopTimer(timer)
		case <-timerC:
		}
	}
}

// popAdmissible pops the best admissible request, marking its dispatch. When
// nothing is admissible it returns the wait until the earliest politeness
// delay expires (zero when blocked on concurrency or an empty queue).
func (f *Frontier) popAdmissible(now time.Time) (*Request, time.Duration) {
	var skipped []*Request
	var minWait time.Duration
	defer func() {
		for _, r := range skipped {
			heap.Push(&f.pending, r)
		}
	}()

	for f.pending.Len() > 0 {
		req := heap.Pop(&f.pending).(*Request)
		if rem := req.notBefore.Sub(now); rem > 0 {
			// retry backoff still running
			if minWait == 0 || rem < minWait {
				minWait = rem
			}
			skipped = append(skipped, req)
			continue
		}
		hs := f.hostState(req.PolitenessKey())
		if hs.inFlight >= f.perKeyCap {
			skipped = append(skipped, req)
			continue
		}
		if f.delay > 0 && !hs.lastDispatch.IsZero() {
			if rem := hs.lastDispatch.Add(f.delay).Sub(now); rem > 0 {
				if minWait == 0 || rem < minWait {
					minWait = rem
				}
				skipped = append(skipped, req)
				continue
			}
		}
		hs.inFlight++
		hs.lastDispatch = now
		f.inFlight[req.seq] = req.snapshotClone()
		return req, 0
	}
	return nil, minWait
}

func (f *Frontier) hostState(key string) *hostState {
	hs, ok := f.hosts[key]
	if !ok {
		hs = &hostState{}
		f.hosts[key] = hs
	}
	return hs
}

// release frees the politeness slot held since Dequeue. The engine calls it
// once the fetch (transport plus interceptor chain) has finished, before the
// result is handed to the parse pool.
func (f *Frontier) release(req *Request) {
	f.mu.Lock()
	if hs, ok := f.hosts[req.PolitenessKey()]; ok && hs.inFlight > 0 {
		hs.inFlight--
	}
	f.mu.Unlock()
	f.signal()
}

// done retires one unit of work: the request was dropped, failed terminally,
// or its parse output has been fully processed. The frontier closes itself
// when no work remains.
func (f *Frontier) done(req *Request) {
	f.mu.Lock()
	delete(f.inFlight, req.seq)
	f.work--
	idle := f.started && f.work == 0
	if idle {
		f.closeLocked()
	}
	f.mu.Unlock()
	if !idle {
		f.signal()
	}
}

// Close signals that no more work will arrive. Pending dequeues drain the
// queue and then report ErrFrontierClosed.
func (f *Frontier) Close() {
	f.mu.Lock()
	f.closeLocked()
	f.mu.Unlock()
}

// closeIfIdle closes the frontier when it holds no work, covering the case
// where every seed was rejected as a duplicate.
func (f *Frontier) closeIfIdle() {
	f.mu.Lock()
	if f.work == 0 {
		f.closeLocked()
	}
	f.mu.Unlock()
}

func (f *Frontier) closeLocked() {
	if f.closed {
		return
	}
	f.closed = true
	close(f.doneCh)
}

// Len reports the number of pending (not yet dispatched) requests.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending.Len()
}

// snapshot copies every pending and in-flight request for checkpointing.
// In-flight requests are included so that a resumed crawl re-fetches them;
// the dedup index keeps completed work suppressed. Every entry is detached
// from the live request, so serializing the snapshot is safe while fetch
// workers keep mutating headers and metadata.
func (f *Frontier) snapshot() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]Request, 0, f.pending.Len()+len(f.inFlight))
	for _, req := range f.pending {
		entries = append(entries, req.snapshotClone())
	}
	for _, req := range f.inFlight {
		entries = append(entries, req)
	}
	return entries
}

func (f *Frontier) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// requestHeap orders by priority (higher first), then enqueue sequence.
type requestHeap []*Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(*Request)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
