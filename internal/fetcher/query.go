package fetcher

import (
	"context"
	"sync"

	"quantum-stock/internal/domain"
)

// Snapshot is what a consumer renders
type Snapshot struct {
	Key          *Key
	Data         *domain.PageResult
	Err          error
	IsLoading    bool // nothing to show yet
	IsValidating bool // any fetch in flight
	// Previous is set while Data still belongs to an earlier key, kept on
	// screen until the current key's page arrives
	Previous bool
}

// Query follows one consumer's current key. Results that arrive for a key
// that has since been replaced are dropped.
type Query struct {
	fetcher  *Fetcher
	ctx      context.Context
	onChange func(Snapshot)
	wg       sync.WaitGroup

	mu       sync.Mutex
	key      *Key
	keyID    string
	version  uint64
	data     *domain.PageResult
	dataID   string
	err      error
	inflight bool
}

// NewQuery creates a Query. onChange, if set, is called after every state
// change outside of any lock.
func NewQuery(ctx context.Context, f *Fetcher, onChange func(Snapshot)) *Query {
	return &Query{
		fetcher:  f,
		ctx:      ctx,
		onChange: onChange,
	}
}

// SetKey switches to key. A nil key stops fetching; an unchanged key is a no-op.
func (q *Query) SetKey(key *Key) {
	q.mu.Lock()

	if key == nil {
		if q.key == nil {
			q.mu.Unlock()
			return
		}
		q.version++
		q.key, q.keyID = nil, ""
		q.data, q.dataID, q.err, q.inflight = nil, "", nil, false
		snap := q.snapshotLocked()
		q.mu.Unlock()
		q.notify(snap)
		return
	}

	id := key.String()
	if q.key != nil && id == q.keyID {
		q.mu.Unlock()
		return
	}

	k := *key
	q.key, q.keyID = &k, id
	q.version++
	q.err = nil

	if data, ok := q.fetcher.Peek(k); ok {
		q.data, q.dataID, q.inflight = data, id, false
		snap := q.snapshotLocked()
		q.mu.Unlock()
		q.notify(snap)
		return
	}

	q.startLocked(k, q.version)
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)
}

// Refresh invalidates the current key and fetches it again. Data already
// shown stays visible while revalidating.
func (q *Query) Refresh() {
	q.mu.Lock()
	if q.key == nil {
		q.mu.Unlock()
		return
	}
	k := *q.key
	q.fetcher.Invalidate(k)
	q.version++
	q.startLocked(k, q.version)
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)
}

// Snapshot returns the current state
func (q *Query) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// DismissError clears the error banner, keeping data
func (q *Query) DismissError() {
	q.mu.Lock()
	if q.err == nil {
		q.mu.Unlock()
		return
	}
	q.err = nil
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.notify(snap)
}

// Wait blocks until every started fetch has finished
func (q *Query) Wait() {
	q.wg.Wait()
}

func (q *Query) startLocked(key Key, version uint64) {
	q.inflight = true
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		data, err := q.fetcher.Fetch(q.ctx, key)

		q.mu.Lock()
		if version != q.version {
			q.mu.Unlock()
			return
		}
		q.inflight = false
		if err != nil {
			q.err = err
		} else {
			q.data, q.dataID, q.err = data, q.keyID, nil
		}
		snap := q.snapshotLocked()
		q.mu.Unlock()

		q.notify(snap)
	}()
}

func (q *Query) snapshotLocked() Snapshot {
	var key *Key
	if q.key != nil {
		k := *q.key
		key = &k
	}
	return Snapshot{
		Key:          key,
		Data:         q.data,
		Err:          q.err,
		IsLoading:    q.inflight && q.data == nil,
		IsValidating: q.inflight,
		Previous:     q.data != nil && q.dataID != q.keyID,
	}
}

func (q *Query) notify(snap Snapshot) {
	if q.onChange != nil {
		q.onChange(snap)
	}
}
