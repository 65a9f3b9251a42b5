package querystate

import (
	"fmt"
	"net/url"
	"sync"
)

// Address is the navigable address of a view: a path plus its parameters.
// Replace rewrites the current entry; Push adds a history entry.
type Address struct {
	mu      sync.RWMutex
	path    string
	params  Params
	history []string
	nextSub int
	subs    map[int]func(Params)
}

// NewAddress parses rawURL into an Address
func NewAddress(rawURL string) (*Address, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address: %w", err)
	}
	a := &Address{
		path:   u.Path,
		params: NewParams(u.Query()),
		subs:   make(map[int]func(Params)),
	}
	a.history = []string{a.stringLocked()}
	return a, nil
}

// Params returns the current parameters
func (a *Address) Params() Params {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params
}

// Read is a shortcut for Params().Read
func (a *Address) Read(key, def string) string {
	return a.Params().Read(key, def)
}

// State decodes the current parameters
func (a *Address) State(size int) State {
	return a.Params().State(size)
}

// Replace merges update into the address without adding a history entry
func (a *Address) Replace(update Update) Params {
	return a.navigate(update, false)
}

// Push merges update into the address and records a history entry
func (a *Address) Push(update Update) Params {
	return a.navigate(update, true)
}

func (a *Address) navigate(update Update, push bool) Params {
	a.mu.Lock()
	prev := a.params.Encode()
	a.params = a.params.Write(update)
	next := a.params
	changed := next.Encode() != prev
	if push {
		a.history = append(a.history, a.stringLocked())
	} else {
		a.history[len(a.history)-1] = a.stringLocked()
	}
	subs := make([]func(Params), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(next)
		}
	}
	return next
}

// Subscribe registers fn to be called after every change of the parameters.
// The returned function removes the subscription.
func (a *Address) Subscribe(fn func(Params)) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// HistoryLen is the number of history entries
func (a *Address) HistoryLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.history)
}

func (a *Address) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stringLocked()
}

func (a *Address) stringLocked() string {
	q := a.params.Encode()
	if q == "" {
		return a.path
	}
	return a.path + "?" + q
}
