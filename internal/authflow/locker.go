package authflow

import "sync"

// identityLocks provides per-identity mutual exclusion so read-modify-write
// sequences on a credential record are atomic under concurrent stage calls.
// Calls for different identities never block each other. Entries are retained
// for the process lifetime; the identity space is the registered user set, so
// the map stays small.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the identity and returns its unlock function.
func (l *identityLocks) acquire(identity string) func() {
	l.mu.Lock()
	m, ok := l.locks[identity]
	if !ok {
		m = &sync.Mutex{}
		l.locks[identity] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
