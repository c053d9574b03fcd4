package acmeshim

import "sync"

// ChallengeTable is the shared token->keyAuthorization map mutated only by
// the ACME issuer for the duration of one issuance, and read by the
// /.well-known/acme-challenge/<token> handler.
type ChallengeTable struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewChallengeTable constructs an empty table.
func NewChallengeTable() *ChallengeTable {
	return &ChallengeTable{entries: make(map[string]string)}
}

// Put records a token's key authorization.
func (t *ChallengeTable) Put(token, keyAuth string) {
	t.mu.Lock()
	t.entries[token] = keyAuth
	t.mu.Unlock()
}

// Delete removes a token, idempotently.
func (t *ChallengeTable) Delete(token string) {
	t.mu.Lock()
	delete(t.entries, token)
	t.mu.Unlock()
}

// Get returns a token's key authorization and whether it was present.
func (t *ChallengeTable) Get(token string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[token]
	return v, ok
}
