package gateway

import (
	"strings"
	"sync"
)

// CredentialPool is an ordered list of API keys plus a rotation cursor.
// The cursor only moves forward (mod size) and survives across calls, so a
// key found bad on one call is skipped on the next until it cycles back.
type CredentialPool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// NewCredentialPool drops blank and duplicate keys, keeping first-seen order.
func NewCredentialPool(keys []string) *CredentialPool {
	seen := make(map[string]bool, len(keys))
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		cleaned = append(cleaned, k)
	}
	return &CredentialPool{keys: cleaned}
}

// ParseCredentials splits a comma, semicolon or newline separated key list.
// A single key is just a list of one.
func ParseCredentials(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
}

func (p *CredentialPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Cursor returns the index of the key the next attempt will use.
func (p *CredentialPool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Current returns the key under the cursor and its index.
func (p *CredentialPool) Current() (string, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", 0, false
	}
	i := p.cursor % len(p.keys)
	return p.keys[i], i, true
}

// Pick returns the first key at or after the cursor whose index is not in
// tried. ok is false once every key has been tried.
func (p *CredentialPool) Pick(tried map[int]bool) (string, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.keys)
	for step := 0; step < n; step++ {
		i := (p.cursor + step) % n
		if !tried[i] {
			return p.keys[i], i, true
		}
	}
	return "", 0, false
}

// Advance moves past the key at index from. If another caller already
// rotated away from it, the cursor is left alone so one failure never
// skips two keys.
func (p *CredentialPool) Advance(from int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return 0
	}
	if p.cursor%len(p.keys) == from {
		p.cursor = (from + 1) % len(p.keys)
	}
	return p.cursor
}

// Reset replaces the keys. This is the only way the cursor goes back to zero.
func (p *CredentialPool) Reset(keys []string) {
	fresh := NewCredentialPool(keys)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = fresh.keys
	p.cursor = 0
}
