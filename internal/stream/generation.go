package stream

import "sync"

// generation hands out connection tokens and gates delivery on them.
// seq only grows; live is the token currently allowed to deliver, 0 if none.
type generation struct {
	mu   sync.RWMutex
	seq  uint64
	live uint64
}

// next allocates a fresh token and makes it live.
func (g *generation) next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.live = g.seq
	return g.seq
}

// retire revokes the live token. Deliveries already inside deliverIf finish first.
func (g *generation) retire() {
	g.mu.Lock()
	g.live = 0
	g.mu.Unlock()
}

// deliverIf runs fn only while token is live; the check and fn are atomic
// with respect to retire and next.
func (g *generation) deliverIf(token uint64, fn func()) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if token == 0 || g.live != token {
		return false
	}
	fn()
	return true
}

func (g *generation) current() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seq
}

func (g *generation) isLive(token uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return token != 0 && g.live == token
}
