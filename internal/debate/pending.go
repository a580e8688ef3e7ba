package debate

import (
	"fmt"
	"sync"
)

// Family groups operations that share one loading indicator.
type Family string

const (
	FamilyAuth          Family = "auth"
	FamilySessionCreate Family = "session-create"
	FamilyBroadcast     Family = "broadcast"
)

type pending struct {
	mu    sync.Mutex
	flags map[Family]bool
}

func (p *pending) begin(f Family) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.flags == nil {
		p.flags = make(map[Family]bool)
	}
	if p.flags[f] {
		return fmt.Errorf("%s: %w", f, ErrInProgress)
	}
	p.flags[f] = true
	return nil
}

func (p *pending) end(f Family) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.flags, f)
}

func (p *pending) is(f Family) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags[f]
}
