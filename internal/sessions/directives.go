package sessions

import (
	"context"
	"sync"

	"github.com/angelmondragon/tebex-storefront/internal/handshake"
)

// Directives holds the popup the browser still has to open. Only the latest one is kept.
type Directives struct {
	mu     sync.Mutex
	latest *handshake.Directive
}

func (d *Directives) Open(_ context.Context, directive handshake.Directive) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest = &directive
	return nil
}

// Take hands the pending directive to the caller once.
func (d *Directives) Take() *handshake.Directive {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.latest
	d.latest = nil
	return out
}

// Clear drops a directive that was never picked up.
func (d *Directives) Clear() {
	d.mu.Lock()
	d.latest = nil
	d.mu.Unlock()
}
