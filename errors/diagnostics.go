package errors

import "sync"

// Diagnostics collects non-fatal errors recorded while a module graph is
// built and lazily populated.
type Diagnostics struct {
	list []*Error
	mu   sync.Mutex
}

// Record appends a diagnostic. Nil errors are ignored.
func (d *Diagnostics) Record(err *Error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	d.list = append(d.list, err)
	d.mu.Unlock()
}

// List returns a snapshot of the recorded diagnostics in recording order.
func (d *Diagnostics) List() []*Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Error, len(d.list))
	copy(out, d.list)
	return out
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.list)
}

// Filter returns the recorded diagnostics of the given kind.
func (d *Diagnostics) Filter(kind Kind) []*Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Error
	for _, e := range d.list {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
