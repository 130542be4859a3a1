package typesys

// LoadState is the population state of a lazily loaded value.
type LoadState uint8

const (
	Unloaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "unknown"
}

// Slot holds a lazily loaded value. The resolver is the only writer: it
// moves a slot from Unloaded to Loading, may publish a partial value while
// loading, and completes it once. A reader that reenters while the slot is
// Loading observes the published value.
type Slot[T any] struct {
	value T
	state LoadState
}

// State returns the load state.
func (s *Slot[T]) State() LoadState {
	return s.state
}

// Get returns the current value and state.
func (s *Slot[T]) Get() (T, LoadState) {
	return s.value, s.state
}

// Begin moves an Unloaded slot to Loading and reports whether it did.
func (s *Slot[T]) Begin() bool {
	if s.state != Unloaded {
		return false
	}
	s.state = Loading
	return true
}

// Publish stores a partial value visible to reentrant lookups.
func (s *Slot[T]) Publish(v T) {
	s.value = v
}

// Complete stores the final value.
func (s *Slot[T]) Complete(v T) {
	s.value = v
	s.state = Loaded
}

// Abandon returns a Loading slot to Unloaded and drops its value.
func (s *Slot[T]) Abandon() {
	var zero T
	s.value = zero
	s.state = Unloaded
}

// Load returns the value, running load on first use. A reentrant call
// during load returns the zero or published value.
func (s *Slot[T]) Load(load func() T) T {
	if s.Begin() {
		s.Complete(load())
	}
	return s.value
}
