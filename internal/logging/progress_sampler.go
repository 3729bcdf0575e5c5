package logging

// ProgressSampler thins per-item progress events so a long discovery walk
// logs every Nth candidate instead of every one.
type ProgressSampler struct {
	every int
	seen  int
}

// NewProgressSampler constructs a sampler that emits on the first item and
// then every `every` items (default 100).
func NewProgressSampler(every int) *ProgressSampler {
	if every <= 0 {
		every = 100
	}
	return &ProgressSampler{every: every}
}

// ShouldLog records one item and reports whether it should be logged.
func (s *ProgressSampler) ShouldLog() bool {
	if s == nil {
		return true
	}
	s.seen++
	return s.seen == 1 || s.seen%s.every == 0
}

// Count returns the number of items observed.
func (s *ProgressSampler) Count() int {
	if s == nil {
		return 0
	}
	return s.seen
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.seen = 0
}
