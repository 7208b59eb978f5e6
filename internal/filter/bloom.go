package filter

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// SlugFilter answers "has this slug ever been issued" without touching the database.
// A false answer is definite only once the filter has been loaded from the
// store. A true answer may be a false positive.
type SlugFilter struct {
	mu       sync.RWMutex
	filter   *bloom.BloomFilter
	capacity uint
	fpRate   float64
	loaded   bool
}

// NewSlugFilter creates a filter sized for capacity slugs at the given false positive rate
func NewSlugFilter(capacity uint, fpRate float64) *SlugFilter {
	return &SlugFilter{
		filter:   bloom.NewWithEstimates(capacity, fpRate),
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// Add records a slug
func (f *SlugFilter) Add(slug string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(slug)
}

// MightContain reports whether slug may have been added
func (f *SlugFilter) MightContain(slug string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(slug)
}

// Load replaces the filter contents with the slugs returned by load. The
// write lock is held while load runs, so slugs added concurrently land in the
// new filter rather than the discarded one. Deleted slugs cannot be removed
// from a bloom filter, so bulk deletes reload it instead.
func (f *SlugFilter) Load(load func() ([]string, error)) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slugs, err := load()
	if err != nil {
		return 0, err
	}
	next := bloom.NewWithEstimates(f.capacity, f.fpRate)
	for _, s := range slugs {
		next.AddString(s)
	}
	f.filter = next
	f.loaded = true
	return len(slugs), nil
}

// Loaded reports whether the filter holds every stored slug
func (f *SlugFilter) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loaded
}

// ApproximateSize estimates how many distinct slugs were added
func (f *SlugFilter) ApproximateSize() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.ApproximatedSize()
}
