// Package fontset holds the process-wide font set the render engine falls
// back to for assets not carried in a manifest, per spec.md §4.7. It is
// initialized lazily behind a one-time guard and is read-only after first
// use, the same lazy-singleton shape the teacher's internal/rand package
// uses for its seeded generator.
package fontset

import "sync"

// Font is a single named, embedded font face.
type Font struct {
	Name string
	Data []byte
}

var (
	once sync.Once
	mu   sync.RWMutex
	set  []Font
	load func() []Font = defaultFonts
)

// defaultFonts returns the built-in set. Production builds may replace it
// at startup (before the first Get/Names call) via SetLoader; real font
// bytes are an asset-pipeline concern outside this package.
func defaultFonts() []Font {
	return nil
}

// SetLoader overrides how the set is built on first use. It must be called
// before any call to Get or Names; callers that need a deterministic font
// set for reproducible output wire their own loader here, satisfying the
// "tests MUST be able to substitute the font set at startup" requirement.
// Calling it after initialization has already happened has no effect.
func SetLoader(fn func() []Font) {
	mu.Lock()
	defer mu.Unlock()
	load = fn
}

func ensureLoaded() {
	once.Do(func() {
		mu.Lock()
		fn := load
		mu.Unlock()
		loaded := fn()
		mu.Lock()
		set = loaded
		mu.Unlock()
	})
}

// Names returns the font names in the set's stable order.
func Names() []string {
	ensureLoaded()
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, len(set))
	for i, f := range set {
		names[i] = f.Name
	}
	return names
}

// Get returns the font face named name, and whether it was found.
func Get(name string) (Font, bool) {
	ensureLoaded()
	mu.RLock()
	defer mu.RUnlock()
	for _, f := range set {
		if f.Name == name {
			return f, true
		}
	}
	return Font{}, false
}

// All returns a copy of the full set in stable order.
func All() []Font {
	ensureLoaded()
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Font, len(set))
	copy(out, set)
	return out
}
