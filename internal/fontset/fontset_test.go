package fontset

import (
	"sync"
	"testing"
)

// resetForTest undoes the process-wide singleton guard so each test gets
// its own fresh initialization; production code never does this.
func resetForTest() {
	once = sync.Once{}
	mu.Lock()
	set = nil
	load = defaultFonts
	mu.Unlock()
}

func TestDefaultSetIsEmpty(t *testing.T) {
	resetForTest()
	if got := Names(); len(got) != 0 {
		t.Fatalf("expected empty default set, got %v", got)
	}
}

func TestSetLoaderOverridesBeforeFirstUse(t *testing.T) {
	resetForTest()
	SetLoader(func() []Font {
		return []Font{{Name: "Inconsolata", Data: []byte("stub")}, {Name: "Vollkorn", Data: []byte("stub")}}
	})

	names := Names()
	if len(names) != 2 || names[0] != "Inconsolata" || names[1] != "Vollkorn" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestGetFindsLoadedFont(t *testing.T) {
	resetForTest()
	SetLoader(func() []Font {
		return []Font{{Name: "Inconsolata", Data: []byte("stub-bytes")}}
	})

	f, ok := Get("Inconsolata")
	if !ok || string(f.Data) != "stub-bytes" {
		t.Fatalf("expected to find font, got %v ok=%v", f, ok)
	}

	if _, ok := Get("NoSuchFont"); ok {
		t.Fatal("expected NoSuchFont to be absent")
	}
}

func TestOnceGuardInitializesOnlyOnce(t *testing.T) {
	resetForTest()
	calls := 0
	SetLoader(func() []Font {
		calls++
		return []Font{{Name: "A"}}
	})

	_ = Names()
	_ = Names()
	_ = All()

	if calls != 1 {
		t.Fatalf("expected loader to run exactly once, ran %d times", calls)
	}
}

func TestAllReturnsACopy(t *testing.T) {
	resetForTest()
	SetLoader(func() []Font { return []Font{{Name: "A"}} })

	got := All()
	got[0].Name = "mutated"

	again := All()
	if again[0].Name != "A" {
		t.Fatalf("All() leaked internal state: %v", again)
	}
}
