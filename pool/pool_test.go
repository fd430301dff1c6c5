package pool

import (
	"strconv"
	"testing"
)

func mustPush(t *testing.T, p *Pool[string], v string) int {
	t.Helper()
	idx, replaced := p.Push(v)
	if replaced != nil {
		t.Fatalf("Push(%q) displaced %q", v, *replaced)
	}
	return idx
}

func checkHeader(t *testing.T, p *Pool[string], index int, want header) {
	t.Helper()
	si, off := splitIndex(index)
	got := p.stores[si][off].header
	if got != want {
		t.Fatalf("header at %d = %+v, want %+v", index, got, want)
	}
}

func TestPushFillsLowestIndex(t *testing.T) {
	p := New[string]()
	for i := 0; i < 5; i++ {
		if idx := mustPush(t, p, strconv.Itoa(i)); idx != i {
			t.Fatalf("push %d allocated index %d", i, idx)
		}
	}
	checkHeader(t, p, 0, header{nextFree: 5, nextChunk: storeCapacity})
}

func TestRemoveInteriorSplitsRun(t *testing.T) {
	p := New[string]()
	for i := 0; i < 5; i++ {
		mustPush(t, p, strconv.Itoa(i))
	}

	if v, ok := p.Remove(2); !ok || v != "2" {
		t.Fatalf("Remove(2) = %q, %v", v, ok)
	}
	checkHeader(t, p, 0, header{nextFree: 2, nextChunk: 3})
	checkHeader(t, p, 3, header{nextFree: 5, nextChunk: storeCapacity})

	if v, ok := p.Remove(1); !ok || v != "1" {
		t.Fatalf("Remove(1) = %q, %v", v, ok)
	}
	checkHeader(t, p, 0, header{nextFree: 1, nextChunk: 3})

	// Reuse starts at the lowest hole.
	if idx := mustPush(t, p, "x"); idx != 1 {
		t.Fatalf("reuse allocated index %d, want 1", idx)
	}
	checkHeader(t, p, 0, header{nextFree: 2, nextChunk: 3})

	if idx := mustPush(t, p, "y"); idx != 2 {
		t.Fatalf("reuse allocated index %d, want 2", idx)
	}
	// Adjacent runs merge once the gap closes.
	checkHeader(t, p, 0, header{nextFree: 5, nextChunk: storeCapacity})
}

func TestRemoveRunLeaderPromotesNext(t *testing.T) {
	p := New[string]()
	for i := 0; i < 5; i++ {
		mustPush(t, p, strconv.Itoa(i))
	}

	// Index 0 is the segment's mandatory header slot: removing it leaves
	// an empty run behind and promotes index 1.
	if v, ok := p.Remove(0); !ok || v != "0" {
		t.Fatalf("Remove(0) = %q, %v", v, ok)
	}
	checkHeader(t, p, 0, header{nextFree: 0, nextChunk: 1})
	checkHeader(t, p, 1, header{nextFree: 5, nextChunk: storeCapacity})

	if idx := mustPush(t, p, "z"); idx != 0 {
		t.Fatalf("reuse allocated index %d, want 0", idx)
	}
	checkHeader(t, p, 0, header{nextFree: 5, nextChunk: storeCapacity})
}

func TestRemoveNonLeadingRunLeader(t *testing.T) {
	p := New[string]()
	for i := 0; i < 8; i++ {
		mustPush(t, p, strconv.Itoa(i))
	}
	p.Remove(3) // runs: [0,3) and [4,8)
	checkHeader(t, p, 0, header{nextFree: 3, nextChunk: 4})
	checkHeader(t, p, 4, header{nextFree: 8, nextChunk: storeCapacity})

	// 4 leads the second run; its header moves to 5.
	if v, ok := p.Remove(4); !ok || v != "4" {
		t.Fatalf("Remove(4) = %q, %v", v, ok)
	}
	checkHeader(t, p, 0, header{nextFree: 3, nextChunk: 5})
	checkHeader(t, p, 5, header{nextFree: 8, nextChunk: storeCapacity})
}

func TestRemoveLastOfRunSplicesEmptyRun(t *testing.T) {
	p := New[string]()
	for i := 0; i < 6; i++ {
		mustPush(t, p, strconv.Itoa(i))
	}
	p.Remove(2)
	p.Remove(4) // second run shrinks to [3,4)
	checkHeader(t, p, 3, header{nextFree: 4, nextChunk: 5})
	checkHeader(t, p, 5, header{nextFree: 6, nextChunk: storeCapacity})

	// Removing 3 empties the middle run; it is spliced out of the chain.
	p.Remove(3)
	checkHeader(t, p, 0, header{nextFree: 2, nextChunk: 5})
}

func TestRemoveRejectsBadIndices(t *testing.T) {
	p := New[string]()
	mustPush(t, p, "a")

	for _, idx := range []int{-1, 1, 5, storeCapacity, 10 * storeCapacity} {
		if _, ok := p.Remove(idx); ok {
			t.Fatalf("Remove(%d) succeeded on free slot", idx)
		}
	}
	// Double remove.
	p.Remove(0)
	if _, ok := p.Remove(0); ok {
		t.Fatal("second Remove(0) succeeded")
	}
}

func TestGet(t *testing.T) {
	p := New[string]()
	idx := mustPush(t, p, "a")
	if v := p.Get(idx); v == nil || *v != "a" {
		t.Fatalf("Get(%d) = %v", idx, v)
	}
	*p.Get(idx) = "b"
	if v := p.Get(idx); *v != "b" {
		t.Fatalf("Get after write = %q", *v)
	}
	for _, bad := range []int{-1, 1, storeCapacity + 7} {
		if v := p.Get(bad); v != nil {
			t.Fatalf("Get(%d) = %v, want nil", bad, v)
		}
	}
}

func TestGrowthAcrossSegments(t *testing.T) {
	p := New[int]()
	for i := 0; i < storeCapacity; i++ {
		idx, _ := p.Push(i)
		if idx != i {
			t.Fatalf("push %d allocated %d", i, idx)
		}
	}
	idx, _ := p.Push(storeCapacity)
	if idx != storeCapacity {
		t.Fatalf("first overflow push allocated %d, want %d", idx, storeCapacity)
	}
	if len(p.stores) != 2 {
		t.Fatalf("segments = %d, want 2", len(p.stores))
	}

	// A hole in segment 0 is preferred over segment 1's free space.
	p.Remove(100)
	if idx, _ := p.Push(-1); idx != 100 {
		t.Fatalf("push after hole allocated %d, want 100", idx)
	}
}

func TestEachSkipsHolesAndTrailingSegments(t *testing.T) {
	p := New[int]()
	for i := 0; i < storeCapacity+3; i++ {
		p.Push(i)
	}
	for i := storeCapacity; i < storeCapacity+3; i++ {
		p.Remove(i)
	}
	p.Remove(7)

	seen := map[int]int{}
	p.Each(func(index int, v *int) bool {
		if v != nil {
			seen[index] = *v
		}
		if index >= storeCapacity {
			t.Fatalf("iterated into trailing empty segment at %d", index)
		}
		return true
	})
	if len(seen) != storeCapacity-1 {
		t.Fatalf("saw %d values, want %d", len(seen), storeCapacity-1)
	}
	if _, ok := seen[7]; ok {
		t.Fatal("hole at 7 reported a value")
	}
	if seen[8] != 8 {
		t.Fatalf("seen[8] = %d", seen[8])
	}
}

func TestCleanupStores(t *testing.T) {
	p := New[int]()
	for i := 0; i < 2*storeCapacity+1; i++ {
		p.Push(i)
	}
	if len(p.stores) != 3 {
		t.Fatalf("segments = %d, want 3", len(p.stores))
	}

	// Empty the two trailing segments.
	for i := storeCapacity; i < 2*storeCapacity+1; i++ {
		p.Remove(i)
	}
	p.CleanupStores()
	if len(p.stores) != 1 {
		t.Fatalf("segments after cleanup = %d, want 1", len(p.stores))
	}

	// Still fully usable: value in segment 0 intact, growth works.
	if v := p.Get(3); v == nil || *v != 3 {
		t.Fatalf("Get(3) after cleanup = %v", v)
	}
	p.Remove(3)
	if idx, _ := p.Push(-1); idx != 3 {
		t.Fatalf("push after cleanup allocated %d, want 3", idx)
	}
}

func TestCleanupKeepsLastSegment(t *testing.T) {
	p := New[int]()
	p.Push(1)
	p.Remove(0)
	p.CleanupStores()
	if len(p.stores) != 1 {
		t.Fatalf("segments = %d, want 1", len(p.stores))
	}
	if idx, _ := p.Push(2); idx != 0 {
		t.Fatalf("push allocated %d, want 0", idx)
	}
}
