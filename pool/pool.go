package pool

// storeCapacity is the fixed slot count of one segment. Index i lives in
// segment i/storeCapacity at offset i%storeCapacity.
const storeCapacity = 512

// header describes one run inside a segment. A run is a maximal span of
// occupied slots starting at the header's own slot: [chunk, nextFree) is
// occupied, [nextFree, nextChunk) is free, and nextChunk is the offset of
// the next run's header (storeCapacity when this is the last run).
type header struct {
	nextFree  int
	nextChunk int
}

// emptyHeader is the canonical header of a segment with no occupied slots.
var emptyHeader = header{nextFree: 0, nextChunk: storeCapacity}

type slot[T any] struct {
	val      T
	occupied bool
	header   header
}

// Pool is a growable slot allocator handing out stable integer indices.
// The zero value is not usable; call New.
//
// Pool is not safe for concurrent use.
type Pool[T any] struct {
	stores [][]slot[T]
}

// New returns a pool with a single empty segment.
func New[T any]() *Pool[T] {
	p := &Pool[T]{stores: make([][]slot[T], 0, 4)}
	p.extend()
	return p
}

func splitIndex(index int) (store, offset int) {
	return index / storeCapacity, index % storeCapacity
}

func (p *Pool[T]) extend() []slot[T] {
	s := make([]slot[T], storeCapacity)
	s[0].header = emptyHeader
	p.stores = append(p.stores, s)
	return s
}

// Len reports the total slot capacity across all segments.
func (p *Pool[T]) Len() int {
	return len(p.stores) * storeCapacity
}

// Push stores v at the lowest free index and returns that index. It never
// fails: when every segment is full a new segment is appended. The second
// return value is the displaced previous value, which is always nil while
// the header invariants hold; it exists so corruption surfaces as data
// instead of silent loss.
func (p *Pool[T]) Push(v T) (int, *T) {
	for si := range p.stores {
		store := p.stores[si]
		h := store[0].header
		if h.nextFree >= storeCapacity {
			// Segment full.
			continue
		}

		// Slot 0's header always names the lowest free offset in the
		// segment, kept true by the merge step below.
		target := h.nextFree
		var replaced *T
		if store[target].occupied {
			old := store[target].val
			replaced = &old
		}
		store[target].val = v
		store[target].occupied = true

		hdr := &store[0].header
		hdr.nextFree++
		if hdr.nextFree == hdr.nextChunk && hdr.nextChunk < storeCapacity {
			// The first run grew into the next one: absorb the next
			// run's header so slot 0 keeps naming the lowest free slot.
			*hdr = store[hdr.nextChunk].header
		}
		return si*storeCapacity + target, replaced
	}

	store := p.extend()
	store[0].val = v
	store[0].occupied = true
	store[0].header.nextFree = 1
	return (len(p.stores) - 1) * storeCapacity, nil
}

// locate walks the header chain of index's segment and returns the offsets
// of the run containing index and of the preceding run's header. ok is false
// when index falls outside any segment or lands in free space past the last
// run.
func (p *Pool[T]) locate(index int) (si, target, chunk, lastChunk int, ok bool) {
	si, target = splitIndex(index)
	if si >= len(p.stores) {
		return 0, 0, 0, 0, false
	}
	store := p.stores[si]
	for {
		h := store[chunk].header
		if h.nextChunk <= chunk {
			panic("pool: header chain does not advance")
		}
		if target < h.nextChunk {
			return si, target, chunk, lastChunk, true
		}
		lastChunk = chunk
		chunk = h.nextChunk
		if chunk >= storeCapacity {
			return 0, 0, 0, 0, false
		}
	}
}

// Get returns a pointer to the value at index, or nil when index is
// negative, out of range, or a free slot. The pointer stays valid until the
// slot is removed.
func (p *Pool[T]) Get(index int) *T {
	if index < 0 {
		return nil
	}
	si, off := splitIndex(index)
	if si >= len(p.stores) {
		return nil
	}
	s := &p.stores[si][off]
	if !s.occupied {
		return nil
	}
	return &s.val
}

// Remove frees the slot at index and returns its value. It reports false
// for negative, out-of-range, or already-free indices. The freed index
// becomes immediately reusable by Push, and no other index is disturbed.
func (p *Pool[T]) Remove(index int) (T, bool) {
	var zero T
	if index < 0 {
		return zero, false
	}
	si, target, chunk, lastChunk, ok := p.locate(index)
	if !ok {
		return zero, false
	}
	store := p.stores[si]
	if !store[target].occupied {
		return zero, false
	}
	v := store[target].val
	store[target].val = zero
	store[target].occupied = false

	h := &store[chunk].header
	switch {
	case target == h.nextFree-1:
		// Last occupied slot of its run: shrink the run. If that empties
		// a non-leading run, splice it out of the chain entirely.
		h.nextFree = target
		if chunk == h.nextFree && chunk != 0 {
			store[lastChunk].header.nextChunk = h.nextChunk
		}

	case target == chunk:
		// The run's own header slot: promote target+1 to carry the run.
		saved := *h
		if target == 0 {
			// Slot 0 must stay a header. Leave behind an empty run
			// {0,1} chained to the promoted header.
			store[1].header = saved
			store[0].header = header{nextFree: 0, nextChunk: 1}
		} else {
			store[target+1].header = saved
			store[lastChunk].header.nextChunk++
		}

	default:
		// Interior slot: split the run in two around the hole.
		saved := *h
		h.nextFree = target
		h.nextChunk = target + 1
		store[target+1].header = saved
	}
	return v, true
}

// Each calls fn for every slot index below the trailing fully-empty
// segments, passing nil for free slots. Iteration stops when fn returns
// false.
func (p *Pool[T]) Each(fn func(index int, v *T) bool) {
	for si := 0; si < p.liveStores(); si++ {
		store := p.stores[si]
		for off := range store {
			var v *T
			if store[off].occupied {
				v = &store[off].val
			}
			if !fn(si*storeCapacity+off, v) {
				return
			}
		}
	}
}

// liveStores is the segment count with trailing fully-empty segments
// dropped, never less than one.
func (p *Pool[T]) liveStores() int {
	n := len(p.stores) - p.trailingEmpty()
	if n < 1 {
		n = 1
	}
	return n
}

// trailingEmpty counts fully-empty segments at the tail.
func (p *Pool[T]) trailingEmpty() int {
	n := 0
	for i := len(p.stores) - 1; i >= 0; i-- {
		if p.stores[i][0].header != emptyHeader {
			break
		}
		n++
	}
	return n
}

// CleanupStores releases the maximal trailing run of fully-empty segments.
// At least one segment is always retained so the pool stays usable.
func (p *Pool[T]) CleanupStores() {
	n := p.trailingEmpty()
	if n >= len(p.stores) {
		n = len(p.stores) - 1
	}
	if n <= 0 {
		return
	}
	p.stores = p.stores[:len(p.stores)-n]
}
