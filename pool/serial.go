package pool

import "fmt"

// SerialRun is the wire form of one run: the header fields plus the run's
// occupied values in index order, the run leader's value first.
type SerialRun[U any] struct {
	NextFree  int `cbor:"next_free" json:"next_free"`
	NextChunk int `cbor:"next_chunk" json:"next_chunk"`
	Values    []U `cbor:"values" json:"values"`
}

// Export walks every segment below the trailing fully-empty ones and
// returns its runs in chain order, converting each value through conv.
// The result captures the exact header topology, so Import rebuilds a pool
// that allocates the same indices this one would.
func Export[T, U any](p *Pool[T], conv func(index int, v *T) U) [][]SerialRun[U] {
	limit := p.liveStores()
	doc := make([][]SerialRun[U], 0, limit)
	for si := 0; si < limit; si++ {
		store := p.stores[si]
		var runs []SerialRun[U]
		chunk := 0
		for {
			h := store[chunk].header
			if h.nextChunk <= chunk {
				panic("pool: header chain does not advance")
			}
			run := SerialRun[U]{NextFree: h.nextFree, NextChunk: h.nextChunk}
			for off := chunk; off < h.nextFree; off++ {
				run.Values = append(run.Values, conv(si*storeCapacity+off, &store[off].val))
			}
			runs = append(runs, run)
			chunk = h.nextChunk
			if chunk >= storeCapacity {
				break
			}
		}
		doc = append(doc, runs)
	}
	return doc
}

// Import rebuilds a pool from an Export document, converting each value
// through conv. Malformed documents (headers out of range, chains that do
// not advance, runs longer than their header allows) yield an error rather
// than a panic: snapshot bytes are input, not trusted state.
func Import[T, U any](doc [][]SerialRun[U], conv func(index int, u U) (T, error)) (*Pool[T], error) {
	p := &Pool[T]{stores: make([][]slot[T], 0, len(doc))}
	if len(doc) == 0 {
		p.extend()
		return p, nil
	}
	for si, runs := range doc {
		store := p.extend()
		chunk := 0
		for ri, run := range runs {
			if chunk >= storeCapacity {
				return nil, fmt.Errorf("pool: segment %d has run %d past capacity", si, ri)
			}
			if run.NextChunk <= chunk || run.NextChunk > storeCapacity {
				return nil, fmt.Errorf("pool: segment %d run %d: bad next chunk %d", si, ri, run.NextChunk)
			}
			if run.NextFree < chunk || run.NextFree > run.NextChunk {
				return nil, fmt.Errorf("pool: segment %d run %d: bad next free %d", si, ri, run.NextFree)
			}
			if len(run.Values) != run.NextFree-chunk {
				return nil, fmt.Errorf("pool: segment %d run %d: %d values for run of %d",
					si, ri, len(run.Values), run.NextFree-chunk)
			}
			store[chunk].header = header{nextFree: run.NextFree, nextChunk: run.NextChunk}
			for i, u := range run.Values {
				v, err := conv(si*storeCapacity+chunk+i, u)
				if err != nil {
					return nil, err
				}
				store[chunk+i].val = v
				store[chunk+i].occupied = true
			}
			chunk = run.NextChunk
		}
		if chunk != storeCapacity {
			return nil, fmt.Errorf("pool: segment %d chain ends at %d", si, chunk)
		}
	}
	return p, nil
}
