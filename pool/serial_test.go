package pool

import (
	"strconv"
	"testing"
)

func ident(_ int, v *string) string             { return *v }
func identBack(_ int, u string) (string, error) { return u, nil }

func TestExportCapturesRuns(t *testing.T) {
	p := New[string]()
	for i := 0; i < 5; i++ {
		mustPush(t, p, strconv.Itoa(i))
	}
	p.Remove(2)

	doc := Export(p, ident)
	if len(doc) != 1 {
		t.Fatalf("segments = %d", len(doc))
	}
	runs := doc[0]
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	first, second := runs[0], runs[1]
	if first.NextFree != 2 || first.NextChunk != 3 {
		t.Fatalf("first run header = {%d,%d}", first.NextFree, first.NextChunk)
	}
	if len(first.Values) != 2 || first.Values[0] != "0" || first.Values[1] != "1" {
		t.Fatalf("first run values = %v", first.Values)
	}
	if second.NextFree != 5 || second.NextChunk != storeCapacity {
		t.Fatalf("second run header = {%d,%d}", second.NextFree, second.NextChunk)
	}
	if len(second.Values) != 2 || second.Values[0] != "3" || second.Values[1] != "4" {
		t.Fatalf("second run values = %v", second.Values)
	}
}

func TestImportRoundTrip(t *testing.T) {
	p := New[string]()
	for i := 0; i < storeCapacity+20; i++ {
		mustPush(t, p, strconv.Itoa(i))
	}
	for _, idx := range []int{0, 3, 7, 8, 100, 511, 512, 514} {
		p.Remove(idx)
	}

	q, err := Import(Export(p, ident), identBack)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	// Same contents at the same indices.
	want := map[int]string{}
	p.Each(func(index int, v *string) bool {
		if v != nil {
			want[index] = *v
		}
		return true
	})
	got := map[int]string{}
	q.Each(func(index int, v *string) bool {
		if v != nil {
			got[index] = *v
		}
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("restored %d values, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("index %d = %q, want %q", k, got[k], v)
		}
	}

	// Same allocation behavior: both pools hand out identical indices.
	for i := 0; i < 10; i++ {
		a, _ := p.Push("n" + strconv.Itoa(i))
		b, _ := q.Push("n" + strconv.Itoa(i))
		if a != b {
			t.Fatalf("push %d: original allocated %d, restored %d", i, a, b)
		}
	}
}

func TestImportEmptyDocument(t *testing.T) {
	p, err := Import(nil, identBack)
	if err != nil {
		t.Fatalf("Import(nil): %v", err)
	}
	if idx, _ := p.Push("a"); idx != 0 {
		t.Fatalf("push allocated %d, want 0", idx)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	cases := map[string][][]SerialRun[string]{
		"chain does not advance": {{{NextFree: 0, NextChunk: 0}}},
		"next chunk past capacity": {{{NextFree: 0, NextChunk: storeCapacity + 1}}},
		"next free before leader": {
			{{NextFree: 2, NextChunk: 4, Values: []string{"a", "b"}},
				{NextFree: 3, NextChunk: storeCapacity}},
		},
		"value count mismatch": {{{NextFree: 3, NextChunk: storeCapacity, Values: []string{"a"}}}},
		"chain ends early":      {{{NextFree: 1, NextChunk: 40, Values: []string{"a"}}}},
	}
	for name, doc := range cases {
		if _, err := Import(doc, identBack); err == nil {
			t.Errorf("%s: Import accepted malformed document", name)
		}
	}
}

func TestExportRoundTripEmptyPool(t *testing.T) {
	p := New[string]()
	doc := Export(p, ident)
	if len(doc) != 1 || len(doc[0]) != 1 {
		t.Fatalf("empty pool export = %v", doc)
	}
	if doc[0][0].NextFree != 0 || doc[0][0].NextChunk != storeCapacity {
		t.Fatalf("empty pool run = %+v", doc[0][0])
	}
	if _, err := Import(doc, identBack); err != nil {
		t.Fatalf("Import: %v", err)
	}
}
