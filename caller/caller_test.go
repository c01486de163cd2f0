package caller

import "testing"

func TestDistinctSetDedupesSameSite(t *testing.T) {
	d := &DistinctSet{}
	callSite := func() (bool, string) { return d.Distinct() }

	// Both calls must come from the same call instruction: Distinct hashes
	// the whole call chain, so two different lines here would be two
	// distinct chains.
	var first, second bool
	var trace string
	for i := 0; i < 2; i++ {
		ok, tr := callSite()
		if i == 0 {
			first, trace = ok, tr
		} else {
			second = ok
		}
	}
	if !first || trace == "" {
		t.Fatal("expected first call from a site to be reported as distinct")
	}
	if second {
		t.Fatal("expected repeated call from the same site to be deduplicated")
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 distinct site, got %d", d.Len())
	}
}

func TestDumpReturnsNonEmptyTrace(t *testing.T) {
	if s := Dump(0); s == "" {
		t.Fatal("expected a non-empty stack dump")
	}
}
