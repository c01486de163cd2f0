// Package caller provides call-stack diagnostics for dispatch-path
// panics, grounded on biscuit's caller.Distinct_caller_t: a hashed set
// of previously-seen call chains so a repeated panic site is reported
// once instead of flooding the audit log.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// Dump renders the call stack starting at the given skip depth, for
// attaching to a panic-recovery audit event.
func Dump(skip int) string {
	var b []byte
	i := skip
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if len(b) == 0 {
			b = fmt.Appendf(b, "%s:%d\n", f, l)
		} else {
			b = fmt.Appendf(b, "\t<-%s:%d\n", f, l)
		}
	}
	return string(b)
}

// DistinctSet deduplicates recovered panics by call chain, so the
// dispatcher's audit trail records the first occurrence of each
// distinct crash site rather than every occurrence.
type DistinctSet struct {
	mu   sync.Mutex
	seen map[uintptr]bool
}

func pchash(pcs []uintptr) uintptr {
	var h uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		h ^= pc
	}
	return h
}

// Len reports how many distinct call chains have been recorded.
func (d *DistinctSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Distinct reports whether the caller's current call chain (skipping 3
// frames for Distinct itself and its immediate caller) has not been
// seen before, returning a formatted trace when it is new.
func (d *DistinctSet) Distinct() (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[uintptr]bool)
	}

	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return false, ""
	}
	pcs = pcs[:n]

	h := pchash(pcs)
	if d.seen[h] {
		return false, ""
	}
	d.seen[h] = true

	frames := runtime.CallersFrames(pcs)
	var trace string
	for {
		fr, more := frames.Next()
		if trace == "" {
			trace = fmt.Sprintf("%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		} else {
			trace += fmt.Sprintf("\t%s (%s:%d)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, trace
}
