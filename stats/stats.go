// Package stats holds lightweight counters the dispatcher and IPC layer
// bump on every call, grounded on biscuit's stats.Counter_t/Cycles_t
// pattern: a build-time Enabled switch that turns counting into a no-op,
// and a reflect-based dump for printing a struct of counters.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

// Enabled gates whether Counter/Cycles increments do any work. Off by
// default so the hot dispatch path pays nothing for accounting it
// doesn't need.
var Enabled = false

// Counter is a monotonic event counter.
type Counter int64

// Inc increments the counter by one.
func (c *Counter) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

// Add increments the counter by n.
func (c *Counter) Add(n int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), n)
	}
}

// Cycles accumulates elapsed nanoseconds for a timed section.
type Cycles int64

// Add folds elapsed nanoseconds into the accumulator.
func (c *Cycles) Add(elapsedNs int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), elapsedNs)
	}
}

// Dump renders every Counter/Cycles field of st as a printable string.
func Dump(st interface{}) string {
	if !Enabled {
		return ""
	}
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	var b strings.Builder
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		name := v.Type().Field(i).Name
		switch {
		case strings.HasSuffix(t, "Counter"):
			b.WriteString("\n\t" + name + ": " + strconv.FormatInt(v.Field(i).Int(), 10))
		case strings.HasSuffix(t, "Cycles"):
			b.WriteString("\n\t" + name + ": " + strconv.FormatInt(v.Field(i).Int(), 10) + "ns")
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// Dispatch counts the syscall dispatcher's traffic, one Counter per
// opcode class plus total cycles spent in handlers.
type Dispatch struct {
	IPCCalls      Counter
	CapabilityOps Counter
	MemoryOps     Counter
	ThreadOps     Counter
	TensorOps     Counter
	Faults        Counter
	Errors        Counter
	HandlerCycles Cycles
}
