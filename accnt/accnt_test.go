package accnt

import (
	"testing"
	"time"
)

func TestUtaddSysaddAccumulate(t *testing.T) {
	a := &Accnt{}
	a.Utadd(1000)
	a.Utadd(500)
	a.Sysadd(250)

	u := a.Fetch()
	if u.User != 1500*time.Nanosecond {
		t.Fatalf("expected 1500ns user time, got %v", u.User)
	}
	if u.Sys != 250*time.Nanosecond {
		t.Fatalf("expected 250ns sys time, got %v", u.Sys)
	}
}

func TestAddMergesChildUsage(t *testing.T) {
	parent := &Accnt{}
	child := &Accnt{}
	child.Utadd(100)
	child.Sysadd(200)

	parent.Utadd(10)
	parent.Add(child)

	u := parent.Fetch()
	if u.User != 110*time.Nanosecond || u.Sys != 200*time.Nanosecond {
		t.Fatalf("unexpected merged usage: %+v", u)
	}
}
