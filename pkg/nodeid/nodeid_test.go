package nodeid

import (
	"errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

func TestSplit(t *testing.T) {
	path, err := Split("0.3.1")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if !reflect.DeepEqual(path, []int{0, 3, 1}) {
		t.Errorf("expected [0 3 1], got %v", path)
	}
}

func TestSplitMalformed(t *testing.T) {
	for _, id := range []string{"", "a", "0.x", "0..1", "1.", "-1", "0.+2", " 1"} {
		_, err := Split(id)
		var merr *MalformedIDError
		if !errors.As(err, &merr) {
			t.Errorf("Split(%q): expected MalformedIDError, got %v", id, err)
			continue
		}
		if merr.ID != id {
			t.Errorf("Split(%q): error carries id %q", id, merr.ID)
		}
	}
}

func TestMustSplitPanics(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*MalformedIDError); !ok {
			t.Errorf("expected *MalformedIDError panic, got %v", r)
		}
	}()
	MustSplit("1.b")
}

func TestHelpers(t *testing.T) {
	if got := Child("", 2); got != "2" {
		t.Errorf("Child top level: got %q", got)
	}
	if got := Child("0.1", 4); got != "0.1.4" {
		t.Errorf("Child nested: got %q", got)
	}
	if got := Parent("0.1.4"); got != "0.1" {
		t.Errorf("Parent: got %q", got)
	}
	if got := Parent("3"); got != "" {
		t.Errorf("Parent of top level: got %q", got)
	}
	if Depth("0.1.4") != 2 || Depth("7") != 0 {
		t.Error("Depth mismatch")
	}
	if !IsTopLevel("12") || IsTopLevel("1.2") {
		t.Error("IsTopLevel mismatch")
	}
	if Last("0.1.4") != 4 {
		t.Errorf("Last: got %d", Last("0.1.4"))
	}
	if !IsAncestor("0", "0.1") || IsAncestor("0", "0") || IsAncestor("1", "10.2") {
		t.Error("IsAncestor mismatch")
	}
}

// TestJoinSplitRoundTrip checks split(join(indices)) == indices for any path.
func TestJoinSplitRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		path := rapid.SliceOfN(rapid.IntRange(0, 10000), 1, 12).Draw(rt, "path")
		got, err := Split(Join(path))
		if err != nil {
			rt.Fatalf("Split(Join(%v)) failed: %v", path, err)
		}
		if !reflect.DeepEqual(got, path) {
			rt.Fatalf("round trip mismatch: %v != %v", got, path)
		}
	})
}
