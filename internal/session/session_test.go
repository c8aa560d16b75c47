package session

import "testing"

func TestChildAppendsPathSegment(t *testing.T) {
	root := New("/jobs/analysis")

	child := root.Child("math")
	if child.Path != "/jobs/analysis/math" {
		t.Errorf("child path = %q, want /jobs/analysis/math", child.Path)
	}
	if child.RunID != root.RunID {
		t.Error("child must keep the parent's run ID")
	}

	grandchild := child.Child("investigate")
	if grandchild.Path != "/jobs/analysis/math/investigate" {
		t.Errorf("grandchild path = %q", grandchild.Path)
	}
	if grandchild.RunID != root.RunID {
		t.Error("grandchild must keep the root's run ID")
	}
}

func TestChildOfEmptyPath(t *testing.T) {
	c := Context{RunID: "r-1"}
	child := c.Child("extract")
	if child.Path != "/extract" {
		t.Errorf("path = %q, want /extract", child.Path)
	}
}

func TestWithPropertyCopiesMap(t *testing.T) {
	root := New("/jobs/analysis")
	tagged := root.WithProperty("document", "doc-42")

	if tagged.Properties["document"] != "doc-42" {
		t.Error("property not set on derived context")
	}
	if _, exists := root.Properties["document"]; exists {
		t.Error("parent property map must not be mutated")
	}
}

func TestNewAssignsDistinctRunIDs(t *testing.T) {
	a := New("/jobs/analysis")
	b := New("/jobs/analysis")
	if a.RunID == b.RunID {
		t.Error("separate runs must get distinct run IDs")
	}
}
