package watcher

import "testing"

func TestProjectSet_LongestPrefixMatch(t *testing.T) {
	p := NewProjectSet()
	p.Set([]string{"/ws/a", "/ws/a/nested"})

	root, ok := p.ProjectFor("/ws/a/nested/file.go")
	if !ok || root != "/ws/a/nested" {
		t.Fatalf("expected /ws/a/nested, got %q (ok=%v)", root, ok)
	}

	root, ok = p.ProjectFor("/ws/a/file.go")
	if !ok || root != "/ws/a" {
		t.Fatalf("expected /ws/a, got %q (ok=%v)", root, ok)
	}
}

func TestProjectSet_NoMatch(t *testing.T) {
	p := NewProjectSet()
	p.Set([]string{"/ws/a"})

	_, ok := p.ProjectFor("/ws/b/file.go")
	if ok {
		t.Fatal("expected no match for an unrelated path")
	}
}

func TestProjectSet_ExactRootMatch(t *testing.T) {
	p := NewProjectSet()
	p.Set([]string{"/ws/a"})

	root, ok := p.ProjectFor("/ws/a")
	if !ok || root != "/ws/a" {
		t.Fatalf("expected exact root match, got %q (ok=%v)", root, ok)
	}
}
