package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPairsFromArgs(t *testing.T) {
	pairs, err := pairsFromArgs([]string{"a/turn1.png", "a/turn1b.png", "t2.jpg", "t2b.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].name != "turn1" || pairs[0].post != "a/turn1b.png" {
		t.Errorf("pair 0 = %+v", pairs[0])
	}
	if pairs[1].name != "t2" {
		t.Errorf("pair 1 name = %q", pairs[1].name)
	}

	for _, args := range [][]string{nil, {"only.png"}, {"a", "b", "c"}} {
		if _, err := pairsFromArgs(args); err == nil {
			t.Errorf("pairsFromArgs(%v) should fail", args)
		}
	}
}

func TestPairsInDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"b_pre.png", "b_post.png",
		"a_pre.png", "a_post.png",
		"orphan_pre.png",
		"c_pre.png", "c_post.jpg",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	pairs, err := pairsInDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2: %+v", len(pairs), pairs)
	}
	if pairs[0].name != "a" || pairs[1].name != "b" {
		t.Errorf("pairs not sorted: %+v", pairs)
	}
	if pairs[1].post != filepath.Join(dir, "b_post.png") {
		t.Errorf("post = %q", pairs[1].post)
	}

	if _, err := pairsInDir(t.TempDir()); err == nil {
		t.Error("empty dir should fail")
	}
}
