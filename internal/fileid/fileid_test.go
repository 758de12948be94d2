package fileid

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPathID(t *testing.T) {
	id1 := PathID("/inbox/grades.csv")
	id2 := PathID("/inbox/grades.csv")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, pathPrefix) {
		t.Errorf("ID should have prefix %q: got %q", pathPrefix, id1)
	}
	if len(id1) != len(pathPrefix)+64 {
		t.Errorf("unexpected ID length: %q", id1)
	}
}

func TestPathID_differentPaths(t *testing.T) {
	if PathID("/inbox/a.csv") == PathID("/inbox/b.csv") {
		t.Error("different paths should give different IDs")
	}
}

func TestPathID_normalized(t *testing.T) {
	id1 := PathID("/inbox/a")
	id2 := PathID("/inbox/a/")
	id3 := PathID("/inbox/./a")
	if id1 != id2 {
		t.Errorf("paths differing only by trailing slash should match: %q vs %q", id1, id2)
	}
	if id1 != id3 {
		t.Errorf("paths with . should normalize: %q vs %q", id1, id3)
	}
}

func TestPathID_absoluteFromFilepath(t *testing.T) {
	abs, _ := filepath.Abs(".")
	if id := PathID(abs); !strings.HasPrefix(id, pathPrefix) {
		t.Errorf("absolute path: got %q", id)
	}
}

func TestContentID(t *testing.T) {
	a := ContentID("grades.csv", []byte("a,b\n1,2\n"))
	if a != ContentID("/tmp/x/grades.csv", []byte("a,b\n1,2\n")) {
		t.Error("directory part of the filename should not matter")
	}
	if !strings.HasPrefix(a, uploadPrefix) {
		t.Errorf("ID should have prefix %q: got %q", uploadPrefix, a)
	}
	if a == ContentID("grades.csv", []byte("a,b\n1,3\n")) {
		t.Error("different content should give different IDs")
	}
	if a == ContentID("other.csv", []byte("a,b\n1,2\n")) {
		t.Error("different filenames should give different IDs")
	}
	// The separator keeps name/content boundaries distinct.
	if ContentID("ab", []byte("c")) == ContentID("a", []byte("bc")) {
		t.Error("boundary between filename and content should matter")
	}
}
