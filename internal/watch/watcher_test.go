package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFile_MirrorsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "el-1.txt")
	if err := os.WriteFile(path, []byte("first"), 0644); err != nil {
		t.Fatal(err)
	}

	got := make(chan string, 8)
	w, err := New(func(key string, content []byte) { got <- key + "=" + string(content) })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.WatchFile("el-1", path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-got:
			if s == "el-1=second" {
				return
			}
		case <-deadline:
			t.Fatal("no change observed")
		}
	}
}

func TestWatchDir_FiltersSuffix(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	got := make(chan string, 8)
	w, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.WatchDir(dir, ".json", func(p string) { got <- filepath.Base(p) }); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "lesson.json"), []byte("[]"), 0644)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case name := <-got:
			if name != "lesson.json" {
				t.Fatalf("unexpected file %s", name)
			}
			return
		case <-deadline:
			t.Fatal("no import observed")
		}
	}
}
