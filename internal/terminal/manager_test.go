package terminal

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLookEditor_AbsolutePath(t *testing.T) {
	if got := lookEditor("/bin/true"); got != "/bin/true" {
		t.Errorf("lookEditor = %q", got)
	}
}

func TestNew_EditorWithArgs(t *testing.T) {
	m := New("/usr/bin/code --wait", nil, nil)
	if want := []string{"/usr/bin/code", "--wait"}; !reflect.DeepEqual(m.argv, want) {
		t.Errorf("argv = %v, want %v", m.argv, want)
	}
	if m.Editor() != "/usr/bin/code --wait" {
		t.Errorf("Editor() = %q", m.Editor())
	}
}

func TestEditorEnv(t *testing.T) {
	base := []string{"HOME=/h", "PATH=/usr/bin", "TERM=dumb"}
	got := editorEnv(base, "/opt/bin:/usr/bin")
	want := []string{"HOME=/h", "PATH=/opt/bin:/usr/bin", "TERM=xterm-256color", "COLORTERM=truecolor"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("editorEnv = %v", got)
	}

	got = editorEnv(base, "")
	want = []string{"HOME=/h", "PATH=/usr/bin", "TERM=xterm-256color", "COLORTERM=truecolor"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("editorEnv without login path = %v", got)
	}
}

func TestManager_RunsEditorToExit(t *testing.T) {
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("no /bin/cat")
	}
	path := filepath.Join(t.TempDir(), "body.txt")
	os.WriteFile(path, []byte("hello"), 0644)

	exited := make(chan string, 1)
	m := New("/bin/cat", nil, func(p string) { exited <- p })
	if err := m.OpenFile(path); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-exited:
		if p != path {
			t.Errorf("exit path = %q", p)
		}
	case <-time.After(3 * time.Second):
		m.Close()
		t.Fatal("editor did not exit")
	}
	if m.IsRunning() {
		t.Error("still running after exit")
	}
	if err := m.Write("x"); err != ErrNoSession {
		t.Errorf("Write err = %v", err)
	}
}
