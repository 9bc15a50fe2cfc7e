package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/creack/pty"
)

var ErrNoSession = errors.New("no active editor session")

// session is one editor process attached to a PTY.
type session struct {
	ptmx *os.File
	cmd  *exec.Cmd
	path string
}

func (s *session) kill() {
	s.ptmx.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

// Manager runs at most one external editor inside a PTY. Output is streamed
// to onData and onExit fires once the editor process ends on its own.
type Manager struct {
	mu     sync.Mutex
	cur    *session
	argv   []string
	env    []string
	size   pty.Winsize
	onData func(data []byte)
	onExit func(path string)
}

// New creates a manager for editor, falling back to $VISUAL, $EDITOR and
// then vi. editor may carry arguments, as in "code --wait".
func New(editor string, onData func(data []byte), onExit func(path string)) *Manager {
	argv := strings.Fields(editor)
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if len(argv) > 0 {
			break
		}
		argv = strings.Fields(os.Getenv(env))
	}
	if len(argv) == 0 {
		argv = []string{"vi"}
	}
	argv[0] = lookEditor(argv[0])
	return &Manager{
		argv:   argv,
		env:    editorEnv(os.Environ(), loginPath()),
		size:   pty.Winsize{Cols: 80, Rows: 24},
		onData: onData,
		onExit: onExit,
	}
}

// Editor returns the resolved editor command line.
func (m *Manager) Editor() string { return strings.Join(m.argv, " ") }

// OpenFile starts the editor on path, ending any running session first.
func (m *Manager) OpenFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	args := append(append([]string{}, m.argv[1:]...), path)
	cmd := exec.Command(m.argv[0], args...)
	cmd.Env = m.env
	ptmx, err := pty.StartWithSize(cmd, &m.size)
	if err != nil {
		return fmt.Errorf("start %s: %w", filepath.Base(m.argv[0]), err)
	}
	s := &session{ptmx: ptmx, cmd: cmd, path: path}
	m.cur = s
	go m.pump(s)
	return nil
}

func (m *Manager) pump(s *session) {
	buf := make([]byte, 32*1024)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 && m.onData != nil {
			m.onData(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			break
		}
	}
	s.cmd.Wait()

	m.mu.Lock()
	natural := m.cur == s
	if natural {
		m.cur = nil
	}
	m.mu.Unlock()
	if natural && m.onExit != nil {
		m.onExit(s.path)
	}
}

// Write sends keystrokes to the editor.
func (m *Manager) Write(data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return ErrNoSession
	}
	_, err := io.WriteString(m.cur.ptmx, data)
	return err
}

// Resize updates the PTY size; the size is kept for the next session.
func (m *Manager) Resize(cols, rows uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size = pty.Winsize{Cols: cols, Rows: rows}
	if m.cur == nil {
		return nil
	}
	return pty.Setsize(m.cur.ptmx, &m.size)
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil
}

// Path returns the file open in the running session.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return ""
	}
	return m.cur.path
}

// Close kills the running editor without firing onExit.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.cur != nil {
		m.cur.kill()
		m.cur = nil
	}
}

// ── Environment ────────────────────────────────────────────

// lookEditor resolves name to an absolute path. Apps launched from a desktop
// session do not inherit the shell PATH, so common install dirs are probed.
func lookEditor(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	dirs := []string{"/opt/homebrew/bin", "/usr/local/bin", "/run/current-system/sw/bin"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local/bin"), filepath.Join(home, ".nix-profile/bin"))
	}
	for _, d := range dirs {
		if p := filepath.Join(d, name); fileExists(p) {
			return p
		}
	}
	return name
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// loginPath asks the login shell for its PATH. Empty when unavailable.
func loginPath() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		return ""
	}
	out, err := exec.Command(shell, "-lc", "echo $PATH").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// editorEnv returns base with PATH replaced by path (when set) and a
// colour-capable TERM.
func editorEnv(base []string, path string) []string {
	env := make([]string, 0, len(base)+3)
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		switch {
		case key == "TERM" || key == "COLORTERM":
			continue
		case key == "PATH" && path != "":
			continue
		}
		env = append(env, kv)
	}
	if path != "" {
		env = append(env, "PATH="+path)
	}
	return append(env, "TERM=xterm-256color", "COLORTERM=truecolor")
}
