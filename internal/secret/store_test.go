package secret

import (
	"errors"
	"os/exec"
	"reflect"
	"strconv"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	if v, err := s.Get(KeyAPIToken); v != nil || err != nil {
		t.Fatalf("missing key: got %q, %v", v, err)
	}

	value := []byte("s3cret")
	if err := s.Set(KeyAPIToken, value); err != nil {
		t.Fatal(err)
	}
	value[0] = 'X'

	got, err := GetString(s, KeyAPIToken)
	if err != nil || got != "s3cret" {
		t.Errorf("got %q, %v", got, err)
	}

	s.Delete(KeyAPIToken)
	if v, _ := s.Get(KeyAPIToken); v != nil {
		t.Errorf("expected nil after delete, got %q", v)
	}
}

type call struct {
	stdin string
	args  []string
}

// fakeCLI records invocations.
type fakeCLI struct {
	calls []call
}

func (f *fakeCLI) run(stdin []byte, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{stdin: string(stdin), args: append([]string{name}, args...)})
	return nil, nil
}

func exitError(t *testing.T, code int) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+strconv.Itoa(code)).Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Skipf("cannot produce exit status %d: %v", code, err)
	}
	return err
}

func TestCommandStore_Args(t *testing.T) {
	f := &fakeCLI{}
	k := &CommandStore{b: keychainBackend, run: f.run}
	if err := k.Set(KeyAPIToken, []byte("tok")); err != nil {
		t.Fatal(err)
	}
	want := []string{"security", "add-generic-password", "-a", KeyAPIToken, "-s", serviceName, "-U", "-w", "tok"}
	if !reflect.DeepEqual(f.calls[0].args, want) {
		t.Errorf("keychain set args = %v", f.calls[0].args)
	}

	f = &fakeCLI{}
	l := &CommandStore{b: libsecretBackend, run: f.run}
	if err := l.Set(KeyDBPassword, []byte("pw")); err != nil {
		t.Fatal(err)
	}
	if f.calls[0].stdin != "pw" {
		t.Errorf("libsecret should read the value from stdin, got %q", f.calls[0].stdin)
	}
	for _, a := range f.calls[0].args {
		if a == "pw" {
			t.Error("secret leaked into argv")
		}
	}
}

func TestCommandStore_Missing(t *testing.T) {
	notFound := exitError(t, keychainBackend.notFound)
	k := &CommandStore{b: keychainBackend, run: func([]byte, string, ...string) ([]byte, error) {
		return nil, notFound
	}}
	if v, err := k.Get(KeyAPIToken); v != nil || err != nil {
		t.Errorf("missing key: got %q, %v", v, err)
	}
	if err := k.Delete(KeyAPIToken); err != nil {
		t.Errorf("delete of missing key: %v", err)
	}

	failed := exitError(t, 2)
	k.run = func([]byte, string, ...string) ([]byte, error) { return nil, failed }
	if _, err := k.Get(KeyAPIToken); err == nil {
		t.Error("expected other exit codes to surface")
	}
}

func TestCommandStore_TrimsNewline(t *testing.T) {
	k := &CommandStore{b: libsecretBackend, run: func([]byte, string, ...string) ([]byte, error) {
		return []byte("s3cret\n"), nil
	}}
	got, err := GetString(k, KeyAPIToken)
	if err != nil || got != "s3cret" {
		t.Errorf("got %q, %v", got, err)
	}
}
