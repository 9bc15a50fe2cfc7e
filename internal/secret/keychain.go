package secret

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const serviceName = "smartclass-builder"

// runFunc runs a CLI with optional stdin and returns its stdout.
type runFunc func(stdin []byte, name string, args ...string) ([]byte, error)

func execRun(stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		err = fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return out, err
}

// backend describes how one OS credential tool stores, reads and removes
// a secret, and which exit code means "no such item".
type backend struct {
	tool       string
	notFound   int
	setArgs    func(key string) []string
	getArgs    func(key string) []string
	deleteArgs func(key string) []string
	// setViaStdin passes the value on stdin instead of argv.
	setViaStdin bool
}

var keychainBackend = backend{
	tool:     "security",
	notFound: 44,
	setArgs: func(key string) []string {
		return []string{"add-generic-password", "-a", key, "-s", serviceName, "-U", "-w"}
	},
	getArgs: func(key string) []string {
		return []string{"find-generic-password", "-a", key, "-s", serviceName, "-w"}
	},
	deleteArgs: func(key string) []string {
		return []string{"delete-generic-password", "-a", key, "-s", serviceName}
	},
}

var libsecretBackend = backend{
	tool:     "secret-tool",
	notFound: 1,
	setArgs: func(key string) []string {
		return []string{"store", "--label", serviceName + " " + key, "service", serviceName, "account", key}
	},
	getArgs: func(key string) []string {
		return []string{"lookup", "service", serviceName, "account", key}
	},
	deleteArgs: func(key string) []string {
		return []string{"clear", "service", serviceName, "account", key}
	},
	setViaStdin: true,
}

// CommandStore implements SecretStore on top of the OS credential CLI:
// `security` on macOS, `secret-tool` (libsecret) on Linux desktops.
type CommandStore struct {
	b   backend
	run runFunc
}

// NewKeychainStore stores secrets in the macOS login Keychain.
func NewKeychainStore() *CommandStore {
	return &CommandStore{b: keychainBackend, run: execRun}
}

// NewLibsecretStore stores secrets in the freedesktop Secret Service.
func NewLibsecretStore() *CommandStore {
	return &CommandStore{b: libsecretBackend, run: execRun}
}

// Set stores a secret, replacing any previous value for key.
func (c *CommandStore) Set(key string, value []byte) error {
	args := c.b.setArgs(key)
	var stdin []byte
	if c.b.setViaStdin {
		stdin = value
	} else {
		// `security -w` takes the password as the next argument.
		args = append(args, string(value))
	}
	if _, err := c.run(stdin, c.b.tool, args...); err != nil {
		return fmt.Errorf("%s set %s: %w", c.b.tool, key, err)
	}
	return nil
}

// Get returns nil, nil when the key does not exist.
func (c *CommandStore) Get(key string) ([]byte, error) {
	out, err := c.run(nil, c.b.tool, c.b.getArgs(key)...)
	if err != nil {
		if c.missing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s get %s: %w", c.b.tool, key, err)
	}
	v := bytes.TrimRight(out, "\r\n")
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

// Delete is a no-op for keys that were never stored.
func (c *CommandStore) Delete(key string) error {
	if _, err := c.run(nil, c.b.tool, c.b.deleteArgs(key)...); err != nil && !c.missing(err) {
		return fmt.Errorf("%s delete %s: %w", c.b.tool, key, err)
	}
	return nil
}

func (c *CommandStore) missing(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == c.b.notFound
}
