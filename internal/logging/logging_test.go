package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
)

func TestNew_SharedOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(log.INFO)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	l := New("unit")
	l.Info("hello")
	l.Debug("hidden")

	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, log.DEBUG, LevelFor("dev"))
	assert.Equal(t, log.WARN, LevelFor("test"))
	assert.Equal(t, log.INFO, LevelFor("prod"))
}
