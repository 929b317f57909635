package outrouter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

// enableColorForTest forces lipgloss to emit ANSI escape sequences during
// tests (by default lipgloss detects no TTY and strips colors).
func enableColorForTest(t *testing.T) {
	t.Helper()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI256)
	t.Cleanup(func() { lipgloss.SetColorProfile(orig) })
}

func TestKeepOrderFlushesInStartOrder(t *testing.T) {
	var buf bytes.Buffer
	r := New(ModeKeepOrder, &buf)

	r.TaskStarted("a")
	r.TaskStarted("b")

	r.Line("b", "stdout", "b-line", SilentStreams{})
	r.Line("a", "stdout", "a-line", SilentStreams{})

	// b finishes first, but must not flush before a (start order).
	r.TaskFinished("b", false)
	assert.Empty(t, buf.String())

	r.TaskFinished("a", false)
	assert.Equal(t, "a-line\nb-line\n", buf.String())
}

func TestSilentModeSuppressesAllOutput(t *testing.T) {
	var buf bytes.Buffer
	r := New(ModeSilent, &buf)
	r.Line("a", "stdout", "hello", SilentStreams{})
	assert.Empty(t, buf.String())
}

func TestPrefixModeIncludesTaskName(t *testing.T) {
	var buf bytes.Buffer
	r := New(ModePrefix, &buf)
	r.Line("build", "stdout", "compiling", SilentStreams{})
	assert.Contains(t, buf.String(), "build")
	assert.Contains(t, buf.String(), "compiling")
}

func TestSilentStreamsRefinesPerStream(t *testing.T) {
	var buf bytes.Buffer
	r := New(ModeInterleave, &buf)
	r.Line("a", "stderr", "err-line", SilentStreams{Stderr: true})
	r.Line("a", "stdout", "out-line", SilentStreams{Stderr: true})
	assert.Equal(t, "out-line\n", buf.String())
}

func TestReplacingModelRendersStyledMarks(t *testing.T) {
	enableColorForTest(t)

	m := newReplacingModel()
	m.Update(taskStartedMsg{name: "build"})
	m.Update(taskStartedMsg{name: "test"})
	m.Update(taskLineMsg{name: "build", line: "compiling"})
	m.Update(taskDoneMsg{name: "build", failed: false})
	m.Update(taskDoneMsg{name: "test", failed: true})

	view := m.View()
	assert.True(t, strings.Contains(view, "\x1b["), "expected ANSI styling in replacing view")
	assert.Contains(t, view, "build")
	assert.Contains(t, view, "test")
}
