// Package outrouter implements the task output router (component N, §4.10):
// the six presentation modes a running task's stdout/stderr can be routed
// through. The per-task state tracking and throttled-update pattern are
// grounded on the teacher's internal/ui Bubble Tea reporter
// (ThrottledReporter, taskState); the "replacing" mode reuses that same
// tea.Program approach instead of the teacher's resource-install view.
package outrouter

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// Styles mirror the teacher's internal/ui/applystyle.go palette, reused
// here for the replacing-mode task status view instead of resource-apply
// layers.
var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // light cyan
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))  // green
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))  // red
	nameStyle    = lipgloss.NewStyle().Bold(true)
)

// Mode selects one of the six presentation behaviours (§4.10).
type Mode string

const (
	ModeInterleave Mode = "interleave"
	ModePrefix     Mode = "prefix"
	ModeKeepOrder  Mode = "keep_order"
	ModeReplacing  Mode = "replacing"
	ModeQuiet      Mode = "quiet"
	ModeSilent     Mode = "silent"
)

// palette is the fixed set of colours line prefixes cycle through, chosen
// deterministically by hashing the task name (§4.10 closing paragraph).
var palette = []color.Attribute{
	color.FgCyan, color.FgMagenta, color.FgYellow, color.FgGreen,
	color.FgBlue, color.FgRed,
}

// colorFor deterministically maps a task name to one palette colour.
func colorFor(name string) *color.Color {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*31 + uint32(name[i])
	}
	return color.New(palette[int(h)%len(palette)])
}

// SilentStreams mirrors a task's `silent = "stdout" | "stderr" | true`
// field (§4.10): which streams to drop even when the overall mode prints.
type SilentStreams struct {
	Stdout bool
	Stderr bool
}

// Router routes output lines from concurrently running tasks according to
// Mode. It is safe for concurrent use by multiple tasks' goroutines.
type Router struct {
	mode Mode
	out  io.Writer

	mu      sync.Mutex
	order   []string            // task-start order, for keep_order flush
	buffers map[string][]string // per-task buffered lines, keep_order only
	done    map[string]bool

	program *tea.Program // only set in ModeReplacing
}

// New creates a Router for mode. It does not choose the mode itself: §4.10's
// "interleave chosen automatically when jobs==1 or is_linear()" rule is
// applied by callers, which pass the resulting Mode.
func New(mode Mode, out io.Writer) *Router {
	r := &Router{mode: mode, out: out, buffers: map[string][]string{}, done: map[string]bool{}}
	if mode == ModeReplacing {
		r.program = tea.NewProgram(newReplacingModel(), tea.WithOutput(out))
	}
	return r
}

// Start runs the Bubble Tea program for ModeReplacing; callers must call
// this before routing any lines and Stop after the run completes. It is a
// no-op for every other mode.
func (r *Router) Start() {
	if r.program == nil {
		return
	}
	go r.program.Run() //nolint:errcheck // best-effort UI; task failures surface through the scheduler, not the UI
}

// Stop tears down the Bubble Tea program, if running.
func (r *Router) Stop() {
	if r.program != nil {
		r.program.Quit()
	}
}

// TaskStarted registers a task with the router, establishing its position
// in start order for ModeKeepOrder.
func (r *Router) TaskStarted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
	if r.program != nil {
		r.program.Send(taskStartedMsg{name: name})
	}
}

// Line routes one output line from task name on the given stream
// ("stdout" or "stderr"), honouring silent.
func (r *Router) Line(name, stream, line string, silent SilentStreams) {
	if r.mode == ModeSilent {
		return
	}
	if (stream == "stdout" && silent.Stdout) || (stream == "stderr" && silent.Stderr) {
		return
	}

	switch r.mode {
	case ModeInterleave, ModeQuiet:
		fmt.Fprintln(r.out, line)
	case ModePrefix:
		c := colorFor(name)
		fmt.Fprintln(r.out, c.Sprintf("[%s]", name)+" "+line)
	case ModeKeepOrder:
		r.mu.Lock()
		r.buffers[name] = append(r.buffers[name], line)
		r.mu.Unlock()
	case ModeReplacing:
		if r.program != nil {
			r.program.Send(taskLineMsg{name: name, line: line})
		}
	}
}

// TaskFinished marks a task done. In ModeKeepOrder this flushes every
// finished task whose predecessors (in start order) have already flushed,
// preserving task-start order in the final output (§4.10).
func (r *Router) TaskFinished(name string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[name] = true

	if r.mode == ModeKeepOrder {
		r.flushReadyLocked()
	}
	if r.program != nil {
		r.program.Send(taskDoneMsg{name: name, failed: failed})
	}
}

func (r *Router) flushReadyLocked() {
	for _, name := range r.order {
		if !r.done[name] {
			break // earlier task hasn't finished yet; stop to preserve order
		}
		lines, seen := r.buffers[name]
		if !seen {
			continue
		}
		delete(r.buffers, name)
		for _, line := range lines {
			fmt.Fprintln(r.out, line)
		}
	}
}

// Banner prints the "› running X" command banner, suppressed in quiet and
// silent modes (§4.10).
func (r *Router) Banner(msg string) {
	if r.mode == ModeQuiet || r.mode == ModeSilent {
		return
	}
	fmt.Fprintln(r.out, "› "+msg)
}

// replacingModel is a minimal Bubble Tea model rendering one in-place
// progress line per running task (§4.10 "replacing" mode).
type replacingModel struct {
	order  []string
	status map[string]string
	state  map[string]string // "running", "done", "failed"
	start  map[string]time.Time
}

func newReplacingModel() *replacingModel {
	return &replacingModel{status: map[string]string{}, state: map[string]string{}, start: map[string]time.Time{}}
}

type taskStartedMsg struct{ name string }
type taskLineMsg struct{ name, line string }
type taskDoneMsg struct {
	name   string
	failed bool
}

func (m *replacingModel) Init() tea.Cmd { return nil }

func (m *replacingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case taskStartedMsg:
		m.order = append(m.order, ev.name)
		m.status[ev.name] = "running"
		m.state[ev.name] = "running"
		m.start[ev.name] = time.Now()
	case taskLineMsg:
		m.status[ev.name] = ev.line
	case taskDoneMsg:
		if ev.failed {
			m.state[ev.name] = "failed"
		} else {
			m.state[ev.name] = "done"
		}
	}
	return m, nil
}

func (m *replacingModel) View() string {
	var out string
	for _, name := range m.order {
		var mark string
		switch m.state[name] {
		case "done":
			mark = doneStyle.Render("✓")
		case "failed":
			mark = failStyle.Render("✗")
		default:
			mark = runningStyle.Render("=>")
		}
		out += fmt.Sprintf("%s %s: %s\n", mark, nameStyle.Render(name), m.status[name])
	}
	return out
}
