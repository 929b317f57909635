// Package installprogress renders a spinner bar per in-flight tool install,
// grounded on the teacher's internal/ui.ProgressManager delegation-spinner
// pattern (handleCommandStart/handleComplete/handleError), adapted from
// tomei's resource-apply events to toolresolve's install start/done hooks.
package installprogress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Reporter drives a progress bar per backend install; non-TTY output falls
// back to plain start/done lines instead of bars.
type Reporter struct {
	mu       sync.Mutex
	w        io.Writer
	isTTY    bool
	progress *mpb.Progress
	bars     map[string]*mpb.Bar
}

// New creates a Reporter writing to w.
func New(w io.Writer) *Reporter {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	r := &Reporter{w: w, isTTY: isTTY, bars: map[string]*mpb.Bar{}}
	if isTTY {
		r.progress = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	}
	return r
}

func key(backend, version string) string { return backend + "@" + version }

// Start reports that backend@version has begun installing.
func (r *Reporter) Start(backend, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(backend, version)
	if !r.isTTY {
		fmt.Fprintf(r.w, "installing %s\n", k)
		return
	}
	bar := r.progress.Add(0,
		mpb.SpinnerStyle(spinnerFrames...).Build(),
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(decor.Name(fmt.Sprintf(" installing %s ", k), decor.WC{W: 30, C: decor.DindentRight})),
		mpb.AppendDecorators(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}), decor.OnComplete(decor.Name(""), " done")),
	)
	r.bars[k] = bar
}

// Done reports that backend@version finished installing, successfully iff
// err is nil.
func (r *Reporter) Done(backend, version string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(backend, version)
	if !r.isTTY {
		if err != nil {
			fmt.Fprintf(r.w, "failed %s: %v\n", k, err)
		} else {
			fmt.Fprintf(r.w, "installed %s\n", k)
		}
		return
	}
	bar, ok := r.bars[k]
	if !ok {
		return
	}
	delete(r.bars, k)
	if err != nil {
		bar.Abort(true)
		fmt.Fprintf(r.w, "failed %s: %v\n", k, err)
		return
	}
	bar.SetTotal(1, true)
}

// Wait blocks until every bar has finished rendering.
func (r *Reporter) Wait() {
	if r.progress != nil {
		r.progress.Wait()
	}
}
