// Package task implements the Task model (component J, §3.8, §4.7): merging
// a raw configfile.TaskSpec with any templates it extends, rendering its run
// script(s) against the template context, and deriving the task's usage spec
// from arg()/flag()/option() calls recorded during that render.
package task

import (
	"fmt"
	"runtime"

	"dario.cat/mergo"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/rerrors"
	"github.com/rungtool/rung/internal/template"
)

// Task is a fully resolved task: extends applied, ready to run.
type Task struct {
	Spec      configfile.TaskSpec
	UsageSpec []template.ArgSpec
}

// MonorepoName renders the "//pkg/sub:taskname" form used when a task is
// defined in a monorepo subpackage (§3.8, glossary "Monorepo task name").
func MonorepoName(pkgPath, name string) string {
	if pkgPath == "" || pkgPath == "." {
		return name
	}
	return fmt.Sprintf("//%s:%s", pkgPath, name)
}

// Resolve merges spec with the templates named in its Extends chain
// (outermost template first, spec's own fields winning) and returns the
// fully merged Task. templates is the pool of named templates visible to
// this config graph (configgraph.Graph.Templates()).
func Resolve(spec configfile.TaskSpec, templates map[string]configfile.TaskSpec) (*Task, error) {
	merged, err := mergeExtends(spec, templates, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return &Task{Spec: merged}, nil
}

// mergeExtends deep-merges spec onto each of its extended templates in
// order, detecting cycles in the extends chain itself.
func mergeExtends(spec configfile.TaskSpec, templates map[string]configfile.TaskSpec, visiting map[string]bool) (configfile.TaskSpec, error) {
	if len(spec.Extends) == 0 {
		return spec, nil
	}

	base := configfile.TaskSpec{}
	for _, name := range spec.Extends {
		if visiting[name] {
			return spec, rerrors.New(rerrors.KindMissingTaskReference, "cyclic task template extends chain").WithDetail("template", name)
		}
		tmpl, ok := templates[name]
		if !ok {
			return spec, rerrors.NewMissingTaskReferenceError(spec.Name, []string{name})
		}
		visiting[name] = true
		resolvedTmpl, err := mergeExtends(tmpl, templates, visiting)
		visiting[name] = false
		if err != nil {
			return spec, err
		}
		if err := mergo.Merge(&base, resolvedTmpl, mergo.WithOverride); err != nil {
			return spec, rerrors.Wrap(rerrors.KindConfigParse, "failed to merge task template", err)
		}
	}

	// spec's own (non-zero) fields take precedence over every template it extends.
	if err := mergo.Merge(&base, spec, mergo.WithOverride); err != nil {
		return spec, rerrors.Wrap(rerrors.KindConfigParse, "failed to merge task with extends", err)
	}
	base.Extends = nil
	return base, nil
}

// RunScripts returns the run entries for the current platform: RunWindows
// when running on Windows and non-empty, else Run (§3.8).
func (t *Task) RunScripts() []configfile.RunEntry {
	if runtime.GOOS == "windows" && len(t.Spec.RunWindows) > 0 {
		return t.Spec.RunWindows
	}
	return t.Spec.Run
}

// RenderScripts renders every RunScript entry's Script field against ctx,
// recording any arg()/flag()/option() usage spec along the way (§4.7).
func (t *Task) RenderScripts(ctx template.Context, strict bool, warn func(string)) ([]string, error) {
	rec := &template.Recorder{}
	var out []string
	for _, entry := range t.RunScripts() {
		switch entry.Kind {
		case configfile.RunScript:
			rendered, err := template.RenderWithArgs(entry.Script, ctx, strict, warn, rec)
			if err != nil {
				return nil, err
			}
			out = append(out, rendered)
		case configfile.RunSingleTask, configfile.RunTaskGroup:
			// sub-task references are expanded by the scheduler, which has
			// the full task set available; nothing to render here.
		}
	}
	t.UsageSpec = rec.Specs
	return out, nil
}

// Depends returns the task's combined depends + wait_for predecessor names:
// tasks that must finish before this one starts (§4.8 step 3: these produce
// forward edges self -> dep). depends_post is tracked separately since it
// produces a reverse edge (dep -> self: post-tasks run after their owner).
func (t *Task) Depends() []string {
	out := make([]string, 0, len(t.Spec.Depends)+len(t.Spec.WaitFor))
	out = append(out, t.Spec.Depends...)
	out = append(out, t.Spec.WaitFor...)
	return out
}
