// Package template renders the templated strings embedded in config values
// (component C). Rendering is side-effect free: it only reads the fixed
// context (config_root, cwd, env, resolved tool versions) handed to it.
//
// The surface syntax is deliberately small — {{ env.KEY }}, {{ config_root }},
// {{ cwd }}, {{ tool_versions.KEY }} — which is not how Go's text/template
// exposes map/field access (it would require a leading dot). Render rewrites
// that surface syntax into ordinary pipeline calls before handing the
// string to text/template, so the actual evaluation engine is the standard
// library's, not a bespoke interpreter.
package template

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"

	"github.com/rungtool/rung/internal/rerrors"
)

// Context is the fixed, read-only evaluation context for a single render.
type Context struct {
	ConfigRoot   string
	Cwd          string
	Env          map[string]string
	ToolVersions map[string]string // backend short name -> resolved version, only populated in the "Both" resolver phase
}

var (
	envRef     = regexp.MustCompile(`\benv\.([A-Za-z_][A-Za-z0-9_]*)\b`)
	toolRef    = regexp.MustCompile(`\btool_versions\.([A-Za-z_][A-Za-z0-9_.\-]*)\b`)
	bareCwd    = regexp.MustCompile(`\bcwd\b`)
	bareRoot   = regexp.MustCompile(`\bconfig_root\b`)
)

func rewrite(src string) string {
	src = envRef.ReplaceAllString(src, `(env "$1")`)
	src = toolRef.ReplaceAllString(src, `(toolVersion "$1")`)
	src = bareCwd.ReplaceAllString(src, "cwd")
	src = bareRoot.ReplaceAllString(src, "configRoot")
	return src
}

// ArgSpec is one arg()/flag()/option() usage-spec entry recorded while
// rendering a task's run script (§4.7).
type ArgSpec struct {
	Func    string // "arg", "flag", or "option"
	Name    string
	Default string
	Help    string
}

// Recorder collects ArgSpec entries produced by arg()/flag()/option() calls
// during a single render, for callers (the task loader) that need the
// derived usage::Spec alongside the rendered text.
type Recorder struct {
	Specs []ArgSpec
}

func (r *Recorder) record(fn, name string, opts ...string) string {
	spec := ArgSpec{Func: fn, Name: name}
	if len(opts) > 0 {
		spec.Default = opts[0]
	}
	if len(opts) > 1 {
		spec.Help = opts[1]
	}
	r.Specs = append(r.Specs, spec)
	return fmt.Sprintf("MISE_TASK_ARG:%s:MISE_TASK_ARG", name)
}

// Render renders src against ctx. missingKeyWarn, when non-nil, is called
// for every env.KEY / tool_versions.KEY reference that resolves to nothing
// (§4.4: "Missing-var references are warned, not errored, unless the
// resolver is asked to be strict").
func Render(src string, ctx Context, strict bool, missingKeyWarn func(key string)) (string, error) {
	return RenderWithArgs(src, ctx, strict, missingKeyWarn, nil)
}

// RenderWithArgs is Render plus arg()/flag()/option() support; rec may be
// nil when the caller doesn't need the derived usage spec (e.g. env values).
func RenderWithArgs(src string, ctx Context, strict bool, missingKeyWarn func(key string), rec *Recorder) (string, error) {
	funcs := template.FuncMap{
		"env": func(key string) (string, error) {
			v, ok := ctx.Env[key]
			if !ok {
				if missingKeyWarn != nil {
					missingKeyWarn(key)
				}
				if strict {
					return "", fmt.Errorf("undefined env var %q", key)
				}
				return "", nil
			}
			return v, nil
		},
		"toolVersion": func(key string) (string, error) {
			v, ok := ctx.ToolVersions[key]
			if !ok {
				if missingKeyWarn != nil {
					missingKeyWarn(key)
				}
				if strict {
					return "", fmt.Errorf("unresolved tool version %q", key)
				}
				return "", nil
			}
			return v, nil
		},
		"configRoot": func() string { return ctx.ConfigRoot },
		"cwd":        func() string { return ctx.Cwd },
		"arg": func(name string, opts ...string) string {
			if rec == nil {
				return fmt.Sprintf("MISE_TASK_ARG:%s:MISE_TASK_ARG", name)
			}
			return rec.record("arg", name, opts...)
		},
		"flag": func(name string, opts ...string) string {
			if rec == nil {
				return fmt.Sprintf("MISE_TASK_ARG:%s:MISE_TASK_ARG", name)
			}
			return rec.record("flag", name, opts...)
		},
		"option": func(name string, opts ...string) string {
			if rec == nil {
				return fmt.Sprintf("MISE_TASK_ARG:%s:MISE_TASK_ARG", name)
			}
			return rec.record("option", name, opts...)
		},
	}

	tmpl, err := template.New("value").Funcs(funcs).Parse(rewrite(src))
	if err != nil {
		return "", rerrors.Wrap(rerrors.KindTemplateError, "failed to parse template", err).WithDetail("source", src)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return "", rerrors.Wrap(rerrors.KindTemplateError, "failed to render template", err).WithDetail("source", src)
	}
	return buf.String(), nil
}

// HasTemplate reports whether s contains a {{ ... }} template expression,
// used by loaders to skip the rewrite/parse cost for plain literal values.
func HasTemplate(s string) bool {
	return bytes.Contains([]byte(s), []byte("{{"))
}
