package rerrors

import "strings"

// DependencyError reports a problem in the task dependency graph.
type DependencyError struct {
	Base    Error
	Task    string
	Missing []string
	Cycle   []string
}

// NewCircularDependencyError builds the error for §4.8's cycle detection.
// cycle lists node names with the first and last entries equal.
func NewCircularDependencyError(cycle []string) *DependencyError {
	return &DependencyError{
		Base: Error{
			Kind:    KindCircularDependency,
			Message: "circular task dependency detected",
			Hint:    "break the cycle by removing one of the depends/depends_post/wait_for edges",
		},
		Cycle: cycle,
	}
}

// NewMissingTaskReferenceError builds the error for an unresolved depends/run reference.
func NewMissingTaskReferenceError(task string, missing []string) *DependencyError {
	return &DependencyError{
		Base: Error{
			Kind:    KindMissingTaskReference,
			Message: "task references an undefined task",
			Hint:    "define the missing task(s): " + strings.Join(missing, ", "),
		},
		Task:    task,
		Missing: missing,
	}
}

func (e *DependencyError) Error() string { return e.Base.Error() }
func (e *DependencyError) Unwrap() error { return e.Base.Cause }

func (e *DependencyError) Is(target error) bool {
	t, ok := target.(*DependencyError)
	if !ok {
		return false
	}
	return e.Base.Kind == t.Base.Kind
}

// IsCycle reports whether this error represents a circular dependency.
func (e *DependencyError) IsCycle() bool { return len(e.Cycle) > 0 }
