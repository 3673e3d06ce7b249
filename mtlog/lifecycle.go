package mtlog

// UIHooks is a struct of function callbacks controlling how a run reports
// progress and errors to the user. It is a struct of fields rather than an
// interface so a caller can override only the one or two callbacks it cares
// about, leaving safe no-op defaults for the rest.
type UIHooks struct {
	Info  func(string)
	Warn  func(string)
	Error func(string)
}

// NewUIHooks returns hooks that print nothing; every field is a safe no-op.
func NewUIHooks() *UIHooks {
	return &UIHooks{
		Info:  func(string) {},
		Warn:  func(string) {},
		Error: func(string) {},
	}
}

var lcm *UIHooks

// Lifecycle returns the process-wide UI hooks, installing safe no-op
// defaults on first use.
func Lifecycle() *UIHooks {
	if lcm == nil {
		lcm = NewUIHooks()
	}
	return lcm
}

// SetLifecycle installs the process-wide UI hooks a CLI command wires up at
// startup (e.g. printing Info to stdout and Warn/Error to stderr).
func SetLifecycle(hooks *UIHooks) {
	lcm = hooks
}
