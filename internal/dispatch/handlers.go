package dispatch

import "context"

// HandlerFn is the opaque task body spec.md §1 keeps out of the
// core's scope: `(task_name, params) → result | err`. ctx carries the
// request's deadline for inline sync calls, or the async job's
// per-task deadline and advisory cancellation for queued calls.
type HandlerFn func(ctx context.Context, params map[string]string) (string, error)

// HandlerEntry is one row of the Handler Table: a task name, its
// required parameters, and the function that executes it.
type HandlerEntry struct {
	Name           string
	RequiredParams []string
	Fn             HandlerFn
}

// HandlerTable maps task_name to its registered entry.
type HandlerTable struct {
	entries map[string]*HandlerEntry
}

// NewHandlerTable creates an empty table.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{entries: make(map[string]*HandlerEntry)}
}

// Register adds or replaces the entry for name.
func (t *HandlerTable) Register(entry HandlerEntry) {
	t.entries[entry.Name] = &entry
}

// Lookup returns the entry for name, or false if unregistered.
func (t *HandlerTable) Lookup(name string) (*HandlerEntry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Names returns every registered task name, for the /help route.
func (t *HandlerTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	return names
}

// validateParams checks every required parameter is present,
// returning a MissingParameter error naming the first one missing.
func validateParams(entry *HandlerEntry, params map[string]string) error {
	for _, p := range entry.RequiredParams {
		if _, ok := params[p]; !ok {
			return newError(KindMissingParameter, "missing '"+p+"' parameter")
		}
	}
	return nil
}
