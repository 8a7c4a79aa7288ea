package figures

// Entry is what the registry knows about one resolved image path.
type Entry struct {
	Label  string
	Number int
}

// Registry is the processed-figure table of one filter run. Resolved paths
// are registered before their label is known; Number is zero until a label
// is attached.
type Registry struct {
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Seen reports whether path has been registered.
func (r *Registry) Seen(path string) bool {
	_, ok := r.entries[path]
	return ok
}

// Register records path without a label. Registering twice is a no-op.
func (r *Registry) Register(path string) {
	if _, ok := r.entries[path]; !ok {
		r.entries[path] = Entry{}
	}
}

// Label attaches label to path and numbers it with the current table size,
// registering path first if needed. A path that already carries a number
// keeps it.
func (r *Registry) Label(path, label string) int {
	r.Register(path)
	e := r.entries[path]
	if e.Number > 0 {
		return e.Number
	}
	e.Label, e.Number = label, len(r.entries)
	r.entries[path] = e
	return e.Number
}

// Get returns the entry for path.
func (r *Registry) Get(path string) (Entry, bool) {
	e, ok := r.entries[path]
	return e, ok
}

// Len is the number of registered paths.
func (r *Registry) Len() int {
	return len(r.entries)
}
