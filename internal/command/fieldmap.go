package command

import "errors"

// ErrShortField is returned when a fixed-width or envelope field runs past
// the end of the payload buffer.
var ErrShortField = errors.New("command: field runs past end of payload")

// ErrMalformedCommand is returned when a required delimiter (e.g. the ';'
// before a PAN's expiry/service-code tail) is missing from the payload.
var ErrMalformedCommand = errors.New("command: malformed command payload")

// ErrUnknownCommand is returned by Parse for a command code with no
// registered grammar.
type ErrUnknownCommand string

func (e ErrUnknownCommand) Error() string {
	return "command: unknown command code " + string(e)
}

// FieldMap is an ordered name->bytes mapping. Order is preserved for trace
// output; lookup by Get is by name and is the only access handlers use. It
// is shared between request parsing (grammar.go) and response assembly
// (package hsm), since both need the same "ordered, named bytes" shape.
type FieldMap struct {
	names  []string
	values map[string][]byte
}

// NewFieldMap returns an empty, ready to use FieldMap.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string][]byte)}
}

func newFieldMap() *FieldMap {
	return NewFieldMap()
}

// Set assigns name to value, appending name to the insertion order the
// first time it is seen.
func (f *FieldMap) Set(name string, value []byte) {
	if _, exists := f.values[name]; !exists {
		f.names = append(f.names, name)
	}
	f.values[name] = value
}

func (f *FieldMap) set(name string, value []byte) {
	f.Set(name, value)
}

// Get returns the named field and whether it was present.
func (f *FieldMap) Get(name string) ([]byte, bool) {
	v, ok := f.values[name]
	return v, ok
}

// MustGet returns the named field, or nil if absent. Handlers call this only
// for fields their grammar guarantees are always set.
func (f *FieldMap) MustGet(name string) []byte {
	return f.values[name]
}

// Names returns field names in insertion order.
func (f *FieldMap) Names() []string {
	return f.names
}

// Values returns each field's bytes in insertion order — exactly the order
// the wire grammar produced them in, which is also the order a response's
// result fields are concatenated in.
func (f *FieldMap) Values() [][]byte {
	out := make([][]byte, 0, len(f.names))
	for _, n := range f.names {
		out = append(out, f.values[n])
	}
	return out
}

// Request is a fully parsed request: its 2-letter command code, a
// human-readable description (for trace/log output only — lookup is always
// by field name), and the ordered field map produced by that command's
// grammar.
type Request struct {
	Command     string
	Description string
	Fields      *FieldMap
}
