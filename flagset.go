// Package flagset exposes an integer register as a set of named boolean
// flags, driven by a fixed name->bit mapping supplied at construction.
package flagset

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

var (
	ErrUnknownFlag    = errors.New("unknown flag")
	ErrInvalidMapping = errors.New("invalid mapping")
)

// FlagSet is a named boolean view over the bits of a uint64 register.
//
// Two names may map to overlapping bits; in that case toggling either one
// rewrites the shared bits (last write wins). Bits of the register not
// covered by any mapping entry are preserved by Get/Set but cleared by Reset.
//
// A FlagSet is not safe for concurrent mutation; callers sharing one across
// goroutines must serialize access themselves.
type FlagSet struct {
	value   uint64
	mapping Mapping
	index   map[string]uint64
}

// New builds a FlagSet over initial. The mapping's declaration order is kept
// for serialization. Duplicate or empty names fail with ErrInvalidMapping.
func New(initial uint64, m Mapping) (*FlagSet, error) {
	index := make(map[string]uint64, len(m))
	for _, f := range m {
		if f.Name == "" {
			return nil, errors.Wrap(ErrInvalidMapping, "empty flag name")
		}
		if _, dup := index[f.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidMapping, "duplicate flag name %q", f.Name)
		}
		index[f.Name] = f.Bits
	}
	return &FlagSet{value: initial, mapping: m, index: index}, nil
}

// Get reports whether every bit of the named flag is set in the register.
// A flag whose bits are only partially set reads as false.
func (fs *FlagSet) Get(name string) (bool, error) {
	bits, ok := fs.index[name]
	if !ok {
		return false, errors.Wrapf(ErrUnknownFlag, "get %q", name)
	}
	return fs.value&bits == bits, nil
}

// Set turns the named flag on or off, mutating the register in place.
func (fs *FlagSet) Set(name string, on bool) error {
	bits, ok := fs.index[name]
	if !ok {
		return errors.Wrapf(ErrUnknownFlag, "set %q", name)
	}
	if on {
		fs.value |= bits
	} else {
		fs.value &^= bits
	}
	return nil
}

// Has reports whether name is declared in the mapping. It never fails.
func (fs *FlagSet) Has(name string) bool {
	_, ok := fs.index[name]
	return ok
}

// Reset clears the whole register, unmapped bits included.
func (fs *FlagSet) Reset() {
	fs.value = 0
}

// Value returns the raw register, e.g. for writing back to an integer column.
func (fs *FlagSet) Value() uint64 {
	return fs.value
}

// BitOf returns the bit value declared for name. Unlike Get/Set it does not
// fail on unknown names; the second return mirrors a map lookup.
func (fs *FlagSet) BitOf(name string) (uint64, bool) {
	bits, ok := fs.index[name]
	return bits, ok
}

// Names returns the declared flag names in mapping order.
func (fs *FlagSet) Names() []string {
	names := make([]string, len(fs.mapping))
	for i, f := range fs.mapping {
		names[i] = f.Name
	}
	return names
}

// Map returns one boolean entry per declared flag. Iteration order of the
// result is undefined; use MarshalJSON or Names where order matters.
func (fs *FlagSet) Map() map[string]bool {
	m := make(map[string]bool, len(fs.mapping))
	for _, f := range fs.mapping {
		m[f.Name] = fs.value&f.Bits == f.Bits
	}
	return m
}

// ActiveMap returns name -> bit value for the flags currently on.
func (fs *FlagSet) ActiveMap() map[string]uint64 {
	m := make(map[string]uint64)
	for _, f := range fs.mapping {
		if fs.value&f.Bits == f.Bits {
			m[f.Name] = f.Bits
		}
	}
	return m
}

// MarshalJSON emits the full export: a JSON object with one boolean member
// per declared flag, in mapping order.
func (fs *FlagSet) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte('{')
	for i, f := range fs.mapping {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode flag name %q", f.Name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatBool(fs.value&f.Bits == f.Bits))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ActiveJSON emits the active-only export: a JSON object mapping each flag
// currently on to its bit value, in mapping order.
func (fs *FlagSet) ActiveJSON() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte('{')
	first := true
	for _, f := range fs.mapping {
		if fs.value&f.Bits != f.Bits {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode flag name %q", f.Name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatUint(f.Bits, 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
