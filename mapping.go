package flagset

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Flag declares one named flag. Bits is conventionally a single power of
// two, but a flag may alias several bits at once.
type Flag struct {
	Name string `toml:"name"`
	Bits uint64 `toml:"bits"`
}

// Mapping is the ordered flag declaration table of a FlagSet.
type Mapping []Flag

type mappingFile struct {
	Flags []Flag `toml:"flag"`
}

// ParseMapping reads a mapping from TOML data shaped as an array of tables,
// one per flag, in declaration order:
//
//	[[flag]]
//	name = "nice"
//	bits = 1
func ParseMapping(data []byte) (Mapping, error) {
	var mf mappingFile
	if err := toml.Unmarshal(data, &mf); err != nil {
		return nil, errors.Wrap(err, "failed to parse mapping")
	}
	if len(mf.Flags) == 0 {
		return nil, errors.Wrap(ErrInvalidMapping, "no flags declared")
	}
	return Mapping(mf.Flags), nil
}

// LoadMapping reads a TOML mapping file from disk.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read mapping file %s", path)
	}
	return ParseMapping(data)
}
