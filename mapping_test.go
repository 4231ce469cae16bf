package flagset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	assertion "github.com/stretchr/testify/assert"
)

const testMappingTOML = `
[[flag]]
name = "nice"
bits = 1

[[flag]]
name = "cats"
bits = 2

[[flag]]
name = "code"
bits = 4
`

func TestParseMapping(t *testing.T) {
	assert := assertion.New(t)
	m, err := ParseMapping([]byte(testMappingTOML))
	assert.NoError(err)
	assert.Equal(testMapping(), m)
}

func TestParseMappingEmpty(t *testing.T) {
	assert := assertion.New(t)
	m, err := ParseMapping(nil)
	assert.Nil(m)
	assert.True(errors.Is(err, ErrInvalidMapping))
}

func TestParseMappingBadTOML(t *testing.T) {
	assert := assertion.New(t)
	m, err := ParseMapping([]byte(`[[flag]` + "\n"))
	assert.Nil(m)
	assert.Error(err)
	assert.False(errors.Is(err, ErrInvalidMapping))
}

func TestLoadMapping(t *testing.T) {
	assert := assertion.New(t)
	path := filepath.Join(t.TempDir(), "flags.toml")
	assert.NoError(os.WriteFile(path, []byte(testMappingTOML), 0644))

	m, err := LoadMapping(path)
	assert.NoError(err)
	assert.Equal(testMapping(), m)

	m, err = LoadMapping(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Nil(m)
	assert.Error(err)
}
