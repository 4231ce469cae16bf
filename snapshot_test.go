package flagset

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/pkg/errors"
	assertion "github.com/stretchr/testify/assert"
)

func reChecksum(snapshot, payload []byte) {
	binary.BigEndian.PutUint32(snapshot[20:24], crc32.ChecksumIEEE(payload))
}

func TestCommonPrefix(t *testing.T) {
	assert := assertion.New(t)
	assert.Equal(uint8(0), commonPrefix("", ""))
	assert.Equal(uint8(0), commonPrefix("abcde", ""))
	assert.Equal(uint8(0), commonPrefix("", "abcde"))
	assert.Equal(uint8(5), commonPrefix("abcde", "abcdefg"))
	assert.Equal(uint8(5), commonPrefix("abcdefg", "abcde"))
	assert.Equal(uint8(0), commonPrefix("xbcde", "abcde"))
}

func snapshotMapping() Mapping {
	// shared prefixes exercise the relative name encoding
	return Mapping{
		{Name: "page_index", Bits: 1},
		{Name: "page_data", Bits: 2},
		{Name: "page_full", Bits: 4},
		{Name: "compressed", Bits: 8},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	assert := assertion.New(t)
	for _, alg := range []CompressAlgorithm{CompSnappy, CompNone, CompLz4} {
		fs, err := New(5, snapshotMapping())
		assert.NoError(err)

		data, err := fs.Snapshot(alg)
		assert.NoError(err)
		t.Log(alg, len(data), data)

		fs2, err := RestoreSnapshot(data)
		assert.NoError(err)
		assert.Equal(fs.Value(), fs2.Value())
		assert.Equal(fs.Names(), fs2.Names())
		assert.Equal(fs.Map(), fs2.Map())

		bits, ok := fs2.BitOf("compressed")
		assert.True(ok)
		assert.Equal(uint64(8), bits)
	}
}

func TestSnapshotUnknownAlgorithm(t *testing.T) {
	assert := assertion.New(t)
	fs, _ := New(0, snapshotMapping())
	data, err := fs.Snapshot(CompressAlgorithm(42))
	assert.Nil(data)
	assert.Error(err)
}

func TestRestoreSnapshotBadData(t *testing.T) {
	assert := assertion.New(t)
	fs, _ := New(5, snapshotMapping())
	data, err := fs.Snapshot(CompSnappy)
	assert.NoError(err)

	// truncated header
	_, err = RestoreSnapshot(data[:snapHeaderSize-1])
	assert.True(errors.Is(err, ErrBadMagic))

	// wrong magic
	bad := append([]byte(nil), data...)
	bad[0] ^= 0xFF
	_, err = RestoreSnapshot(bad)
	assert.True(errors.Is(err, ErrBadMagic))

	// unsupported version
	bad = append([]byte(nil), data...)
	bad[5] = 99
	_, err = RestoreSnapshot(bad)
	assert.True(errors.Is(err, ErrBadVersion))

	// flipped payload byte
	bad = append([]byte(nil), data...)
	bad[len(bad)-1] ^= 0xFF
	_, err = RestoreSnapshot(bad)
	assert.True(errors.Is(err, ErrBadChecksum))
}

func TestRestoreSnapshotHostileLengths(t *testing.T) {
	assert := assertion.New(t)

	// a record declaring a name length far beyond the payload must decode
	// to an error, not an allocation attempt
	payload := []byte{0}                    // flag byte
	payload = appendUvarint(payload, 1<<63) // name length
	payload = append(payload, 'x', 1)       // pretend name byte + bits
	data := hostileSnapshot(1, 0, payload)
	fs, err := RestoreSnapshot(data)
	assert.Nil(fs)
	assert.Error(err)
	assert.Contains(err.Error(), "name length")

	// a record count far beyond what the payload could hold must be
	// rejected before any per-record allocation
	payload = []byte{0, 1, 'x', 1} // one valid record: flag, len, name, bits
	data = hostileSnapshot(0xFFFFFFFF, 0, payload)
	fs, err = RestoreSnapshot(data)
	assert.Nil(fs)
	assert.Error(err)
	assert.Contains(err.Error(), "record count")
}

func appendUvarint(dst []byte, v uint64) []byte {
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, v)
	return append(dst, tmp[:n]...)
}

// hostileSnapshot assembles an uncompressed snapshot with a valid header
// and checksum around an arbitrary record payload.
func hostileSnapshot(count uint32, value uint64, payload []byte) []byte {
	data := make([]byte, snapHeaderSize, snapHeaderSize+len(payload))
	binary.BigEndian.PutUint32(data[0:4], snapMagic)
	binary.BigEndian.PutUint16(data[4:6], snapVersion)
	binary.BigEndian.PutUint16(data[6:8], uint16(CompNone))
	binary.BigEndian.PutUint32(data[8:12], count)
	binary.BigEndian.PutUint64(data[12:20], value)
	data = append(data, payload...)
	reChecksum(data, data[snapHeaderSize:])
	return data
}

func TestRestoreSnapshotTruncatedPayload(t *testing.T) {
	assert := assertion.New(t)
	fs, _ := New(5, snapshotMapping())
	data, err := fs.Snapshot(CompNone)
	assert.NoError(err)

	// drop the tail of the payload and fix the checksum so the failure
	// comes from record decoding, not the integrity check
	bad := data[:len(data)-3]
	payload := bad[snapHeaderSize:]
	reChecksum(bad, payload)
	_, err = RestoreSnapshot(bad)
	assert.Error(err)
}
