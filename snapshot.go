package flagset

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

const (
	// snapMagic = "FSDB" in bigEndian
	snapMagic   uint32 = 0x46534442
	snapVersion uint16 = 1

	// magic + version + compression + count + value + checksum
	snapHeaderSize = 4 + 2 + 2 + 4 + 8 + 4
)

var (
	ErrBadMagic    = errors.New("not a flagset snapshot")
	ErrBadVersion  = errors.New("unsupported snapshot version")
	ErrBadChecksum = errors.New("snapshot checksum mismatch")
)

type recFlag uint8

const (
	// record name shares a prefix with the previous record's name
	recNamePrefixed recFlag = 1 << iota
)

// Snapshot serializes the register value and the full mapping so that the
// FlagSet can be rebuilt without access to its original declaration.
func (fs *FlagSet) Snapshot(alg CompressAlgorithm) ([]byte, error) {
	compress, err := compressorFor(alg)
	if err != nil {
		return nil, err
	}
	payload := encodeRecords(fs.mapping)
	if compress != nil {
		payload = compress(payload)
	}

	head := make([]byte, snapHeaderSize)
	binary.BigEndian.PutUint32(head[0:4], snapMagic)
	binary.BigEndian.PutUint16(head[4:6], snapVersion)
	binary.BigEndian.PutUint16(head[6:8], uint16(alg))
	binary.BigEndian.PutUint32(head[8:12], uint32(len(fs.mapping)))
	binary.BigEndian.PutUint64(head[12:20], fs.value)
	binary.BigEndian.PutUint32(head[20:24], crc32.ChecksumIEEE(payload))
	return append(head, payload...), nil
}

// RestoreSnapshot rebuilds a FlagSet from Snapshot output.
func RestoreSnapshot(data []byte) (*FlagSet, error) {
	if len(data) < snapHeaderSize {
		return nil, errors.Wrap(ErrBadMagic, "data shorter than snapshot header")
	}
	if binary.BigEndian.Uint32(data[0:4]) != snapMagic {
		return nil, ErrBadMagic
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != snapVersion {
		return nil, errors.Wrapf(ErrBadVersion, "version %d", v)
	}
	alg := CompressAlgorithm(binary.BigEndian.Uint16(data[6:8]))
	count := binary.BigEndian.Uint32(data[8:12])
	value := binary.BigEndian.Uint64(data[12:20])
	checksum := binary.BigEndian.Uint32(data[20:24])

	payload := data[snapHeaderSize:]
	if crc32.ChecksumIEEE(payload) != checksum {
		return nil, ErrBadChecksum
	}
	decompress, err := deCompressorFor(alg)
	if err != nil {
		return nil, err
	}
	if decompress != nil {
		if payload, err = decompress(payload); err != nil {
			return nil, errors.Wrap(err, "failed to decompress snapshot payload")
		}
	}
	m, err := decodeRecords(payload, count)
	if err != nil {
		return nil, err
	}
	return New(value, m)
}

// encodeRecords writes one record per mapping entry, in mapping order:
// flag byte, optional prefix length, uvarint name length, name bytes,
// uvarint bit value. Adjacent names often share a prefix (page_index,
// page_data, ...), so each name is stored relative to the previous one.
func encodeRecords(m Mapping) []byte {
	buf := bytes.NewBuffer(nil)
	tmp := make([]byte, binary.MaxVarintLen64)
	var prev string
	for _, f := range m {
		var flag recFlag
		prefixLen := commonPrefix(prev, f.Name)
		if prefixLen > 0 {
			flag |= recNamePrefixed
		}
		name := f.Name[prefixLen:]
		buf.WriteByte(byte(flag))
		if prefixLen > 0 {
			buf.WriteByte(prefixLen)
		}
		n := binary.PutUvarint(tmp, uint64(len(name)))
		buf.Write(tmp[:n])
		buf.WriteString(name)
		n = binary.PutUvarint(tmp, f.Bits)
		buf.Write(tmp[:n])
		prev = f.Name
	}
	return buf.Bytes()
}

// a record is at least flag byte + name length + bit value
const minRecordSize = 3

func decodeRecords(data []byte, count uint32) (Mapping, error) {
	if uint64(count)*minRecordSize > uint64(len(data)) {
		return nil, errors.Errorf("record count %d exceeds payload size %d", count, len(data))
	}
	reader := bytes.NewReader(data)
	m := make(Mapping, 0, count)
	var prev string
	for i := uint32(0); i < count; i++ {
		_flag, err := reader.ReadByte()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read record %d flag", i)
		}
		flag := recFlag(_flag)
		var prefix string
		if flag&recNamePrefixed != 0 {
			_prefixLen, err := reader.ReadByte()
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read record %d prefix length", i)
			}
			prefixLen := int(_prefixLen)
			if len(prev) < prefixLen {
				return nil, errors.Errorf("record %d: prefix longer than previous name", i)
			}
			prefix = prev[:prefixLen]
		}
		nameLen, err := binary.ReadUvarint(reader)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read record %d name length", i)
		}
		// length fields come from the file; never trust them past the
		// remaining payload
		if nameLen > uint64(reader.Len()) {
			return nil, errors.Errorf("record %d: name length %d exceeds remaining payload %d", i, nameLen, reader.Len())
		}
		name := make([]byte, nameLen)
		if _, err = io.ReadFull(reader, name); err != nil {
			return nil, errors.Wrapf(err, "failed to read record %d name", i)
		}
		bits, err := binary.ReadUvarint(reader)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read record %d bit value", i)
		}
		full := prefix + string(name)
		m = append(m, Flag{Name: full, Bits: bits})
		prev = full
	}
	return m, nil
}

// commonPrefix returns the length of the shared leading bytes of a and b,
// capped at 255 so it fits the single-byte prefix field.
func commonPrefix(a, b string) (length uint8) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return
		}
		length++
		if length == 255 {
			return
		}
	}
	return
}
