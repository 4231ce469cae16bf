package flagset

import (
	"bytes"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

type CompressAlgorithm uint16

const (
	CompSnappy CompressAlgorithm = iota // default
	CompNone
	CompLz4
)

type Compressor func([]byte) []byte
type DeCompressor func([]byte) ([]byte, error)

var (
	SnappyCompress Compressor = func(in []byte) []byte {
		return snappy.Encode(nil, in)
	}
	SnappyDeCompress DeCompressor = func(in []byte) ([]byte, error) {
		return snappy.Decode(nil, in)
	}
)

var (
	Lz4Compress Compressor = func(in []byte) []byte {
		buf := &bytes.Buffer{}
		writer := lz4.NewWriter(buf)
		writer.NoChecksum = true
		if _, err := writer.Write(in); err != nil {
			panic(err)
		}
		_ = writer.Close()
		return buf.Bytes()
	}

	Lz4DeCompress DeCompressor = func(in []byte) ([]byte, error) {
		buf := &bytes.Buffer{}
		reader := lz4.NewReader(bytes.NewReader(in))
		_, err := buf.ReadFrom(reader)
		return buf.Bytes(), err
	}
)

// compressorFor maps a snapshot's declared algorithm to its Compressor.
// CompNone yields a nil Compressor, meaning the payload is stored raw.
func compressorFor(alg CompressAlgorithm) (Compressor, error) {
	switch alg {
	case CompSnappy:
		return SnappyCompress, nil
	case CompLz4:
		return Lz4Compress, nil
	case CompNone:
		return nil, nil
	default:
		return nil, errors.Errorf("unknown compression algorithm %d", alg)
	}
}

func deCompressorFor(alg CompressAlgorithm) (DeCompressor, error) {
	switch alg {
	case CompSnappy:
		return SnappyDeCompress, nil
	case CompLz4:
		return Lz4DeCompress, nil
	case CompNone:
		return nil, nil
	default:
		return nil, errors.Errorf("unknown compression algorithm %d", alg)
	}
}
