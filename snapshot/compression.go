package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how payload blocks are compressed.
type Compression uint8

const (
	CompressionNone Compression = 0
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors size.
	CompressionZSTD Compression = 2
)

var compressionNames = [...]string{"none", "lz4", "zstd"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// ParseCompression parses a name as returned by String. The empty string
// means CompressionNone.
func ParseCompression(s string) (Compression, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CompressionNone, nil
	}
	for i, name := range compressionNames {
		if name == s {
			return Compression(i), nil
		}
	}
	return 0, fmt.Errorf("snapshot: unknown compression %q", s)
}

// A block is stored as [raw size uint32][stored size uint32][bytes]. A
// stored size of 0 means the bytes are the raw block.
const (
	blockHeaderSize  = 8
	defaultBlockSize = 256 << 10
)

// A compressed block is kept only when it saves at least a tenth.
const maxCompressedRatio = 0.9

var (
	errShortBlock   = errors.New("snapshot: block extends beyond payload")
	errSizeMismatch = errors.New("snapshot: decompressed size mismatch")
)

// zstd encoders and decoders are expensive to create and safe to reuse for
// EncodeAll / DecodeAll.
var (
	zstdEncoders = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	}}
	zstdDecoders = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	}}
)

// compress returns the compressed form of raw, or nil when the algorithm
// could not shrink it.
func compress(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil || n == 0 {
			return nil, err
		}
		return dst[:n], nil
	case CompressionZSTD:
		enc := zstdEncoders.Get().(*zstd.Encoder)
		defer zstdEncoders.Put(enc)
		return enc.EncodeAll(raw, nil), nil
	default:
		return nil, nil
	}
}

func decompress(stored []byte, rawSize int, c Compression) ([]byte, error) {
	switch c {
	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, err
		}
		if n != rawSize {
			return nil, errSizeMismatch
		}
		return out, nil
	case CompressionZSTD:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, err
		}
		if len(out) != rawSize {
			return nil, errSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("snapshot: compressed block with compression %v", c)
	}
}

// appendBlock appends raw to dst as one framed block.
func appendBlock(dst, raw []byte, c Compression) ([]byte, error) {
	packed, err := compress(raw, c)
	if err != nil {
		return nil, err
	}
	if packed == nil || float64(len(packed)) > float64(len(raw))*maxCompressedRatio {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(raw)))
		dst = binary.LittleEndian.AppendUint32(dst, 0)
		return append(dst, raw...), nil
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(raw)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(packed)))
	return append(dst, packed...), nil
}

// blockWriter cuts a byte stream into blocks of blockSize and writes each
// framed block to w.
type blockWriter struct {
	w           io.Writer
	compression Compression
	blockSize   int
	pending     []byte
	frame       []byte
}

func newBlockWriter(w io.Writer, c Compression, blockSize int) *blockWriter {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	return &blockWriter{
		w:           w,
		compression: c,
		blockSize:   blockSize,
		pending:     make([]byte, 0, blockSize),
	}
}

func (bw *blockWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if len(bw.pending) == bw.blockSize {
			if err := bw.Flush(); err != nil {
				return n - len(p), err
			}
		}
		take := min(len(p), bw.blockSize-len(bw.pending))
		bw.pending = append(bw.pending, p[:take]...)
		p = p[take:]
	}
	return n, nil
}

// Flush writes the buffered partial block, if any.
func (bw *blockWriter) Flush() error {
	if len(bw.pending) == 0 {
		return nil
	}
	frame, err := appendBlock(bw.frame[:0], bw.pending, bw.compression)
	if err != nil {
		return err
	}
	bw.frame = frame
	if _, err := bw.w.Write(frame); err != nil {
		return err
	}
	bw.pending = bw.pending[:0]
	return nil
}

// decompressAll decodes the concatenated blocks of payload.
func decompressAll(payload []byte, c Compression) ([]byte, error) {
	var out []byte
	for len(payload) > 0 {
		if len(payload) < blockHeaderSize {
			return nil, errShortBlock
		}
		rawSize := int(binary.LittleEndian.Uint32(payload))
		storedSize := int(binary.LittleEndian.Uint32(payload[4:]))
		payload = payload[blockHeaderSize:]

		if storedSize == 0 {
			if rawSize > len(payload) {
				return nil, errShortBlock
			}
			out = append(out, payload[:rawSize]...)
			payload = payload[rawSize:]
			continue
		}

		if storedSize > len(payload) {
			return nil, errShortBlock
		}
		raw, err := decompress(payload[:storedSize], rawSize, c)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
		payload = payload[storedSize:]
	}
	return out, nil
}
