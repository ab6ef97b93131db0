package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
	"math"

	"github.com/hupe1980/vecsim/codec"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/model"
)

const (
	// Version is the current format version.
	Version uint16 = 1

	// HeaderSize is the size of the fixed header in bytes.
	HeaderSize = 64

	magic        = "VSIM"
	codecNameMax = 16
)

// All snapshot decoding errors match model.ErrInvalidArgument.
var (
	// ErrInvalidMagic is returned when the input is not a snapshot.
	ErrInvalidMagic = fmt.Errorf("snapshot: invalid magic: %w", model.ErrInvalidArgument)

	// ErrUnsupportedVersion is returned for snapshots written by a newer format.
	ErrUnsupportedVersion = fmt.Errorf("snapshot: unsupported version: %w", model.ErrInvalidArgument)

	// ErrChecksum is returned when the payload does not match its checksum.
	ErrChecksum = fmt.Errorf("snapshot: checksum mismatch: %w", model.ErrInvalidArgument)

	// ErrCorrupt is returned when the payload cannot be decoded.
	ErrCorrupt = fmt.Errorf("snapshot: corrupt payload: %w", model.ErrInvalidArgument)
)

// Header describes a snapshot.
type Header struct {
	Version     uint16
	Compression Compression
	Metric      distance.Metric
	Dimension   int
	Count       int
	PayloadSize int64
	Checksum    uint32
	Codec       string
}

func (h *Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Compression)
	buf[7] = byte(h.Metric)
	binary.LittleEndian.PutUint32(buf[8:], uint32(h.Dimension))
	binary.LittleEndian.PutUint64(buf[12:], uint64(h.Count))
	binary.LittleEndian.PutUint64(buf[20:], uint64(h.PayloadSize))
	binary.LittleEndian.PutUint32(buf[28:], h.Checksum)
	copy(buf[32:32+codecNameMax], h.Codec)
	return buf
}

func (h *Header) unmarshal(buf []byte) error {
	if string(buf[0:4]) != magic {
		return ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:])
	if h.Version == 0 || h.Version > Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Compression = Compression(buf[6])
	h.Metric = distance.Metric(buf[7])
	h.Dimension = int(binary.LittleEndian.Uint32(buf[8:]))
	h.Count = int(binary.LittleEndian.Uint64(buf[12:]))
	h.PayloadSize = int64(binary.LittleEndian.Uint64(buf[20:]))
	h.Checksum = binary.LittleEndian.Uint32(buf[28:])
	h.Codec = string(bytes.TrimRight(buf[32:32+codecNameMax], "\x00"))

	if !h.Metric.Valid() {
		return fmt.Errorf("%w: metric %d", ErrCorrupt, buf[7])
	}
	if h.Compression > CompressionZSTD {
		return fmt.Errorf("%w: compression %d", ErrCorrupt, buf[6])
	}
	if h.PayloadSize < 0 {
		return fmt.Errorf("%w: payload size", ErrCorrupt)
	}
	return nil
}

// WriteOptions configures Write.
type WriteOptions struct {
	Compression Compression
	Codec       codec.Codec
	BlockSize   int
}

// Write encodes records of the given dimension and default metric to w.
//
// Every record's vector must have length dim. It returns the header that was
// written.
func Write(w io.Writer, dim int, metric distance.Metric, records iter.Seq[model.Record], optFns ...func(o *WriteOptions)) (Header, error) {
	opts := WriteOptions{Compression: CompressionZSTD, Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if len(opts.Codec.Name()) > codecNameMax {
		return Header{}, fmt.Errorf("snapshot: codec name %q longer than %d bytes", opts.Codec.Name(), codecNameMax)
	}

	var payload bytes.Buffer
	bw := newBlockWriter(&payload, opts.Compression, opts.BlockSize)

	count := 0
	scratch := make([]byte, binary.MaxVarintLen64+8*max(dim, 0))
	for rec := range records {
		if len(rec.Vector) != dim {
			return Header{}, model.NewDimensionMismatch(dim, len(rec.Vector))
		}

		n := binary.PutUvarint(scratch, uint64(len(rec.ID)))
		if _, err := bw.Write(scratch[:n]); err != nil {
			return Header{}, err
		}
		if _, err := io.WriteString(bw, rec.ID); err != nil {
			return Header{}, err
		}

		for i, x := range rec.Vector {
			binary.LittleEndian.PutUint64(scratch[i*8:], math.Float64bits(x))
		}
		if _, err := bw.Write(scratch[:8*dim]); err != nil {
			return Header{}, err
		}

		var md []byte
		if len(rec.Metadata) > 0 {
			var err error
			if md, err = opts.Codec.Marshal(rec.Metadata); err != nil {
				return Header{}, fmt.Errorf("snapshot: encode metadata of %q: %w", rec.ID, err)
			}
		}
		n = binary.PutUvarint(scratch, uint64(len(md)))
		if _, err := bw.Write(scratch[:n]); err != nil {
			return Header{}, err
		}
		if _, err := bw.Write(md); err != nil {
			return Header{}, err
		}
		count++
	}
	if err := bw.Flush(); err != nil {
		return Header{}, err
	}

	h := Header{
		Version:     Version,
		Compression: opts.Compression,
		Metric:      metric,
		Dimension:   dim,
		Count:       count,
		PayloadSize: int64(payload.Len()),
		Checksum:    crc32.ChecksumIEEE(payload.Bytes()),
		Codec:       opts.Codec.Name(),
	}
	if _, err := w.Write(h.marshal()); err != nil {
		return Header{}, err
	}
	if _, err := w.Write(payload.Bytes()); err != nil {
		return Header{}, err
	}
	return h, nil
}

// ReadHeader reads and validates only the header.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Header{}, ErrInvalidMagic
		}
		return Header{}, err
	}
	var h Header
	if err := h.unmarshal(buf); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (Header, []model.Record, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Header{}, nil, err
	}

	c, ok := codec.ByName(h.Codec)
	if !ok {
		return Header{}, nil, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, h.Codec)
	}

	payload, err := io.ReadAll(io.LimitReader(r, h.PayloadSize))
	if err != nil {
		return Header{}, nil, err
	}
	if int64(len(payload)) != h.PayloadSize {
		return Header{}, nil, fmt.Errorf("%w: payload truncated", ErrCorrupt)
	}
	if crc32.ChecksumIEEE(payload) != h.Checksum {
		return Header{}, nil, ErrChecksum
	}

	data, err := decompressAll(payload, h.Compression)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	records, err := decodeRecords(data, h, c)
	if err != nil {
		return Header{}, nil, err
	}
	return h, records, nil
}

func decodeRecords(data []byte, h Header, c codec.Codec) ([]model.Record, error) {
	records := make([]model.Record, 0, min(h.Count, len(data)))
	rd := bytes.NewReader(data)

	for range h.Count {
		idLen, err := binary.ReadUvarint(rd)
		if err != nil || idLen > uint64(rd.Len()) {
			return nil, fmt.Errorf("%w: id length", ErrCorrupt)
		}
		id := make([]byte, idLen)
		_, _ = io.ReadFull(rd, id)

		if rd.Len() < 8*h.Dimension {
			return nil, fmt.Errorf("%w: vector of %q", ErrCorrupt, id)
		}
		vec := make([]float64, h.Dimension)
		raw := make([]byte, 8*h.Dimension)
		_, _ = io.ReadFull(rd, raw)
		for i := range vec {
			vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}

		mdLen, err := binary.ReadUvarint(rd)
		if err != nil || mdLen > uint64(rd.Len()) {
			return nil, fmt.Errorf("%w: metadata length of %q", ErrCorrupt, id)
		}
		var md map[string]string
		if mdLen > 0 {
			raw := make([]byte, mdLen)
			_, _ = io.ReadFull(rd, raw)
			if err := c.Unmarshal(raw, &md); err != nil {
				return nil, fmt.Errorf("%w: metadata of %q: %w", ErrCorrupt, id, err)
			}
		}

		records = append(records, model.Record{ID: string(id), Vector: vec, Metadata: md})
	}
	if rd.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, rd.Len())
	}
	return records, nil
}
