package snapshot

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/hupe1980/vecsim/codec"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/model"
	"github.com/hupe1980/vecsim/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords(n, dim int) []model.Record {
	rng := testutil.NewRNG(7)
	records := make([]model.Record, n)
	for i := range records {
		rec := model.Record{
			ID:     fmt.Sprintf("p-%05d", i),
			Vector: rng.UniformVectors(1, dim)[0],
		}
		if i%3 != 0 {
			rec.Metadata = map[string]string{"brand": fmt.Sprintf("b%d", i%5), "title": "Shoe"}
		}
		records[i] = rec
	}
	return records
}

func TestWriteRead(t *testing.T) {
	records := testRecords(500, 16)
	// Bit-exact values that text formats tend to mangle.
	records[1].Vector[0] = math.SmallestNonzeroFloat64
	records[2].Vector[0] = -0.1

	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}, codec.Msgpack{}} {
			t.Run(comp.String()+"/"+c.Name(), func(t *testing.T) {
				var buf bytes.Buffer
				h, err := Write(&buf, 16, distance.MetricEuclidean, slices.Values(records), func(o *WriteOptions) {
					o.Compression = comp
					o.Codec = c
					o.BlockSize = 4096
				})
				require.NoError(t, err)
				assert.Equal(t, 500, h.Count)
				assert.Equal(t, int64(buf.Len()-HeaderSize), h.PayloadSize)

				got, decoded, err := Read(bytes.NewReader(buf.Bytes()))
				require.NoError(t, err)
				assert.Equal(t, h, got)
				assert.Equal(t, distance.MetricEuclidean, got.Metric)
				assert.Equal(t, 16, got.Dimension)
				assert.Equal(t, c.Name(), got.Codec)
				require.Len(t, decoded, len(records))

				for i := range records {
					assert.Equal(t, records[i].ID, decoded[i].ID)
					assert.Equal(t, records[i].Vector, decoded[i].Vector)
					assert.Equal(t, records[i].Metadata, decoded[i].Metadata)
				}
			})
		}
	}
}

func TestWriteRead_Empty(t *testing.T) {
	var buf bytes.Buffer
	h, err := Write(&buf, 0, distance.MetricCosine, slices.Values([]model.Record(nil)))
	require.NoError(t, err)
	assert.Equal(t, 0, h.Count)

	got, records, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Dimension)
	assert.Empty(t, records)
}

func TestWrite_DimensionMismatch(t *testing.T) {
	records := []model.Record{{ID: "a", Vector: []float64{1, 2, 3}}}

	_, err := Write(&bytes.Buffer{}, 2, distance.MetricCosine, slices.Values(records))
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)
}

func TestRead_Corruption(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, 8, distance.MetricCosine, slices.Values(testRecords(50, 8)))
	require.NoError(t, err)
	valid := buf.Bytes()

	mutate := func(fn func([]byte) []byte) []byte {
		return fn(bytes.Clone(valid))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidMagic},
		{"short header", valid[:10], ErrInvalidMagic},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), ErrInvalidMagic},
		{"future version", mutate(func(b []byte) []byte { b[4] = 9; return b }), ErrUnsupportedVersion},
		{"bad metric", mutate(func(b []byte) []byte { b[7] = 9; return b }), ErrCorrupt},
		{"bad compression", mutate(func(b []byte) []byte { b[6] = 9; return b }), ErrCorrupt},
		{"truncated payload", valid[:len(valid)-5], ErrCorrupt},
		{"flipped payload byte", mutate(func(b []byte) []byte { b[HeaderSize+3] ^= 0xff; return b }), ErrChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, model.ErrInvalidArgument)
		})
	}
}

func TestRead_UnknownCodec(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, 2, distance.MetricCosine, slices.Values([]model.Record{{ID: "a", Vector: []float64{1, 0}}}))
	require.NoError(t, err)

	data := buf.Bytes()
	copy(data[32:48], "protobuf\x00\x00\x00\x00\x00\x00\x00\x00")

	_, _, err = Read(bytes.NewReader(data))
	assert.ErrorContains(t, err, "unknown codec")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestReadHeader(t *testing.T) {
	var buf bytes.Buffer
	want, err := Write(&buf, 4, distance.MetricCosine, slices.Values(testRecords(3, 4)), func(o *WriteOptions) {
		o.Compression = CompressionLZ4
	})
	require.NoError(t, err)

	got, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, CompressionLZ4, got.Compression)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCompression(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, got)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}

func TestCompressBlock_Incompressible(t *testing.T) {
	rng := testutil.NewRNG(1)
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(rng.Intn(256))
	}

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		var buf bytes.Buffer
		bw := newBlockWriter(&buf, c, 1024)
		_, err := bw.Write(data)
		require.NoError(t, err)
		require.NoError(t, bw.Flush())

		out, err := decompressAll(buf.Bytes(), c)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}
}
