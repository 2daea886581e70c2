package persistence

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var compressions = map[string]Compression{
	"none": CompressionNone,
	"lz4":  CompressionLZ4,
	"zstd": CompressionZSTD,
}

func TestStats_RoundTrip(t *testing.T) {
	a := &StatArtifact{
		Dim:     3,
		IDs:     []string{"u1", "u2"},
		Labels:  []string{"spkA", "spkB"},
		Vectors: []float64{1.5, -2.25, math.Pi, 1e-300, 7, -0},
	}

	for name, c := range compressions {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeStats(&buf, a, c))

			got, err := DecodeStats(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, a.Dim, got.Dim)
			assert.Equal(t, a.IDs, got.IDs)
			assert.Equal(t, a.Labels, got.Labels)
			assert.Equal(t, a.Vectors, got.Vectors)
		})
	}
}

func TestIndex_RoundTrip(t *testing.T) {
	a := &IndexArtifact{
		Models:   []string{"m1", "m2", "m3"},
		Segments: []string{"s1", "s2"},
		Mask:     []byte{0xde, 0xad, 0xbe, 0xef},
	}

	for name, c := range compressions {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeIndex(&buf, a, c))

			got, err := DecodeIndex(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, a, got)
		})
	}
}

func TestModel_RoundTrip(t *testing.T) {
	a := &ModelArtifact{
		Dim:   2,
		Rank:  1,
		Mean:  []float64{0.5, -0.5},
		F:     []float64{1.25, 2.5},
		Sigma: []float64{1, 0.1, 0.1, 2},
	}

	for name, c := range compressions {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeModel(&buf, a, c))

			got, err := DecodeModel(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, a, got)
		})
	}
}

func TestDecode_BadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeModel(&buf, &ModelArtifact{Dim: 1, Rank: 1, Mean: []float64{0}, F: []float64{1}, Sigma: []float64{1}}, CompressionNone))

	data := buf.Bytes()
	data[0] ^= 0xff
	_, err := DecodeModel(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecode_WrongKind(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeIndex(&buf, &IndexArtifact{Models: []string{"m"}, Segments: []string{"s"}}, CompressionNone))

	_, err := DecodeModel(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestDecode_Truncated(t *testing.T) {
	var buf bytes.Buffer
	a := &StatArtifact{Dim: 1, IDs: []string{"u1"}, Labels: []string{"a"}, Vectors: []float64{1}}
	require.NoError(t, EncodeStats(&buf, a, CompressionNone))

	data := buf.Bytes()
	_, err := DecodeStats(bytes.NewReader(data[:len(data)-2]))
	require.Error(t, err)
}

func TestEncode_ShapeValidation(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeStats(&buf, &StatArtifact{Dim: 2, IDs: []string{"u1"}, Labels: []string{"a"}, Vectors: []float64{1}}, CompressionNone)
	require.ErrorIs(t, err, ErrCorruptBody)

	err = EncodeModel(&buf, &ModelArtifact{Dim: 2, Rank: 1, Mean: []float64{0}, F: []float64{1, 2}, Sigma: []float64{1, 0, 0, 1}}, CompressionNone)
	require.ErrorIs(t, err, ErrCorruptBody)
}
