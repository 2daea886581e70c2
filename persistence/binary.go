// Package persistence provides the binary serialization of the three cached
// artifacts: stat collections, trial indexes, and trained PLDA models.
//
// Every artifact starts with a fixed 64-byte FileHeader carrying magic,
// version, kind, and the dimensions needed for compatibility checks on
// load. The body is a single compressed block; float64 values round-trip
// losslessly as raw IEEE-754 bits.
package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

var byteOrder = binary.LittleEndian

// EncodeStats writes a stat artifact.
func EncodeStats(w io.Writer, a *StatArtifact, c Compression) error {
	if len(a.IDs) != len(a.Labels) || len(a.Vectors) != len(a.IDs)*a.Dim {
		return fmt.Errorf("%w: inconsistent stat artifact shape", ErrCorruptBody)
	}

	var body bytes.Buffer
	writeStrings(&body, a.IDs)
	writeStrings(&body, a.Labels)
	writeFloat64s(&body, a.Vectors)

	header := FileHeader{
		Kind:      KindStats,
		Count:     uint64(len(a.IDs)),
		Dimension: uint32(a.Dim),
	}
	return writeArtifact(w, header, body.Bytes(), c)
}

// DecodeStats reads a stat artifact.
func DecodeStats(r io.Reader) (*StatArtifact, error) {
	header, body, err := readArtifact(r, KindStats)
	if err != nil {
		return nil, err
	}

	cur := &cursor{data: body}
	a := &StatArtifact{Dim: int(header.Dimension)}
	if a.IDs, err = cur.strings(); err != nil {
		return nil, err
	}
	if a.Labels, err = cur.strings(); err != nil {
		return nil, err
	}
	if a.Vectors, err = cur.float64s(); err != nil {
		return nil, err
	}
	if uint64(len(a.IDs)) != header.Count || len(a.Labels) != len(a.IDs) || len(a.Vectors) != len(a.IDs)*a.Dim {
		return nil, fmt.Errorf("%w: stat artifact shape disagrees with header", ErrCorruptBody)
	}
	return a, nil
}

// EncodeIndex writes a trial index artifact.
func EncodeIndex(w io.Writer, a *IndexArtifact, c Compression) error {
	var body bytes.Buffer
	writeStrings(&body, a.Models)
	writeStrings(&body, a.Segments)
	writeBytes(&body, a.Mask)

	header := FileHeader{
		Kind:  KindIndex,
		Count: uint64(len(a.Models)),
		Rank:  uint32(len(a.Segments)),
	}
	return writeArtifact(w, header, body.Bytes(), c)
}

// DecodeIndex reads a trial index artifact.
func DecodeIndex(r io.Reader) (*IndexArtifact, error) {
	_, body, err := readArtifact(r, KindIndex)
	if err != nil {
		return nil, err
	}

	cur := &cursor{data: body}
	a := &IndexArtifact{}
	if a.Models, err = cur.strings(); err != nil {
		return nil, err
	}
	if a.Segments, err = cur.strings(); err != nil {
		return nil, err
	}
	if a.Mask, err = cur.bytes(); err != nil {
		return nil, err
	}
	return a, nil
}

// EncodeModel writes a PLDA model artifact. D and K are recorded in the
// header so loaders can validate compatibility up front.
func EncodeModel(w io.Writer, a *ModelArtifact, c Compression) error {
	if len(a.Mean) != a.Dim || len(a.F) != a.Dim*a.Rank || len(a.Sigma) != a.Dim*a.Dim {
		return fmt.Errorf("%w: inconsistent model artifact shape", ErrCorruptBody)
	}

	var body bytes.Buffer
	writeFloat64s(&body, a.Mean)
	writeFloat64s(&body, a.F)
	writeFloat64s(&body, a.Sigma)

	header := FileHeader{
		Kind:      KindModel,
		Dimension: uint32(a.Dim),
		Rank:      uint32(a.Rank),
	}
	return writeArtifact(w, header, body.Bytes(), c)
}

// DecodeModel reads a PLDA model artifact.
func DecodeModel(r io.Reader) (*ModelArtifact, error) {
	header, body, err := readArtifact(r, KindModel)
	if err != nil {
		return nil, err
	}

	cur := &cursor{data: body}
	a := &ModelArtifact{Dim: int(header.Dimension), Rank: int(header.Rank)}
	if a.Mean, err = cur.float64s(); err != nil {
		return nil, err
	}
	if a.F, err = cur.float64s(); err != nil {
		return nil, err
	}
	if a.Sigma, err = cur.float64s(); err != nil {
		return nil, err
	}
	if len(a.Mean) != a.Dim || len(a.F) != a.Dim*a.Rank || len(a.Sigma) != a.Dim*a.Dim {
		return nil, fmt.Errorf("%w: model artifact shape disagrees with header", ErrCorruptBody)
	}
	return a, nil
}

func writeArtifact(w io.Writer, header FileHeader, body []byte, c Compression) error {
	header.Magic = MagicNumber
	header.Version = Version
	header.Compression = uint8(c)

	block, err := compressBody(body, c)
	if err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, &header); err != nil {
		return err
	}
	_, err = w.Write(block)
	return err
}

func readArtifact(r io.Reader, wantKind uint8) (*FileHeader, []byte, error) {
	var header FileHeader
	if err := binary.Read(r, byteOrder, &header); err != nil {
		return nil, nil, err
	}
	if header.Magic != MagicNumber {
		return nil, nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	if header.Kind != wantKind {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKind, header.Kind, wantKind)
	}

	block, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	body, err := decompressBody(block, Compression(header.Compression))
	if err != nil {
		return nil, nil, err
	}
	return &header, body, nil
}

func writeStrings(buf *bytes.Buffer, ss []string) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(ss))))
	for _, s := range ss {
		buf.Write(binary.AppendUvarint(nil, uint64(len(s))))
		buf.WriteString(s)
	}
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(b))))
	buf.Write(b)
}

func writeFloat64s(buf *bytes.Buffer, fs []float64) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(fs))))
	var scratch [8]byte
	for _, f := range fs {
		byteOrder.PutUint64(scratch[:], math.Float64bits(f))
		buf.Write(scratch[:])
	}
}

type cursor struct {
	data []byte
	off  int
}

func (c *cursor) uvarint() (uint64, error) {
	v, n := binary.Uvarint(c.data[c.off:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint", ErrCorruptBody)
	}
	c.off += n
	return v, nil
}

func (c *cursor) take(n int) ([]byte, error) {
	if c.off+n > len(c.data) {
		return nil, fmt.Errorf("%w: truncated body", ErrCorruptBody)
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) strings() ([]string, error) {
	count, err := c.uvarint()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		n, err := c.uvarint()
		if err != nil {
			return nil, err
		}
		b, err := c.take(int(n))
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}

func (c *cursor) bytes() ([]byte, error) {
	n, err := c.uvarint()
	if err != nil {
		return nil, err
	}
	b, err := c.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (c *cursor) float64s() ([]float64, error) {
	count, err := c.uvarint()
	if err != nil {
		return nil, err
	}
	b, err := c.take(int(count) * 8)
	if err != nil {
		return nil, err
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = math.Float64frombits(byteOrder.Uint64(b[i*8:]))
	}
	return out, nil
}
