package persistence

import "errors"

const (
	// MagicNumber identifies PLDA binary artifacts (ASCII: "PLDA")
	MagicNumber = 0x504C4441
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// Artifact kinds
	KindStats = 1
	KindIndex = 2
	KindModel = 3
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidKind    = errors.New("unexpected artifact kind")
	ErrCorruptBody    = errors.New("corrupt artifact body")
)

// FileHeader is the 64-byte header at the start of every artifact file.
// Dimension and Rank are recorded explicitly so compatibility can be
// validated on load before any matrix is materialized.
type FileHeader struct {
	Magic       uint32 // 0x504C4441 ("PLDA")
	Version     uint32 // File format version
	Kind        uint8  // 1=Stats, 2=Index, 3=Model
	Compression uint8  // see Compression constants
	Padding1    [2]byte
	Count       uint64 // Records (stats), models (index), unused (model)
	Dimension   uint32 // Vector dimensionality D (stats, model)
	Rank        uint32 // Factor column count K (model), segments (index)
	Padding2    [4]byte
	Reserved    [32]byte // Future use
}

// StatArtifact is the serialized form of a stat collection:
// per-record (id, label) pairs plus the row-major float64 vector slab.
type StatArtifact struct {
	Dim     int
	IDs     []string
	Labels  []string
	Vectors []float64 // len(IDs) * Dim, row-major
}

// IndexArtifact is the serialized form of a trial index. Mask holds the
// roaring-serialized trial mask over the row-major model x segment grid.
type IndexArtifact struct {
	Models   []string
	Segments []string
	Mask     []byte
}

// ModelArtifact is the serialized form of a trained PLDA model.
type ModelArtifact struct {
	Dim   int
	Rank  int
	Mean  []float64 // Dim
	F     []float64 // Dim * Rank, row-major
	Sigma []float64 // Dim * Dim, row-major
}
