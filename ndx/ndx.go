// Package ndx implements the trial index: the enumerated grid of
// enrollment-model x test-segment pairs to be scored.
//
// Construction deduplicates the input ID lists while preserving first-seen
// order, so building twice from differently-shuffled duplicate-containing
// inputs yields identical indexes. A roaring bitmap over the row-major grid
// records which trials are active; by default all of them are.
package ndx

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/plda/persistence"
)

// ErrEmptyIndex is returned when either ID list is empty after
// deduplication.
var ErrEmptyIndex = errors.New("ndx: empty id list")

// ErrIndexOutOfRange indicates an invalid grid position.
type ErrIndexOutOfRange struct {
	Axis string // "model" or "segment"
	Pos  int
	Len  int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("ndx: %s position %d out of range [0,%d)", e.Axis, e.Pos, e.Len)
}

// ErrTrialNotFound indicates a trial pair that is absent from the index.
type ErrTrialNotFound struct {
	EnrollID string
	TestID   string
}

func (e *ErrTrialNotFound) Error() string {
	return fmt.Sprintf("ndx: trial (%q, %q) not found", e.EnrollID, e.TestID)
}

// Index enumerates the trials as an implicit models x segments grid.
// Immutable after construction apart from mask narrowing; safe for
// concurrent reads once sharing starts.
type Index struct {
	models   []string
	segments []string
	modelPos map[string]int
	segPos   map[string]int
	mask     *roaring.Bitmap
}

// New builds an index from the enrollment model IDs and test segment IDs.
// Each list is deduplicated preserving first-seen order. All trials start
// active in the mask.
func New(modelIDs, segmentIDs []string) (*Index, error) {
	models, modelPos := dedup(modelIDs)
	segments, segPos := dedup(segmentIDs)
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: models", ErrEmptyIndex)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: segments", ErrEmptyIndex)
	}

	mask := roaring.New()
	mask.AddRange(0, uint64(len(models))*uint64(len(segments)))

	return &Index{
		models:   models,
		segments: segments,
		modelPos: modelPos,
		segPos:   segPos,
		mask:     mask,
	}, nil
}

func dedup(ids []string) ([]string, map[string]int) {
	out := make([]string, 0, len(ids))
	pos := make(map[string]int, len(ids))
	for _, id := range ids {
		if _, seen := pos[id]; seen {
			continue
		}
		pos[id] = len(out)
		out = append(out, id)
	}
	return out, pos
}

// NumModels returns the number of enrollment models.
func (x *Index) NumModels() int { return len(x.models) }

// NumSegments returns the number of test segments.
func (x *Index) NumSegments() int { return len(x.segments) }

// Models returns the deduplicated model IDs. Callers must not mutate.
func (x *Index) Models() []string { return x.models }

// Segments returns the deduplicated segment IDs. Callers must not mutate.
func (x *Index) Segments() []string { return x.segments }

// PairAt returns the (modelID, segmentID) pair at the given grid position.
func (x *Index) PairAt(modelPos, segPos int) (string, string, error) {
	if modelPos < 0 || modelPos >= len(x.models) {
		return "", "", &ErrIndexOutOfRange{Axis: "model", Pos: modelPos, Len: len(x.models)}
	}
	if segPos < 0 || segPos >= len(x.segments) {
		return "", "", &ErrIndexOutOfRange{Axis: "segment", Pos: segPos, Len: len(x.segments)}
	}
	return x.models[modelPos], x.segments[segPos], nil
}

// ModelPos returns the row position of a model ID.
func (x *Index) ModelPos(id string) (int, bool) {
	p, ok := x.modelPos[id]
	return p, ok
}

// SegmentPos returns the column position of a segment ID.
func (x *Index) SegmentPos(id string) (int, bool) {
	p, ok := x.segPos[id]
	return p, ok
}

// Masked reports whether the trial at the given grid position is active.
// Out-of-range positions report false.
func (x *Index) Masked(modelPos, segPos int) bool {
	if modelPos < 0 || modelPos >= len(x.models) || segPos < 0 || segPos >= len(x.segments) {
		return false
	}
	return x.mask.Contains(x.bit(modelPos, segPos))
}

// Exclude deactivates the trial for the given ID pair. Unknown IDs surface
// ErrTrialNotFound.
func (x *Index) Exclude(modelID, segmentID string) error {
	i, ok := x.modelPos[modelID]
	if !ok {
		return &ErrTrialNotFound{EnrollID: modelID, TestID: segmentID}
	}
	j, ok := x.segPos[segmentID]
	if !ok {
		return &ErrTrialNotFound{EnrollID: modelID, TestID: segmentID}
	}
	x.mask.Remove(x.bit(i, j))
	return nil
}

// Include reactivates the trial for the given ID pair. Unknown IDs surface
// ErrTrialNotFound.
func (x *Index) Include(modelID, segmentID string) error {
	i, ok := x.modelPos[modelID]
	if !ok {
		return &ErrTrialNotFound{EnrollID: modelID, TestID: segmentID}
	}
	j, ok := x.segPos[segmentID]
	if !ok {
		return &ErrTrialNotFound{EnrollID: modelID, TestID: segmentID}
	}
	x.mask.Add(x.bit(i, j))
	return nil
}

// Mask returns a copy of the trial activity bitmap over the row-major grid.
func (x *Index) Mask() *roaring.Bitmap {
	return x.mask.Clone()
}

// ActiveTrials returns the number of active trials in the mask.
func (x *Index) ActiveTrials() uint64 {
	return x.mask.GetCardinality()
}

func (x *Index) bit(i, j int) uint32 {
	return uint32(i*len(x.segments) + j)
}

// Artifact returns the index's serialized representation.
func (x *Index) Artifact() (*persistence.IndexArtifact, error) {
	mask, err := x.mask.ToBytes()
	if err != nil {
		return nil, err
	}
	return &persistence.IndexArtifact{
		Models:   append([]string(nil), x.models...),
		Segments: append([]string(nil), x.segments...),
		Mask:     mask,
	}, nil
}

// FromArtifact rebuilds an index from its serialized representation.
func FromArtifact(a *persistence.IndexArtifact) (*Index, error) {
	x, err := New(a.Models, a.Segments)
	if err != nil {
		return nil, err
	}
	if len(a.Mask) > 0 {
		mask := roaring.New()
		if err := mask.UnmarshalBinary(a.Mask); err != nil {
			return nil, err
		}
		x.mask = mask
	}
	return x, nil
}
