package eer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Trial is one ground-truth verification trial.
type Trial struct {
	Target   bool // true = same speaker
	EnrollID string
	TestID   string
}

// NormalizeID maps a trial file reference to a bare ID: the final path
// element (either separator kind), truncated at the first dot. Lookups
// against enrollment and test collections silently miss unless this rule
// matches the IDs used when the collections were built.
func NormalizeID(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

// ParseTrials reads the external ground-truth format, one trial per line:
//
//	label enrollFileRef testFileRef
//
// where label is 1 (match) or 0 (non-match). File refs are normalized via
// NormalizeID. Blank lines are skipped; anything else malformed errors
// with its line number.
func ParseTrials(r io.Reader) ([]Trial, error) {
	var trials []Trial

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("eer: line %d: expected 3 fields, got %d", lineNo, len(fields))
		}

		var target bool
		switch NormalizeID(fields[0]) {
		case "1":
			target = true
		case "0":
			target = false
		default:
			return nil, fmt.Errorf("eer: line %d: bad label %q", lineNo, fields[0])
		}

		trials = append(trials, Trial{
			Target:   target,
			EnrollID: NormalizeID(fields[1]),
			TestID:   NormalizeID(fields[2]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return trials, nil
}
