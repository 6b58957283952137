// Package traces loads labeled example strings and derives the alphabet the
// automata are evolved over.
package traces

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrEmpty = errors.New("no traces")

// Trace is one example string and whether the target language contains it.
type Trace struct {
	Input     string
	Accepting bool
}

type fileFormat struct {
	Passed *[]string `json:"PASSED"`
	Failed *[]string `json:"FAILED"`
}

// Import reads a trace file of the form {"PASSED": [...], "FAILED": [...]}.
func Import(path string) ([]Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	traces, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return traces, nil
}

// Decode parses the trace document. Accepting traces come first, in file
// order.
func Decode(r io.Reader) ([]Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode traces: %w", err)
	}
	if doc.Passed == nil && doc.Failed == nil {
		return nil, fmt.Errorf("%w: document has neither PASSED nor FAILED", ErrEmpty)
	}

	var out []Trace
	if doc.Passed != nil {
		for _, s := range *doc.Passed {
			out = append(out, Trace{Input: s, Accepting: true})
		}
	}
	if doc.Failed != nil {
		for _, s := range *doc.Failed {
			out = append(out, Trace{Input: s, Accepting: false})
		}
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Encode writes traces in the format Decode reads.
func Encode(w io.Writer, traces []Trace) error {
	passed := make([]string, 0, len(traces))
	failed := make([]string, 0, len(traces))
	for _, t := range traces {
		if t.Accepting {
			passed = append(passed, t.Input)
		} else {
			failed = append(failed, t.Input)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fileFormat{Passed: &passed, Failed: &failed})
}

// DiscoverAlphabet collects the distinct symbols of the accepting traces in
// first-seen order. Rejecting traces do not contribute.
func DiscoverAlphabet(traces []Trace) []rune {
	seen := map[rune]struct{}{}
	var alphabet []rune
	for _, t := range traces {
		if !t.Accepting {
			continue
		}
		for _, r := range t.Input {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			alphabet = append(alphabet, r)
		}
	}
	return alphabet
}

// Split counts accepting and rejecting traces.
func Split(traces []Trace) (accepting, rejecting int) {
	for _, t := range traces {
		if t.Accepting {
			accepting++
		} else {
			rejecting++
		}
	}
	return accepting, rejecting
}
