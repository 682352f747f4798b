// Package geo maps free-form, user-supplied location text to standardized
// region codes using a reference table loaded once at startup.
package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Index is a read-only mapping from place names to region codes. It is
// built once at process start, never mutated afterwards, and safe for
// unsynchronized concurrent reads.
type Index struct {
	nameToCode map[string]string
	codeToName map[string]string

	// knownNames preserves load order, which defines resolution priority.
	// The reference table lists city names before country names so a more
	// specific match wins.
	knownNames []string
}

// Load reads a reference table of (place_name, region_code, canonical_name)
// rows from the CSV at path and builds an Index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo reference table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses the triple CSV from r.
func Read(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	idx := &Index{
		nameToCode: make(map[string]string),
		codeToName: make(map[string]string),
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read geo reference row: %w", err)
		}
		idx.Add(row[0], row[1], row[2])
	}

	if len(idx.knownNames) == 0 {
		return nil, fmt.Errorf("geo reference table is empty")
	}
	return idx, nil
}

// Add indexes one (place_name, region_code, canonical_name) triple. For a
// code indexed more than once the last canonical name wins; canonical names
// are only used for display.
func (idx *Index) Add(name, code, canonical string) {
	if name == "" || code == "" {
		return
	}
	if idx.nameToCode == nil {
		idx.nameToCode = make(map[string]string)
		idx.codeToName = make(map[string]string)
	}
	if _, ok := idx.nameToCode[name]; !ok {
		idx.knownNames = append(idx.knownNames, name)
	}
	idx.nameToCode[name] = code
	if canonical != "" {
		idx.codeToName[code] = canonical
	}
}

// Resolve scans known names in priority order and returns the code of the
// first name contained (case-sensitive) in rawLocation, or "" if none
// matches. A short place name embedded in an unrelated word can match; that
// loss of precision is accepted in exchange for resolving the messy
// location strings users actually write.
func (idx *Index) Resolve(rawLocation string) string {
	if rawLocation == "" {
		return ""
	}
	for _, name := range idx.knownNames {
		if strings.Contains(rawLocation, name) {
			return idx.nameToCode[name]
		}
	}
	return ""
}

// CanonicalName returns the display name for a region code, or "" if the
// code is unknown.
func (idx *Index) CanonicalName(code string) string {
	return idx.codeToName[code]
}

// Len returns the number of known place names.
func (idx *Index) Len() int {
	return len(idx.knownNames)
}
