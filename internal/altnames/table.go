// Package altnames maps Wikidata ids to alternate place names
// ("NYC", "Philly") so lookups can match colloquial spellings.
package altnames

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gazetteer/internal/model"
)

//go:embed data/city-alt-names.yml
var defaultTable []byte

// Table is a read-only alternate-name table.
type Table struct {
	names map[string][]string
}

// Default returns the embedded table.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load reads a table from path, or the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "altnames: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML mapping of Wikidata id to a list of names.
func Parse(data []byte) (*Table, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "altnames: parse table")
	}

	t := &Table{names: make(map[string][]string, len(raw))}
	for id, names := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		t.names[id] = normalize(names)
	}
	return t, nil
}

// Len returns the number of Wikidata ids in the table.
func (t *Table) Len() int { return len(t.names) }

// Lookup returns the alternate names for a Wikidata id, or nil.
func (t *Table) Lookup(wikidataID string) []string {
	names := t.names[wikidataID]
	if len(names) == 0 {
		return nil
	}
	return append([]string(nil), names...)
}

// Names returns the locality's display name together with its alternates.
func (t *Table) Names(loc *model.Locality) []string {
	var all []string
	if loc.Name != nil {
		all = append(all, *loc.Name)
	}
	if loc.WikidataID != nil {
		all = append(all, t.names[*loc.WikidataID]...)
	}
	return normalize(all)
}

// normalize trims, NFC-normalizes, de-duplicates and sorts names.
func normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = norm.NFC.String(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
