// Package taxonomy holds the fixed product category table and the matcher
// that resolves free-text product descriptions against it.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pisflow/pisflow/pkg/models"
)

//go:embed data/taxonomy.json
var taxonomyJSON []byte

const taxonomySchema = `{
	"type": "object",
	"required": ["version", "entries"],
	"properties": {
		"version": {"type": "string", "minLength": 1},
		"entries": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["main", "sub", "sub_sub", "aliases"],
				"properties": {
					"main": {"type": "string", "minLength": 1},
					"sub": {"type": "string", "minLength": 1},
					"sub_sub": {"type": "string", "minLength": 1},
					"aliases": {
						"type": "array",
						"minItems": 1,
						"items": {"type": "string", "minLength": 1}
					}
				}
			}
		}
	}
}`

// Entry is one valid category triple plus the alias keywords that map
// product text onto it.
type Entry struct {
	Main    string   `json:"main"`
	Sub     string   `json:"sub"`
	SubSub  string   `json:"sub_sub"`
	Aliases []string `json:"aliases"`
}

// Category returns the entry's triple.
func (e *Entry) Category() models.Category {
	return models.Category{Main: e.Main, Sub: e.Sub, SubSub: e.SubSub}
}

type document struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// Table is the loaded, immutable taxonomy. It is built once at process start
// and shared by all classification calls.
type Table struct {
	version  string
	entries  []Entry
	byTriple map[models.Category]*Entry
	byAlias  map[string]*Entry
}

// Load parses and validates the embedded taxonomy table.
func Load() (*Table, error) {
	return LoadBytes(taxonomyJSON)
}

// LoadBytes builds a table from raw JSON, validating it against the taxonomy
// schema first.
func LoadBytes(data []byte) (*Table, error) {
	schemaLoader := gojsonschema.NewStringLoader(taxonomySchema)
	dataLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate taxonomy: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return nil, fmt.Errorf("invalid taxonomy: %s", strings.Join(descriptions, "; "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}

	table := &Table{
		version:  doc.Version,
		entries:  doc.Entries,
		byTriple: make(map[models.Category]*Entry, len(doc.Entries)),
		byAlias:  make(map[string]*Entry, len(doc.Entries)*3),
	}

	for i := range table.entries {
		entry := &table.entries[i]

		triple := entry.Category()
		if _, exists := table.byTriple[triple]; exists {
			return nil, fmt.Errorf("duplicate taxonomy triple %q", triple)
		}

		table.byTriple[triple] = entry

		// Earlier entries win alias conflicts so lookup stays
		// deterministic across loads.
		for _, alias := range entry.Aliases {
			key := Normalize(alias)
			if _, exists := table.byAlias[key]; !exists {
				table.byAlias[key] = entry
			}
		}

		key := Normalize(entry.SubSub)
		if _, exists := table.byAlias[key]; !exists {
			table.byAlias[key] = entry
		}
	}

	return table, nil
}

// Version returns the taxonomy data version.
func (t *Table) Version() string {
	return t.version
}

// Len returns the number of category triples in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Contains reports whether the triple exists in the table.
func (t *Table) Contains(category models.Category) bool {
	_, ok := t.byTriple[category]

	return ok
}

// Candidates returns all triples in table order, for handing to the
// generation backend as the allowed answer set.
func (t *Table) Candidates() []models.Category {
	candidates := make([]models.Category, 0, len(t.entries))
	for i := range t.entries {
		candidates = append(candidates, t.entries[i].Category())
	}

	return candidates
}

// LookupExact resolves text through the alias index. The whole normalized
// text is tried first; on miss, the longest alias that appears in the text as
// a whole phrase wins. Identical input always yields the identical triple.
func (t *Table) LookupExact(text string) (models.Category, bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return models.Category{}, false
	}

	if entry, ok := t.byAlias[normalized]; ok {
		return entry.Category(), true
	}

	padded := " " + normalized + " "

	var (
		best    *Entry
		bestLen int
	)

	for alias, entry := range t.byAlias {
		if len(alias) <= bestLen && !(len(alias) == bestLen && better(entry, best)) {
			continue
		}

		if strings.Contains(padded, " "+alias+" ") {
			best = entry
			bestLen = len(alias)
		}
	}

	if best == nil {
		return models.Category{}, false
	}

	return best.Category(), true
}

// better breaks length ties by table order so map iteration order cannot
// leak into results.
func better(candidate, current *Entry) bool {
	if current == nil {
		return true
	}

	return candidate.Main+candidate.Sub+candidate.SubSub < current.Main+current.Sub+current.SubSub
}

// Normalize lowercases text and collapses runs of whitespace and punctuation
// into single spaces.
func Normalize(text string) string {
	var b strings.Builder

	b.Grow(len(text))

	lastSpace := true

	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)

			lastSpace = false
		case r == '&', r == '-', r == '+':
			b.WriteRune(r)

			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')

				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}
