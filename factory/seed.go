/*
Package factory provides JSON to Go conversion of the bootstrap seed.

PURPOSE:
  The portal ships with a small built-in catalog and student directory so
  that a fresh store still shows something. Deployments can replace it
  with their own JSON file without code changes. The live store always
  wins over the seed: it is a fallback, never a source of truth.

JSON SCHEMA:
  {
    "items": [
      {"serial": "001", "name": "Embedded Systems", "category": "Book"}
    ],
    "students": [
      {"roll": "24L31A0412", "name": "A. Sai Ganesh", "branch": "ECE"}
    ]
  }

  category accepts Book/Journal/Article or the plural collection names,
  case-insensitively, and defaults to Book.

USAGE:
  f := factory.NewSeedFactory()
  seed, err := f.LoadFile(path)       // or f.ParseSeed(factory.DefaultSeedJSON)
  eng := engine.New(store, engine.WithSeedCatalog(seed.Items), engine.WithSeedStudents(seed.Students))

SEE ALSO:
  - engine/recompute.go: MergeCatalog and MergeStudents
*/
package factory

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/rfidlib/circulation-engine/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultSeedJSON is the built-in bootstrap data.
const DefaultSeedJSON = `{
  "items": [
    {"serial": "001", "name": "Embedded Systems", "category": "Book"},
    {"serial": "002", "name": "C Programming", "category": "Book"}
  ],
  "students": [
    {"roll": "24L31A0412", "name": "A. Sai Ganesh", "branch": "ECE"},
    {"roll": "24L31A0417", "name": "B. Sandeep", "branch": "ECE"}
  ]
}`

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type SeedJSON struct {
	Items    []ItemJSON    `json:"items"`
	Students []StudentJSON `json:"students"`
}

type ItemJSON struct {
	Serial   string `json:"serial"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type StudentJSON struct {
	Roll   string `json:"roll"`
	Name   string `json:"name"`
	Branch string `json:"branch,omitempty"`
}

// Seed is the validated bootstrap data.
type Seed struct {
	Items    []library.LibraryItem
	Students []library.Student
}

// =============================================================================
// SEED FACTORY
// =============================================================================

type SeedFactory struct{}

func NewSeedFactory() *SeedFactory {
	return &SeedFactory{}
}

// ParseSeed parses a JSON document into a Seed.
func (f *SeedFactory) ParseSeed(jsonStr string) (*Seed, error) {
	var sj SeedJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse seed JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// LoadFile reads a seed file. An empty path yields the built-in seed.
func (f *SeedFactory) LoadFile(path string) (*Seed, error) {
	if path == "" {
		return f.ParseSeed(DefaultSeedJSON)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return f.ParseSeed(string(data))
}

// FromJSON validates every entry. Duplicate serials or rolls are rejected
// since the seed is hand-edited and a duplicate is almost always a typo.
func (f *SeedFactory) FromJSON(sj SeedJSON) (*Seed, error) {
	seed := &Seed{}

	serials := make(map[string]bool)
	for i, ij := range sj.Items {
		cat := library.CategoryBook
		if ij.Category != "" {
			c, ok := library.ParseCategory(ij.Category)
			if !ok {
				return nil, fmt.Errorf("item %d: %w", i, &library.ValidationError{Entity: "library item", Field: "category", Reason: "is not Book, Journal or Article: " + ij.Category})
			}
			cat = c
		}
		item, err := library.NewLibraryItem(ij.Serial, ij.Name, cat)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if serials[item.Serial] {
			return nil, fmt.Errorf("item %d: duplicate serial %s: %w", i, item.Serial, library.ErrValidation)
		}
		serials[item.Serial] = true
		seed.Items = append(seed.Items, item)
	}

	rolls := make(map[string]bool)
	for i, stj := range sj.Students {
		st, err := library.NewStudent(stj.Roll, stj.Name, stj.Branch)
		if err != nil {
			return nil, fmt.Errorf("student %d: %w", i, err)
		}
		if rolls[st.Roll] {
			return nil, fmt.Errorf("student %d: duplicate roll %s: %w", i, st.Roll, library.ErrValidation)
		}
		rolls[st.Roll] = true
		seed.Students = append(seed.Students, st)
	}

	return seed, nil
}

// ToJSON converts a Seed back to its JSON form.
func (f *SeedFactory) ToJSON(seed *Seed) SeedJSON {
	sj := SeedJSON{}
	for _, it := range seed.Items {
		sj.Items = append(sj.Items, ItemJSON{Serial: it.Serial, Name: it.Name, Category: string(it.Category)})
	}
	for _, st := range seed.Students {
		sj.Students = append(sj.Students, StudentJSON{Roll: st.Roll, Name: st.Name, Branch: st.Branch})
	}
	return sj
}
