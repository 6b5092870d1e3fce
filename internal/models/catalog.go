package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang-statement-reconciler/internal/normalize"
)

// Row is one item of one period, flattened out of its section with the
// section identity copied onto it. Position is the zero-based index of the
// item within its section in the source period.
type Row struct {
	SectionGaap  string
	SectionLabel string
	ItemGaap     string
	ItemLabel    string
	Values       map[string]ValueCell
	Position     int
}

// SectionKey returns the identity of the row's section
func (r *Row) SectionKey() string {
	return normalize.SectionKey(r.SectionGaap, r.SectionLabel)
}

// NormalizedLabel returns the row's item label in comparison form
func (r *Row) NormalizedLabel() string {
	return normalize.NormalizeLabel(r.ItemLabel)
}

// IdentityKind discriminates how a catalog item is identified
type IdentityKind int

const (
	// ByTag identifies an item by its taxonomy tag
	ByTag IdentityKind = iota + 1
	// ByLabel identifies an item by its normalized label
	ByLabel
)

// String returns the string representation of IdentityKind
func (k IdentityKind) String() string {
	switch k {
	case ByTag:
		return "tag"
	case ByLabel:
		return "label"
	default:
		return "unknown"
	}
}

// ItemIdentity is the identity an entry was created under
type ItemIdentity struct {
	Kind  IdentityKind
	Value string
}

// TagIdentity identifies an item by tag
func TagIdentity(tag string) ItemIdentity {
	return ItemIdentity{Kind: ByTag, Value: tag}
}

// LabelIdentity identifies an item by its normalized label
func LabelIdentity(label string) ItemIdentity {
	return ItemIdentity{Kind: ByLabel, Value: normalize.NormalizeLabel(label)}
}

func (id ItemIdentity) String() string {
	return id.Kind.String() + ":" + id.Value
}

// CatalogKey addresses one catalog entry. Ordinal disambiguates entries that
// were created under the same identity within one section.
type CatalogKey struct {
	Section string
	Item    ItemIdentity
	Ordinal int
}

func (k CatalogKey) String() string {
	s := k.Item.String() + "|" + k.Section
	if k.Ordinal > 0 {
		s += fmt.Sprintf("#%d", k.Ordinal+1)
	}
	return s
}

// CatalogEntry is the unified, cross-period record of one line item
type CatalogEntry struct {
	Key          CatalogKey           `json:"-" yaml:"-"`
	SectionGaap  string               `json:"section_gaap" yaml:"section_gaap"`
	SectionLabel string               `json:"section_label" yaml:"section_label"`
	ItemGaap     string               `json:"item_gaap" yaml:"item_gaap"`
	ItemLabel    string               `json:"item_label" yaml:"item_label"`
	Values       map[string]ValueCell `json:"values" yaml:"values"`
	NeedsReview  bool                 `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
	ReviewReason string               `json:"review_reason,omitempty" yaml:"review_reason,omitempty"`

	// Sources records, per period key, the filing period that supplied the value.
	Sources map[string]string `json:"-" yaml:"-"`
	// Positions records the item's position in each filing period it appeared in.
	Positions map[string]int `json:"-" yaml:"-"`
}

// NewCatalogEntry creates an entry from the row that first introduced the item
func NewCatalogEntry(key CatalogKey, row *Row) *CatalogEntry {
	return &CatalogEntry{
		Key:          key,
		SectionGaap:  row.SectionGaap,
		SectionLabel: row.SectionLabel,
		ItemGaap:     row.ItemGaap,
		ItemLabel:    row.ItemLabel,
		Values:       make(map[string]ValueCell),
		Sources:      make(map[string]string),
		Positions:    make(map[string]int),
	}
}

// SectionKey returns the identity of the entry's section
func (e *CatalogEntry) SectionKey() string {
	return normalize.SectionKey(e.SectionGaap, e.SectionLabel)
}

// AsRow views the entry as a row so the item matcher can compare it
func (e *CatalogEntry) AsRow() *Row {
	return &Row{
		SectionGaap:  e.SectionGaap,
		SectionLabel: e.SectionLabel,
		ItemGaap:     e.ItemGaap,
		ItemLabel:    e.ItemLabel,
		Values:       e.Values,
		Position:     -1,
	}
}

// PeriodKeys returns the entry's period keys, newest first
func (e *CatalogEntry) PeriodKeys() []string {
	keys := make([]string, 0, len(e.Values))
	for k := range e.Values {
		keys = append(keys, k)
	}
	return normalize.SortPeriodsNewestFirst(keys)
}

// Clone returns a deep copy of the entry
func (e *CatalogEntry) Clone() *CatalogEntry {
	c := *e
	c.Values = make(map[string]ValueCell, len(e.Values))
	for k, v := range e.Values {
		c.Values[k] = v
	}
	c.Sources = make(map[string]string, len(e.Sources))
	for k, v := range e.Sources {
		c.Sources[k] = v
	}
	c.Positions = make(map[string]int, len(e.Positions))
	for k, v := range e.Positions {
		c.Positions[k] = v
	}
	return &c
}

// SectionRef describes one catalog section in first-appearance order
type SectionRef struct {
	Key   string
	Gaap  string
	Label string
}

// Catalog is the insertion-ordered collection of entries for one statement type
type Catalog struct {
	entries map[CatalogKey]*CatalogEntry
	order   []CatalogKey
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[CatalogKey]*CatalogEntry)}
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Get looks up an entry by key
func (c *Catalog) Get(key CatalogKey) (*CatalogEntry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Add appends a new entry. Keys are never reused.
func (c *Catalog) Add(entry *CatalogEntry) error {
	if _, exists := c.entries[entry.Key]; exists {
		return fmt.Errorf("catalog entry already exists: %s", entry.Key)
	}
	c.entries[entry.Key] = entry
	c.order = append(c.order, entry.Key)
	return nil
}

// NextOrdinal returns the lowest ordinal not yet used for section and identity
func (c *Catalog) NextOrdinal(section string, identity ItemIdentity) int {
	for ordinal := 0; ; ordinal++ {
		if _, exists := c.entries[CatalogKey{Section: section, Item: identity, Ordinal: ordinal}]; !exists {
			return ordinal
		}
	}
}

// Keys returns the entry keys in catalog order
func (c *Catalog) Keys() []CatalogKey {
	if c == nil {
		return nil
	}
	return append([]CatalogKey(nil), c.order...)
}

// Entries returns the entries in catalog order
func (c *Catalog) Entries() []*CatalogEntry {
	if c == nil {
		return nil
	}
	out := make([]*CatalogEntry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}
	return out
}

// Sections returns the distinct sections in first-appearance order, described
// by the first entry seen for each
func (c *Catalog) Sections() []SectionRef {
	seen := make(map[string]bool)
	var refs []SectionRef
	for _, e := range c.Entries() {
		key := e.SectionKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, SectionRef{Key: key, Gaap: e.SectionGaap, Label: e.SectionLabel})
	}
	return refs
}

// EntriesInSection returns the entries of one section in catalog order
func (c *Catalog) EntriesInSection(sectionKey string) []*CatalogEntry {
	var out []*CatalogEntry
	for _, e := range c.Entries() {
		if e.SectionKey() == sectionKey {
			out = append(out, e)
		}
	}
	return out
}

// PeriodKeys returns the union of all entries' period keys, newest first
func (c *Catalog) PeriodKeys() []string {
	set := make(map[string]bool)
	for _, e := range c.Entries() {
		for k := range e.Values {
			set[k] = true
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return normalize.SortPeriodsNewestFirst(keys)
}

// Reorder replaces the catalog order. keys must be a permutation of the
// current keys.
func (c *Catalog) Reorder(keys []CatalogKey) error {
	if len(keys) != len(c.order) {
		return fmt.Errorf("reorder expects %d keys, got %d", len(c.order), len(keys))
	}
	seen := make(map[CatalogKey]bool, len(keys))
	for _, k := range keys {
		if _, ok := c.entries[k]; !ok {
			return fmt.Errorf("unknown catalog key: %s", k)
		}
		if seen[k] {
			return fmt.Errorf("duplicate catalog key: %s", k)
		}
		seen[k] = true
	}
	c.order = append([]CatalogKey(nil), keys...)
	return nil
}

// Clone returns a deep copy; merges work on clones so earlier snapshots stay valid
func (c *Catalog) Clone() *Catalog {
	out := NewCatalog()
	if c == nil {
		return out
	}
	for _, k := range c.order {
		out.entries[k] = c.entries[k].Clone()
		out.order = append(out.order, k)
	}
	return out
}

// MarshalJSON writes the catalog as an object whose keys follow catalog order
func (c *Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key.String())
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SortedValueKeys returns the keys of a values map in ascending order
func SortedValueKeys(values map[string]ValueCell) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
