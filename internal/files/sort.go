package files

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortField names the key a listing is ordered by.
type SortField string

const (
	SortByName         SortField = "name"
	SortBySize         SortField = "size"
	SortByLastModified SortField = "lastModified"
)

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	switch f {
	case SortByName, SortBySize, SortByLastModified:
		return true
	}
	return false
}

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Valid reports whether o is a known order. Empty means ascending.
func (o SortOrder) Valid() bool {
	return o == "" || o == Asc || o == Desc
}

// Sort orders a listing by a single key.
type Sort struct {
	By    SortField
	Order SortOrder // empty means Asc
}

// apply returns a sorted copy of entries. Equal keys keep their input order.
func (s *Sort) apply(entries []Entry) []Entry {
	out := slices.Clone(entries)
	if s == nil || s.By == "" {
		return out
	}

	dir := 1
	if s.Order == Desc {
		dir = -1
	}

	var compare func(a, b Entry) int
	switch s.By {
	case SortByName:
		// Collator carries scratch buffers; one per sort call.
		col := collate.New(language.Und)
		compare = func(a, b Entry) int { return col.CompareString(a.Name, b.Name) }
	case SortBySize:
		compare = func(a, b Entry) int { return cmp.Compare(a.Size, b.Size) }
	case SortByLastModified:
		compare = func(a, b Entry) int { return a.LastModified.Compare(b.LastModified) }
	default:
		return out
	}

	slices.SortStableFunc(out, func(a, b Entry) int { return dir * compare(a, b) })
	return out
}
