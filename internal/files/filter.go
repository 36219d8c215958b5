package files

import (
	"strings"
	"time"
)

// Filter holds optional predicates over a listing. Every predicate that is
// set must hold for an entry to be kept; unset predicates impose nothing.
type Filter struct {
	NameContains   string
	NameStartsWith string
	NameEndsWith   string

	// Extensions accepts entries whose extension is any of these,
	// compared case-insensitively with one leading dot ignored.
	Extensions []string

	MinSize *int64 // inclusive
	MaxSize *int64 // inclusive

	ModifiedAfter  *time.Time // inclusive
	ModifiedBefore *time.Time // inclusive
}

// IsZero reports whether f has no predicates set.
func (f *Filter) IsZero() bool {
	return f == nil || (f.NameContains == "" && f.NameStartsWith == "" && f.NameEndsWith == "" &&
		len(f.Extensions) == 0 && f.MinSize == nil && f.MaxSize == nil &&
		f.ModifiedAfter == nil && f.ModifiedBefore == nil)
}

// Match reports whether e satisfies every predicate in f.
func (f *Filter) Match(e Entry) bool {
	if f == nil {
		return true
	}
	name := strings.ToLower(e.Name)

	if f.NameContains != "" && !strings.Contains(name, strings.ToLower(f.NameContains)) {
		return false
	}
	if f.NameStartsWith != "" && !strings.HasPrefix(name, strings.ToLower(f.NameStartsWith)) {
		return false
	}
	if f.NameEndsWith != "" && !strings.HasSuffix(name, strings.ToLower(f.NameEndsWith)) {
		return false
	}

	if len(f.Extensions) > 0 {
		ext := Extension(e.Name)
		ok := false
		for _, want := range f.Extensions {
			if strings.ToLower(strings.TrimPrefix(want, ".")) == ext {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if f.MinSize != nil && e.Size < *f.MinSize {
		return false
	}
	if f.MaxSize != nil && e.Size > *f.MaxSize {
		return false
	}

	if f.ModifiedAfter != nil && e.LastModified.Before(*f.ModifiedAfter) {
		return false
	}
	if f.ModifiedBefore != nil && e.LastModified.After(*f.ModifiedBefore) {
		return false
	}
	return true
}

// Extension returns the lower-cased text after the last '.' in name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
