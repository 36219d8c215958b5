// Package dataset persists named collections of object-store query
// patterns as JSON documents under the "datasets/" prefix.
package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/koustreak/hydrahub/internal/errs"
)

// QueryType is the granularity a query pattern matches at.
type QueryType string

const (
	QueryTypePath   QueryType = "objectstore/path"
	QueryTypeObject QueryType = "objectstore/object"
	QueryTypeBucket QueryType = "objectstore/bucket"
)

// Valid reports whether t is a known query type.
func (t QueryType) Valid() bool {
	switch t {
	case QueryTypePath, QueryTypeObject, QueryTypeBucket:
		return true
	}
	return false
}

// Query is one include or exclude pattern. Patterns may contain '*'
// wildcards; they are stored verbatim and never evaluated here.
type Query struct {
	Query   string    `json:"query"`
	Type    QueryType `json:"type"`
	Exclude bool      `json:"exclude"`
}

// Dataset is a named, ordered list of queries.
type Dataset struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Queries     []Query   `json:"queries"`
}

// validate reports problems with q under the given field prefix.
func (q Query) validate(field string) []errs.Issue {
	var issues []errs.Issue
	if strings.TrimSpace(q.Query) == "" {
		issues = append(issues, errs.Issue{Field: field + ".query", Message: "must not be empty"})
	}
	if !q.Type.Valid() {
		issues = append(issues, errs.Issue{
			Field:   field + ".type",
			Message: fmt.Sprintf("must be one of %s, %s, %s", QueryTypePath, QueryTypeObject, QueryTypeBucket),
		})
	}
	return issues
}

// Validate returns an invalid-input error listing every problem with q.
func (q Query) Validate() error {
	if issues := q.validate("query"); len(issues) > 0 {
		return errs.Invalid(issues...)
	}
	return nil
}

// Validate returns an invalid-input error listing every problem with d.
func (d *Dataset) Validate() error {
	var issues []errs.Issue
	if strings.TrimSpace(d.Key) == "" {
		issues = append(issues, errs.Issue{Field: "key", Message: "must not be empty"})
	}
	if strings.TrimSpace(d.Name) == "" {
		issues = append(issues, errs.Issue{Field: "name", Message: "must not be empty"})
	}
	for i, q := range d.Queries {
		issues = append(issues, q.validate(fmt.Sprintf("queries[%d]", i))...)
	}
	if len(issues) > 0 {
		return errs.Invalid(issues...)
	}
	return nil
}
