// Package asset is the SQL-backed catalog of data assets: named pointers
// to where a piece of data lives, in the object store or in a table.
package asset

import (
	"strings"
	"time"

	"github.com/koustreak/hydrahub/internal/errs"
)

// StorageType says what kind of system holds an asset.
type StorageType string

const (
	StorageObject StorageType = "OBJECT"
	StorageTable  StorageType = "TABLE"
)

// Valid reports whether t is a known storage type.
func (t StorageType) Valid() bool {
	return t == StorageObject || t == StorageTable
}

// Asset is one catalog row.
type Asset struct {
	ID              string      `json:"id"`
	Path            string      `json:"path"`
	StorageType     StorageType `json:"storage_type"`
	StorageLocation string      `json:"storage_location"`
	AssetType       string      `json:"asset_type"`
	OwnerUUID       string      `json:"owner_uuid"`
	DateCreated     time.Time   `json:"date_created"`
	DateModified    time.Time   `json:"date_modified"`
}

// CreateInput holds the caller-supplied fields of a new asset. Every
// field is required.
type CreateInput struct {
	Path            string      `json:"path"`
	StorageType     StorageType `json:"storage_type"`
	StorageLocation string      `json:"storage_location"`
	AssetType       string      `json:"asset_type"`
	OwnerUUID       string      `json:"owner_uuid"`
}

// Validate returns an invalid-input error listing every problem with in.
func (in CreateInput) Validate() error {
	var issues []errs.Issue
	issues = required(issues, "path", &in.Path)
	issues = storageType(issues, &in.StorageType)
	issues = required(issues, "storage_location", &in.StorageLocation)
	issues = required(issues, "asset_type", &in.AssetType)
	issues = required(issues, "owner_uuid", &in.OwnerUUID)
	if len(issues) > 0 {
		return errs.Invalid(issues...)
	}
	return nil
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Path            *string      `json:"path,omitempty"`
	StorageType     *StorageType `json:"storage_type,omitempty"`
	StorageLocation *string      `json:"storage_location,omitempty"`
	AssetType       *string      `json:"asset_type,omitempty"`
	OwnerUUID       *string      `json:"owner_uuid,omitempty"`
}

// IsZero reports whether in changes nothing.
func (in UpdateInput) IsZero() bool {
	return in.Path == nil && in.StorageType == nil && in.StorageLocation == nil &&
		in.AssetType == nil && in.OwnerUUID == nil
}

// Validate checks the fields that are set.
func (in UpdateInput) Validate() error {
	var issues []errs.Issue
	if in.Path != nil {
		issues = required(issues, "path", in.Path)
	}
	if in.StorageType != nil {
		issues = storageType(issues, in.StorageType)
	}
	if in.StorageLocation != nil {
		issues = required(issues, "storage_location", in.StorageLocation)
	}
	if in.AssetType != nil {
		issues = required(issues, "asset_type", in.AssetType)
	}
	if in.OwnerUUID != nil {
		issues = required(issues, "owner_uuid", in.OwnerUUID)
	}
	if len(issues) > 0 {
		return errs.Invalid(issues...)
	}
	return nil
}

func required(issues []errs.Issue, field string, v *string) []errs.Issue {
	if strings.TrimSpace(*v) == "" {
		return append(issues, errs.Issue{Field: field, Message: "must not be empty"})
	}
	return issues
}

func storageType(issues []errs.Issue, t *StorageType) []errs.Issue {
	if !t.Valid() {
		return append(issues, errs.Issue{Field: "storage_type", Message: "must be OBJECT or TABLE"})
	}
	return issues
}
