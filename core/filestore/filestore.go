package filestore

// Package filestore stores uploaded binary blobs outside of the database.
// There are two possible backends: a local filesystem and AWS S3.

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Driver is the interface for blob storage backends.
type Driver interface {
	// Put streams the blob to storage under the given key. Any failure
	// means nothing may reference the key afterwards.
	Put(key string, r io.Reader) error
	// Delete removes the blob for the key.
	Delete(key string) error
	// PublicPath returns the URL path under which the blob can be fetched.
	PublicPath(key string) string
}

// DriverType represents the different types of filestore drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation
const DriverTypeAWSS3 DriverType = "AWSS3"

// NewKey generates a globally unique blob key, preserving the file
// extension of the original upload so static servers pick the right
// content type. The random part is a 128-bit uuid, collisions are
// negligible.
func NewKey(originalName string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
}
