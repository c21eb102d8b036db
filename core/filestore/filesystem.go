package filestore

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/civicwatch/backend/core/logger"
)

const uploadsPrefix = "/uploads/"

// LocalFilesystem stores blobs under <static root>/uploads and serves them
// back on /uploads/<key>.
type LocalFilesystem struct {
	uploadFolder string
}

// NewLocalFilesystem returns a filestore rooted at staticRoot. If
// staticRoot is empty, a default "wwwroot" folder relative to the process
// working directory is used instead, so a missing static-file
// configuration never fails a request.
func NewLocalFilesystem(staticRoot string) (*LocalFilesystem, error) {
	if staticRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve working directory: %w", err)
		}
		staticRoot = filepath.Join(wd, "wwwroot")
		logger.Default().Warnln("no static root configured, falling back to", staticRoot)
	}
	return &LocalFilesystem{uploadFolder: filepath.Join(staticRoot, "uploads")}, nil
}

// UploadFolder returns the directory blobs are written to.
func (f *LocalFilesystem) UploadFolder() string {
	return f.uploadFolder
}

// Put streams the blob to a new file named key in the upload folder. The
// folder is created on demand.
func (f *LocalFilesystem) Put(key string, r io.Reader) error {
	if strings.Contains(key, "..") || strings.ContainsRune(key, os.PathSeparator) {
		return fmt.Errorf("invalid blob key %q", key)
	}
	if err := os.MkdirAll(f.uploadFolder, 0700); err != nil {
		return fmt.Errorf("cannot create upload folder %s: %w", f.uploadFolder, err)
	}
	dstFile, err := os.Create(filepath.Join(f.uploadFolder, key))
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", key, err)
	}
	defer dstFile.Close()
	if _, err = io.Copy(dstFile, r); err != nil {
		os.Remove(dstFile.Name())
		return fmt.Errorf("cannot write %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob for the key.
func (f *LocalFilesystem) Delete(key string) error {
	return os.Remove(filepath.Join(f.uploadFolder, key))
}

// PublicPath returns the relative URL path for the key, stable across
// restarts so stored rows keep working.
func (f *LocalFilesystem) PublicPath(key string) string {
	return uploadsPrefix + key
}

// HandleRoutes serves the upload folder statically on /uploads/.
func (f *LocalFilesystem) HandleRoutes(router *mux.Router) {
	logger.Default().Debugln("filestore routes enabled")
	logger.Default().Debugln("  handle route: /uploads/{file} GET")
	router.PathPrefix(uploadsPrefix).Handler(
		http.StripPrefix(uploadsPrefix, http.FileServer(http.Dir(f.uploadFolder)))).
		Methods(http.MethodGet)
}
