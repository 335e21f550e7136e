// Package blobstore keeps attachment bytes outside the record store.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Delete when the blob is already gone
var ErrNotFound = errors.New("blob not found")

// Store uploads and releases attachment blobs
type Store interface {
	// Upload stores r under a unique name derived from name and returns its reference
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
	// Delete releases the blob behind ref; ErrNotFound when nothing is stored there
	Delete(ctx context.Context, ref string) error
}

// Local stores blobs in a directory served under a public URL path
type Local struct {
	dir        string
	publicPath string
	now        func() time.Time
	log        zerolog.Logger
}

// NewLocal creates the directory if needed
func NewLocal(dir, publicPath string, log zerolog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Local{
		dir:        dir,
		publicPath: "/" + strings.Trim(publicPath, "/"),
		now:        time.Now,
		log:        log.With().Str("component", "blobstore").Logger(),
	}, nil
}

// Upload writes r to <dir>/<unix millis>-<name>
func (s *Local) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%d-%s", s.now().UnixMilli(), sanitizeName(name))
	full := filepath.Join(s.dir, filename)

	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(full)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	ref := path.Join(s.publicPath, filename)
	s.log.Debug().Str("ref", ref).Msg("Blob uploaded")
	return ref, nil
}

// Delete removes the file a reference points to
func (s *Local) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	s.log.Debug().Str("ref", ref).Msg("Blob deleted")
	return nil
}

// resolve maps a reference back into the blob directory, rejecting anything outside it
func (s *Local) resolve(ref string) (string, error) {
	rel := strings.TrimPrefix(ref, s.publicPath+"/")
	if rel == ref || rel == "" || strings.ContainsAny(rel, `/\`) || rel == "." || rel == ".." {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	return filepath.Join(s.dir, rel), nil
}

// sanitizeName keeps the base name and replaces characters unsafe in URLs
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/' || r == '?' || r == '#' || r == '%' || r < 0x20:
			return '-'
		}
		return r
	}, name)
}
