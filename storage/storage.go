// Package storage publishes a report directory to static hosting. Every
// upload lands under a prefix derived from the directory's content, so
// publishing the same report twice gives the same URL.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"capybara/logging"
	"capybara/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const hashLength = 12

type Publisher interface {
	Put(ctx context.Context, path string, content []byte) error

	// Finish completes a publication under prefix and returns its URL.
	Finish(ctx context.Context, prefix string) (string, error)
}

// HashDir digests the relative paths and contents of all files below dir.
func HashDir(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	slices.Sort(files)

	h := sha256.New()
	for _, rel := range files {
		io.WriteString(h, rel)
		h.Write([]byte{0})

		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil))[:hashLength], nil
}

// Files lists the files below dir relative to it, the files of a directory
// before its subdirectories, each group sorted by name.
func Files(dir string) ([]string, error) {
	var out []string

	var walk func(rel string) error
	walk = func(rel string) error {
		entries, err := os.ReadDir(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}

		var subdirs []string
		for _, e := range entries {
			switch {
			case e.IsDir():
				subdirs = append(subdirs, path.Join(rel, e.Name()))
			case e.Type().IsRegular():
				out = append(out, path.Join(rel, e.Name()))
			}
		}

		for _, sub := range subdirs {
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}
	return out, nil
}

// Publish uploads every file of dir under its content hash and returns the
// URL of the published report.
func Publish(ctx context.Context, p Publisher, dir string) (string, error) {
	ctx, span := tracing.Start(ctx, "publish", attribute.String("dir", dir))
	defer span.End()

	log := logging.FromContext(ctx)

	prefix, err := HashDir(dir)
	if err != nil {
		return "", tracing.Error(span, err)
	}
	span.SetAttributes(attribute.String("prefix", prefix))

	files, err := Files(dir)
	if err != nil {
		return "", tracing.Error(span, err)
	}

	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return "", tracing.Error(span, err)
		}

		target := path.Join(prefix, rel)
		log.Info("uploading", zap.String("path", target))

		if err := p.Put(ctx, target, content); err != nil {
			return "", tracing.Errorf(span, "uploading %s: %w", target, err)
		}
	}

	url, err := p.Finish(ctx, prefix)
	if err != nil {
		return "", tracing.Error(span, err)
	}

	return url, nil
}
