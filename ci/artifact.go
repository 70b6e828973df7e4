package ci

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"capybara/cache"
	"capybara/logging"
	"capybara/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxEntryBytes = uint64(16 << 30)

// ArtifactCache remembers where artifacts were stored.
type ArtifactCache interface {
	Lookup(ctx context.Context, runID int64, name string) (cache.Entry, error)
	Record(ctx context.Context, e cache.Entry) error
}

type Downloader struct {
	client *Client
	cache  ArtifactCache
	dir    string
}

// NewDownloader stores artifacts below dir. The cache may be nil.
func NewDownloader(client *Client, c ArtifactCache, dir string) *Downloader {
	return &Downloader{client: client, cache: c, dir: dir}
}

// RunDir is the directory holding the artifacts of a run, named after the run
// creation time and the commit it was built from.
func RunDir(run Run) string {
	stamp := run.CreatedAt.UTC().Format("2006-01-02T15:04:05-07:00")
	return strings.ReplaceAll(stamp, ":", "-") + "_" + run.HeadSHA
}

// Download fetches the artifact called name from run and returns the path of
// the extracted file. Files already present are not fetched again.
func (d *Downloader) Download(ctx context.Context, run Run, name string) (string, error) {
	ctx, span := tracing.Start(ctx, "download_artifact",
		attribute.Int64("run.id", run.ID),
		attribute.String("artifact.name", name),
	)
	defer span.End()

	log := logging.FromContext(ctx).With(zap.Int64("run", run.ID), zap.String("artifact", name))

	outPath := filepath.Join(d.dir, RunDir(run), name)

	if _, err := os.Stat(outPath); err == nil {
		log.Debug("artifact already on disk", zap.String("path", outPath))
		return outPath, nil
	}

	if d.cache != nil {
		e, err := d.cache.Lookup(ctx, run.ID, name)
		switch {
		case err == nil:
			log.Debug("artifact found in cache", zap.String("path", e.Path))
			return e.Path, nil
		case !errors.Is(err, cache.ErrMiss):
			log.Warn("artifact cache unavailable", zap.Error(err))
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", tracing.Error(span, err)
	}

	id, err := d.client.artifactID(ctx, run.ID, name)
	if err != nil {
		return "", tracing.Error(span, err)
	}

	u, err := d.client.archiveURL(ctx, id)
	if err != nil {
		return "", tracing.Error(span, err)
	}

	log.Info("downloading artifact", zap.Int64("id", id))

	archive, err := d.fetch(ctx, u.String(), filepath.Dir(outPath))
	if err != nil {
		return "", tracing.Error(span, err)
	}
	defer os.Remove(archive)

	sum, size, err := extract(archive, name, outPath)
	if err != nil {
		return "", tracing.Error(span, err)
	}

	if d.cache != nil {
		if err := d.cache.Record(ctx, cache.Entry{
			RunID:  run.ID,
			Name:   name,
			Path:   outPath,
			SHA256: sum,
			Size:   size,
		}); err != nil {
			log.Warn("could not record artifact in cache", zap.Error(err))
		}
	}

	span.SetAttributes(attribute.Int64("artifact.size", size))
	log.Info("artifact stored", zap.String("path", outPath), zap.Int64("bytes", size))

	return outPath, nil
}

// fetch downloads the zip archive at u into a temporary file in dir.
func (d *Downloader) fetch(ctx context.Context, u string, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.client.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error downloading artifact: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(dir, "artifact-*.zip")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("error downloading artifact: %w", err)
	}

	return tmp.Name(), nil
}

// extract writes the archive member called name, or the only member when the
// archive holds a single file, to outPath.
func extract(archive string, name string, outPath string) (string, int64, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", 0, fmt.Errorf("error opening artifact archive: %w", err)
	}
	defer zr.Close()

	var member *zip.File
	var files []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f)
		if f.Name == name {
			member = f
		}
	}

	if member == nil && len(files) == 1 {
		member = files[0]
	}
	if member == nil {
		return "", 0, fmt.Errorf("%w: archive has no member %s", ErrArtifactNotFound, name)
	}

	if member.UncompressedSize64 > maxEntryBytes {
		return "", 0, fmt.Errorf("archive member %s is too large (%d bytes)", member.Name, member.UncompressedSize64)
	}

	src, err := member.Open()
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	tmpPath := outPath + ".part"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, err
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(dst, hash), io.LimitReader(src, int64(maxEntryBytes)))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, fmt.Errorf("error extracting %s: %w", member.Name, err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
