package observer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/tracing"
)

const archiveExt = ".zip"

func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), archiveExt)
}

// extractTarget is the directory an archive is unpacked into.
func extractTarget(archive string) string {
	return strings.TrimSuffix(archive, filepath.Ext(archive))
}

// extract unpacks archive next to itself. It reports false without error if
// the target directory already exists.
func (p *pathObserver) extract(archive string) (bool, error) {
	target := extractTarget(archive)
	if exists(target) {
		return false, nil
	}

	_, span := p.tracer.Start(context.Background(), tracing.SpanExtract)
	span.SetAttributes(attribute.String(tracing.AttrArchive, archive))
	defer span.End()

	if err := unzip(archive, target); err != nil {
		_ = os.RemoveAll(target)
		span.SetAttributes(attribute.String(tracing.AttrErrorMessage, err.Error()))
		return false, err
	}
	log.Info(log.CatObserver, "Extracted archive", "archive", archive, "target", target)
	return true, nil
}

func unzip(archive, target string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	for _, f := range r.File {
		name := filepath.FromSlash(f.Name)
		if strings.HasPrefix(f.Name, "META-INF/") || f.Name == "META-INF" {
			continue
		}
		dest := filepath.Join(target, name)
		if !within(target, dest) {
			return fmt.Errorf("entry %q escapes the extraction directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dest, err)
			}
			continue
		}
		if err := unzipFile(f, dest); err != nil {
			return err
		}
	}
	return nil
}

func unzipFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("reading entry %s: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) // #nosec G304 -- dest is checked to be inside the target
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil { // #nosec G110 -- archives come from the local projects directory
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return out.Close()
}
