// Package archive wraps an export CSV in a single-entry zip and computes the
// size and SHA-1 digest the portal records for the resource.
package archive

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/logging"
)

// ReadBufferSize bounds memory used while hashing, whatever the archive size.
const ReadBufferSize = 128 * 1024

// Archive is a zip built from one export.
type Archive struct {
	Path string
	Size int64
	SHA1 string
}

// Name returns the archive file name without its directory.
func (a Archive) Name() string { return filepath.Base(a.Path) }

// EntryName is the name of the CSV inside the zip for area a.
func EntryName(a area.Area) string { return a.FileStem() + ".csv" }

// Path is where the archive for a is written inside dir.
func Path(dir string, a area.Area) string {
	return filepath.Join(dir, a.FileStem()+".csv.zip")
}

// Create zips csvPath into dir/RNB_{area}.csv.zip under the entry name
// RNB_{area}.csv, then measures and hashes the result.
func Create(ctx context.Context, dir string, a area.Area, csvPath string) (Archive, error) {
	start := time.Now()
	path := Path(dir, a)

	if err := writeZip(path, EntryName(a), csvPath); err != nil {
		return Archive{}, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return Archive{}, fmt.Errorf("stat archive: %w", err)
	}

	sum, err := SHA1Sum(path)
	if err != nil {
		return Archive{}, err
	}

	arc := Archive{Path: path, Size: fi.Size(), SHA1: sum}
	logging.WithFields(ctx, "stage", "archive").Info("zip archive for data.gouv.fr created",
		"path", arc.Path,
		"bytes", arc.Size,
		"sha1", arc.SHA1,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return arc, nil
}

func writeZip(path, entry, csvPath string) (err error) {
	src, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header: %w", err)
	}
	hdr.Name = entry
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("zip entry: %w", err)
	}
	if _, err := io.CopyBuffer(w, src, make([]byte, ReadBufferSize)); err != nil {
		return fmt.Errorf("write zip entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

// SHA1Sum returns the hex SHA-1 of the file at path, reading it in
// ReadBufferSize chunks.
func SHA1Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for sha1: %w", err)
	}
	defer f.Close()

	h := sha1.New()
	buf := make([]byte, ReadBufferSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("read for sha1: %w", rerr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
