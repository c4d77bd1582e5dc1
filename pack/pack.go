// Package pack assembles the all-in-one distribution tarball from its prebuilt parts.
package pack

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.science.ru.nl/log"
)

// ErrMissingInput is returned when one of the bundle's input files does not exist.
var ErrMissingInput = errors.New("missing input")

// VersionFile is the name of the version marker inside the archive.
const VersionFile = "VERSION"

// Bundle lists the parts of a distribution.
type Bundle struct {
	Name      string // Base name of the produced files.
	Version   string // Written to the VERSION file.
	OutDir    string // Where the archive is written.
	WebApp    string // The web-application archive (.war).
	AppServer string // The application-server package.
	TSDB      string // The time-series-database package.
	TSDBDep   string // The storage-engine package the time-series-database depends on.
}

// Inputs returns the input files of b in archive order.
func (b Bundle) Inputs() []string {
	return []string{b.WebApp, b.AppServer, b.TSDB, b.TSDBDep}
}

// Valid checks that all mandatory fields are set and all inputs exist.
func (b Bundle) Valid() error {
	if b.Name == "" {
		return fmt.Errorf("bundle needs a name")
	}
	if b.Version == "" {
		return fmt.Errorf("bundle needs a version")
	}
	seen := map[string]string{VersionFile: VersionFile}
	for _, in := range b.Inputs() {
		if in == "" {
			return fmt.Errorf("%w: empty path in bundle %q", ErrMissingInput, b.Name)
		}
		info, err := os.Stat(in)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrMissingInput, in)
		}
		base := filepath.Base(in)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("%s and %s have the same name in the archive", prev, in)
		}
		seen[base] = in
	}
	return nil
}

// Build writes <OutDir>/<Name>.tar.gz holding the inputs and a VERSION file, and returns its path.
func Build(ctx context.Context, b Bundle) (string, error) {
	if err := b.Valid(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.OutDir, 0755); err != nil {
		return "", err
	}

	out := filepath.Join(b.OutDir, b.Name+".tar.gz")
	log.Infof("Building %s version %s", out, b.Version)
	version := []byte(b.Version + "\n")
	if err := archive(ctx, out, version, b.Inputs()...); err != nil {
		return "", err
	}
	return out, nil
}

// Archive writes files into a gzipped tar at out. Each file is stored under its base name. On error out is
// removed.
func Archive(ctx context.Context, out string, files ...string) error {
	return archive(ctx, out, nil, files...)
}

// archive is Archive, when version is not nil it is stored as the VERSION file after the other files.
func archive(ctx context.Context, out string, version []byte, files ...string) (err error) {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(out)
		}
	}()

	gz, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(gz)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := add(tw, file); err != nil {
			return fmt.Errorf("failed to add %s to %s: %w", file, out, err)
		}
	}
	if version != nil {
		hdr := &tar.Header{
			Name:    VersionFile,
			Mode:    0644,
			Size:    int64(len(version)),
			ModTime: time.Now().Truncate(time.Second),
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(version); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Close()
}

func add(tw *tar.Writer, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    filepath.Base(file),
		Mode:    int64(info.Mode().Perm()),
		Size:    info.Size(),
		ModTime: info.ModTime().Truncate(time.Second),
		Format:  tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, in)
	return err
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
