package helpers

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/levitate-os/recipe/internal/rerr"
	"github.com/ulikunitz/xz"
)

// extractArchive extracts path (format tar.gz/tar.xz/tar.bz2/zip) into
// destDir. Adapted from an action-object/params extraction model to a
// direct call, trimmed to the four formats recipes need.
func extractArchive(path, format, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return rerr.Wrap(rerr.IoError, "creating extract destination", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return rerr.Wrap(rerr.IoError, "opening archive "+path, err)
	}
	defer f.Close()

	switch format {
	case "tar.gz", "tgz":
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return rerr.Wrap(rerr.IoError, "opening gzip stream", err)
		}
		defer gzr.Close()
		return extractTar(tar.NewReader(gzr), destDir)
	case "tar.xz", "txz":
		xzr, err := xz.NewReader(f)
		if err != nil {
			return rerr.Wrap(rerr.IoError, "opening xz stream", err)
		}
		return extractTar(tar.NewReader(xzr), destDir)
	case "tar.bz2", "tbz2", "tbz":
		return extractTar(tar.NewReader(bzip2.NewReader(f)), destDir)
	case "zip":
		return extractZip(path, destDir)
	default:
		return rerr.New(rerr.IoError, "unsupported archive format: "+format)
	}
}

// detectFormat infers an archive format from its filename's suffix.
func detectFormat(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		return "tar.bz2"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	default:
		return ""
	}
}

func extractTar(tr *tar.Reader, destDir string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return rerr.Wrap(rerr.IoError, "reading tar header", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return rerr.Wrap(rerr.IoError, "creating directory "+target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return rerr.Wrap(rerr.IoError, "creating parent dir for "+target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return rerr.Wrap(rerr.IoError, "creating file "+target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return rerr.Wrap(rerr.IoError, "writing file "+target, err)
			}
			out.Close()
		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destDir); err != nil {
				return rerr.Wrap(rerr.IoError, "unsafe symlink in archive", err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return rerr.Wrap(rerr.IoError, "creating symlink "+target, err)
			}
		}
	}
}

func extractZip(path, destDir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return rerr.Wrap(rerr.IoError, "opening zip archive", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		target, err := safeJoin(destDir, zf.Name)
		if err != nil {
			return err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return rerr.Wrap(rerr.IoError, "creating directory "+target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return rerr.Wrap(rerr.IoError, "creating parent dir for "+target, err)
		}

		rc, err := zf.Open()
		if err != nil {
			return rerr.Wrap(rerr.IoError, "opening zip entry "+zf.Name, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, zf.Mode())
		if err != nil {
			rc.Close()
			return rerr.Wrap(rerr.IoError, "creating file "+target, err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return rerr.Wrap(rerr.IoError, "writing file "+target, copyErr)
		}
	}
	return nil
}

// safeJoin joins destDir with an archive entry's name, confining it to
// destDir: the name is cleaned as if rooted, so "../" segments and a
// leading "/" resolve inside destDir instead of escaping it. Any result
// that still lands outside destDir is rejected.
func safeJoin(destDir, name string) (string, error) {
	cleaned := strings.TrimPrefix(filepath.Clean("/"+name), "/")
	target := filepath.Join(destDir, cleaned)
	if target != destDir && !strings.HasPrefix(target, destDir+string(filepath.Separator)) {
		return "", rerr.New(rerr.IoError, fmt.Sprintf("archive entry escapes destination: %s", name))
	}
	return target, nil
}

func validateSymlinkTarget(linkTarget, linkLocation, destDir string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if resolved != destDir && !strings.HasPrefix(resolved, destDir+string(filepath.Separator)) {
		return fmt.Errorf("symlink target escapes destination: %s -> %s", linkLocation, linkTarget)
	}
	return nil
}
