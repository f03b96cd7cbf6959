// Package checksum streams file content through SHA-256, SHA-512, or
// BLAKE3 and verifies the digest against an expected hex string, with
// BLAKE3 wired to lukechampine.com/blake3 alongside the stdlib SHA
// implementations, plus BSD/GNU-style checksum-file parsing for
// fetch_sha256.
package checksum

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/levitate-os/recipe/internal/progress"
	"github.com/levitate-os/recipe/internal/rerr"
	"lukechampine.com/blake3"
)

// Algorithm identifies a supported digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	BLAKE3 Algorithm = "blake3"

	chunkSize         = 1024 * 1024
	progressThreshold = 100 * 1024 * 1024
)

func newHasher(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE3:
		return blake3.New(32, nil), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
}

// VerifyFile streams path through algo in 1 MiB chunks and compares the
// resulting hex digest against expectedHex, case-insensitively. Files
// larger than 100 MiB report progress via progressOutput (pass nil to
// suppress). On mismatch, returns a HashMismatch RecipeError naming the
// algorithm, path, and both digests.
func VerifyFile(path string, algo Algorithm, expectedHex string, progressOutput io.Writer) error {
	got, err := HashFile(path, algo, progressOutput)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHex) {
		return &rerr.RecipeError{
			Kind:     rerr.HashMismatch,
			Algo:     string(algo),
			Path:     path,
			Expected: expectedHex,
			Got:      got,
		}
	}
	return nil
}

// HashFile returns the hex digest of path under algo.
func HashFile(path string, algo Algorithm, progressOutput io.Writer) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", rerr.Wrap(rerr.IoError, "selecting hash algorithm", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", rerr.Wrap(rerr.IoError, "opening file for hashing: "+path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", rerr.Wrap(rerr.IoError, "stat-ing file for hashing: "+path, err)
	}

	var pw *progress.Writer
	var w io.Writer = h
	if progressOutput != nil && info.Size() > progressThreshold {
		pw = progress.NewWriter(h, info.Size(), progressOutput)
		w = pw
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		return "", rerr.Wrap(rerr.IoError, "reading file for hashing: "+path, err)
	}
	if pw != nil {
		pw.Finish()
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

var (
	bsdLineRe = regexp.MustCompile(`^[A-Za-z0-9_-]+ \(([^)]+)\) = ([0-9a-fA-F]{64})$`)
	gnuLineRe = regexp.MustCompile(`^([0-9a-fA-F]{64}) [ *](.+)$`)
)

// IsValidSHA256 reports whether s is 64 hex characters.
func IsValidSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ParseChecksumFile scans the lines of a downloaded checksum file for an
// entry naming filename, accepting BSD-style ("SHA256 (filename) = hex")
// and GNU-style ("hex  filename" or "hex *filename") lines.
func ParseChecksumFile(content, filename string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		if m := bsdLineRe.FindStringSubmatch(line); m != nil {
			if m[1] == filename && IsValidSHA256(m[2]) {
				return strings.ToLower(m[2]), true
			}
			continue
		}

		if m := gnuLineRe.FindStringSubmatch(line); m != nil {
			if m[2] == filename && IsValidSHA256(m[1]) {
				return strings.ToLower(m[1]), true
			}
		}
	}
	return "", false
}
