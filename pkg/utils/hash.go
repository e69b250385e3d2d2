package utils

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultBufferSize is the read buffer used for streaming digests.
const DefaultBufferSize = 64 * 1024

// Algorithm names a digest algorithm.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	SHA512 Algorithm = "sha512"
	MD5    Algorithm = "md5"
)

// ErrEmptyFolder is returned when a folder has no files to hash.
var ErrEmptyFolder = errors.New("folder has no files")

// NewHash returns a fresh hash for alg.
func NewHash(alg Algorithm) (hash.Hash, error) {
	switch Algorithm(strings.ToLower(string(alg))) {
	case SHA256, "":
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA512:
		return sha512.New(), nil
	case MD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", alg)
	}
}

// HashFile computes the SHA256 hash of a file
func HashFile(path string) (string, error) {
	return HashPath(context.Background(), path, SHA256, DefaultBufferSize)
}

// HashPath streams the bytes of path through alg. A folder hashes as the
// concatenation of every regular file beneath it in walk order; a folder
// with no files returns ErrEmptyFolder.
func HashPath(ctx context.Context, path string, alg Algorithm, bufSize int) (string, error) {
	h, err := NewHash(alg)
	if err != nil {
		return "", err
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	buf := make([]byte, bufSize)

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		if err := copyFile(ctx, h, path, buf); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	files := 0
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		files++
		return copyFile(ctx, h, p, buf)
	})
	if err != nil {
		return "", err
	}
	if files == 0 {
		return "", ErrEmptyFolder
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashPathMulti computes every algorithm in algs over path, one task per
// algorithm, and joins them into a single comparable key.
func HashPathMulti(ctx context.Context, path string, algs []Algorithm, bufSize int) (string, error) {
	if len(algs) <= 1 {
		alg := SHA256
		if len(algs) == 1 {
			alg = algs[0]
		}
		return HashPath(ctx, path, alg, bufSize)
	}

	sums := make([]string, len(algs))
	g, gctx := errgroup.WithContext(ctx)
	for i, alg := range algs {
		g.Go(func() error {
			sum, err := HashPath(gctx, path, alg, bufSize)
			if err != nil {
				return err
			}
			sums[i] = string(alg) + ":" + sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(sums, "|"), nil
}

// copyFile streams one file into h using buf, checking ctx between reads.
func copyFile(ctx context.Context, h hash.Hash, path string, buf []byte) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := file.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
