// Package dedup computes content fingerprints used to detect re-ingestion
// of already archived photos.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// sampleSize is the number of bytes hashed from the head, middle and tail
// of large files. Files smaller than 3*sampleSize are hashed whole.
const sampleSize = 4096

// smallFileLimit is the size below which the whole file is hashed.
const smallFileLimit = 3 * sampleSize

// Fingerprint returns the content fingerprint "{size}_{sha256hex}" for a
// file exposed through an io.ReaderAt. Large media files are sampled at the
// first, middle and last 4 KiB instead of being read fully; including the
// size in the key guards against collisions the partial sampling could
// otherwise produce.
func Fingerprint(r io.ReaderAt, size int64) (string, error) {
	h := sha256.New()

	if size < smallFileLimit {
		buf := make([]byte, size)
		if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
			return "", err
		}
		h.Write(buf)
	} else {
		buf := make([]byte, sampleSize)
		offsets := []int64{0, size / 2, size - sampleSize}
		for _, off := range offsets {
			if _, err := r.ReadAt(buf, off); err != nil && err != io.EOF {
				return "", err
			}
			h.Write(buf)
		}
	}

	return fmt.Sprintf("%d_%s", size, hex.EncodeToString(h.Sum(nil))), nil
}

// FingerprintFile opens path and fingerprints it.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return Fingerprint(f, info.Size())
}
