package provider

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"hash"
	"io"
)

// ErrChecksumMismatch is returned when a store reports a digest for an upload
// that differs from the digest of the bytes sent.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumReader wraps an io.Reader to compute an MD5 digest while reading.
type ChecksumReader struct {
	r    io.Reader
	hash hash.Hash
	n    int64
}

// NewChecksumReader creates a new ChecksumReader that wraps the given reader.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{
		r:    r,
		hash: md5.New(),
	}
}

// Read reads data from the underlying reader and updates the digest.
func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.n += int64(n)
		cr.hash.Write(p[:n])
	}
	return n, err
}

// Checksum returns the hex encoded digest of the bytes read so far.
func (cr *ChecksumReader) Checksum() string {
	return hex.EncodeToString(cr.hash.Sum(nil))
}

// BytesRead returns the total number of bytes read.
func (cr *ChecksumReader) BytesRead() int64 {
	return cr.n
}

// digest drains r and returns the hex MD5 of everything read.
func digest(r io.Reader) (string, error) {
	cr := NewChecksumReader(r)
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return "", err
	}
	return cr.Checksum(), nil
}
