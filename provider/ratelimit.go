package provider

import (
	"io"

	"github.com/juju/ratelimit"
)

// RateLimited returns a ReaderWrapper that caps the read rate at bytesPerSecond.
// The bucket is shared by every reader it wraps, so the cap applies to the
// sum of all concurrent uploads. A non-positive rate disables limiting.
func RateLimited(bytesPerSecond int64) ReaderWrapper {
	if bytesPerSecond <= 0 {
		return nil
	}
	bucket := ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond)
	return func(r io.Reader) io.Reader {
		return ratelimit.Reader(r, bucket)
	}
}
