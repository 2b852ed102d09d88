package provider

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ensure interface is implemented
var _ Collections = (*BlobProvider)(nil)

// collectionMarker is the object written to materialise an empty collection.
const collectionMarker = ".collection"

// BlobProvider stores collections in any gocloud.dev/blob bucket
// (gs://, s3://, azblob://, mem://, file://).
type BlobProvider struct {
	bucket *blob.Bucket
	wrap   ReaderWrapper
}

// OpenBlobProvider opens the bucket behind url. The matching driver must be
// linked into the binary with a blank import.
func OpenBlobProvider(ctx context.Context, url string) (*BlobProvider, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return NewBlobProvider(bucket), nil
}

// NewBlobProvider wraps an already opened bucket.
func NewBlobProvider(bucket *blob.Bucket) *BlobProvider {
	return &BlobProvider{bucket: bucket}
}

// WithReaderWrapper decorates reads of local files during PutObject.
func (p *BlobProvider) WithReaderWrapper(wrap ReaderWrapper) *BlobProvider {
	p.wrap = wrap
	return p
}

// Close releases the bucket.
func (p *BlobProvider) Close() error {
	return p.bucket.Close()
}

func blobKey(pth string) string {
	return strings.TrimPrefix(path.Clean("/"+pth), "/")
}

func (p *BlobProvider) MakeCollection(ctx context.Context, pth string) error {
	key := path.Join(blobKey(pth), collectionMarker)
	if err := p.bucket.WriteAll(ctx, key, nil, nil); err != nil {
		return fmt.Errorf("failed to write collection marker %q: %w", pth, err)
	}
	return nil
}

func (p *BlobProvider) CollectionExists(ctx context.Context, pth string) (bool, error) {
	prefix := blobKey(pth)
	if prefix != "" {
		prefix += "/"
	}
	iter := p.bucket.List(&blob.ListOptions{Prefix: prefix})
	_, err := iter.Next(ctx)
	switch {
	case err == io.EOF:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("list failed for %q: %w", pth, err)
	}
	return true, nil
}

// PutObject streams the file into the bucket. The driver's own MD5 of the
// stored object is what ChecksumObject reports back.
func (p *BlobProvider) PutObject(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var body io.Reader = f
	if p.wrap != nil {
		body = p.wrap(body)
	}

	// Cancelling the writer's context aborts the upload instead of committing a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := p.bucket.NewWriter(wctx, blobKey(remotePath), nil)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		w.Close()
		return fmt.Errorf("blob upload failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob upload failed: %w", err)
	}
	return nil
}

// ChecksumObject prefers the MD5 attribute of the driver. Drivers that do not
// report one get the object read back and hashed.
func (p *BlobProvider) ChecksumObject(ctx context.Context, remotePath string) (string, error) {
	attrs, err := p.bucket.Attributes(ctx, blobKey(remotePath))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, remotePath)
	}
	if err != nil {
		return "", err
	}
	if len(attrs.MD5) > 0 {
		return hex.EncodeToString(attrs.MD5), nil
	}

	r, err := p.bucket.NewReader(ctx, blobKey(remotePath), nil)
	if err != nil {
		return "", fmt.Errorf("read failed for %q: %w", remotePath, err)
	}
	defer r.Close()
	return digest(r)
}
