package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

// ensure interface is implemented
var _ Collections = (*S3Provider)(nil)

// S3Provider stores collections as key prefixes in an S3 bucket.
// A collection is represented by a zero-byte marker object ending in '/'.
type S3Provider struct {
	client   *s3.Client
	bucket   string
	prefix   string
	uploader *manager.Uploader
	wrap     ReaderWrapper
}

// NewS3Provider creates a new S3Provider.
// bucket is the S3 bucket name.
func NewS3Provider(ctx context.Context, bucket string, prefix string) (*S3Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Provider{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// WithReaderWrapper decorates reads of local files during PutObject.
func (p *S3Provider) WithReaderWrapper(wrap ReaderWrapper) *S3Provider {
	p.wrap = wrap
	return p
}

// buildKey constructs the full S3 key based on the provider's prefix
func (p *S3Provider) buildKey(subPath string) string {
	subPath = strings.TrimPrefix(subPath, "/")
	if p.prefix == "" {
		return subPath
	}
	// Avoid double slashes
	key := path.Join(p.prefix, subPath)
	return strings.TrimPrefix(key, "/")
}

func (p *S3Provider) collectionKey(pth string) string {
	key := p.buildKey(pth)
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return key
}

// MakeCollection writes a directory marker. S3 has no real directories, and
// PutObject on an existing marker is a no-op overwrite, so this is idempotent.
func (p *S3Provider) MakeCollection(ctx context.Context, pth string) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.collectionKey(pth)),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return fmt.Errorf("failed to write collection marker %q: %w", pth, err)
	}
	return nil
}

// CollectionExists treats any object under the prefix as proof of existence.
func (p *S3Provider) CollectionExists(ctx context.Context, pth string) (bool, error) {
	out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(p.collectionKey(pth)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list failed for %q: %w", pth, err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// PutObject streams the file to S3 with the manager uploader. When S3 reports
// the MD5 of the stored object it must match the bytes sent.
func (p *S3Provider) PutObject(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	sent := NewChecksumReader(f)
	var body io.Reader = sent
	if p.wrap != nil {
		body = p.wrap(body)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	out, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.buildKey(remotePath)),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return verifyUpload(remotePath, sent, stat.Size(), out.ETag, out.ServerSideEncryption)
}

// ChecksumObject returns the MD5 S3 computed on upload. Objects whose ETag is
// not an MD5 are read back and hashed.
func (p *S3Provider) ChecksumObject(ctx context.Context, remotePath string) (string, error) {
	key := aws.String(p.buildKey(remotePath))
	head, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    key,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, remotePath)
		}
		return "", fmt.Errorf("head failed for %q: %w", remotePath, err)
	}
	if sum, ok := etagMD5(head.ETag, head.ServerSideEncryption); ok {
		return sum, nil
	}

	obj, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    key,
	})
	if err != nil {
		return "", fmt.Errorf("get failed for %q: %w", remotePath, err)
	}
	defer obj.Body.Close()

	sum, err := digest(obj.Body)
	if err != nil {
		return "", fmt.Errorf("read failed for %q: %w", remotePath, err)
	}
	return sum, nil
}

func verifyUpload(remotePath string, sent *ChecksumReader, size int64, etag *string, sse types.ServerSideEncryption) error {
	if sent.BytesRead() != size {
		return fmt.Errorf("sent %d of %d bytes to %q, the file changed during upload", sent.BytesRead(), size, remotePath)
	}
	stored, ok := etagMD5(etag, sse)
	if ok && stored != sent.Checksum() {
		return fmt.Errorf("%w: %s stored as %s, sent %s", ErrChecksumMismatch, remotePath, stored, sent.Checksum())
	}
	return nil
}

// etagMD5 returns the MD5 carried by a single part ETag. Multipart ETags end
// in "-<parts>" and KMS encrypted objects carry an opaque tag.
func etagMD5(etag *string, sse types.ServerSideEncryption) (string, bool) {
	if etag == nil {
		return "", false
	}
	switch sse {
	case types.ServerSideEncryptionAwsKms, types.ServerSideEncryptionAwsKmsDsse:
		return "", false
	}
	tag := strings.ToLower(strings.Trim(*etag, `"`))
	if len(tag) != 2*md5.Size {
		return "", false
	}
	if _, err := hex.DecodeString(tag); err != nil {
		return "", false
	}
	return tag, true
}
