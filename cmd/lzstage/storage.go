package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/franksops/lzstage/provider"
)

// openCollections maps a storage URL to a collections backend. The returned
// close function releases it.
func openCollections(ctx context.Context, storage string, bytesPerSecond int64) (provider.Collections, func() error, error) {
	noop := func() error { return nil }
	if storage == "" {
		return nil, noop, errors.New("no storage configured, set --storage or storage in the config file")
	}

	u, err := url.Parse(storage)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid storage URL %q: %w", storage, err)
	}
	wrap := provider.RateLimited(bytesPerSecond)

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return nil, noop, fmt.Errorf("invalid storage URL %q: missing path", storage)
		}
		return provider.NewLocalProvider(u.Path).WithReaderWrapper(wrap), noop, nil
	case "s3":
		if u.Host == "" {
			return nil, noop, fmt.Errorf("invalid storage URL %q: missing bucket", storage)
		}
		p, err := provider.NewS3Provider(ctx, u.Host, strings.Trim(u.Path, "/"))
		if err != nil {
			return nil, noop, err
		}
		return p.WithReaderWrapper(wrap), noop, nil
	case "":
		return nil, noop, fmt.Errorf("invalid storage URL %q: missing scheme", storage)
	default:
		p, err := provider.OpenBlobProvider(ctx, storage)
		if err != nil {
			return nil, noop, err
		}
		p.WithReaderWrapper(wrap)
		return p, p.Close, nil
	}
}
