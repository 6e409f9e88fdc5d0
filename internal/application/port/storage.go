package port

import "context"

// KeyValueStore persists opaque string records under fixed keys.
// Get returns found=false, not an error, when the key is absent.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ImageStore keeps uploaded leaf images and hands back a URI for them
type ImageStore interface {
	Save(ctx context.Context, name string, content []byte) (uri string, err error)
	Load(ctx context.Context, uri string) ([]byte, error)
	Delete(ctx context.Context, uri string) error
}
