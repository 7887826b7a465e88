package common

import (
	"context"
	"encoding/json"
	"fmt"
)

// ObjectStore is the store surface Bucket builds on, implemented by *S3.
// It exists so tests can substitute an in-memory store.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	GetText(ctx context.Context, bucket, key string) (string, error)
	PutText(ctx context.Context, bucket, key, body, contentType string) error
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Bucket binds an ObjectStore to a single bucket and adds JSON helpers.
type Bucket struct {
	store ObjectStore
	name  string
}

// NewBucket wraps store scoped to the named bucket.
func NewBucket(store ObjectStore, name string) *Bucket {
	return &Bucket{store: store, name: name}
}

// Name returns the bucket name.
func (b *Bucket) Name() string { return b.name }

// Exists probes for the object key.
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	return b.store.Exists(ctx, b.name, key)
}

// GetText fetches the object body as a string.
func (b *Bucket) GetText(ctx context.Context, key string) (string, error) {
	return b.store.GetText(ctx, b.name, key)
}

// GetJSON fetches the object and unmarshals it into out.
func (b *Bucket) GetJSON(ctx context.Context, key string, out interface{}) error {
	body, err := b.store.GetText(ctx, b.name, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// PutText writes body under key as text/plain.
func (b *Bucket) PutText(ctx context.Context, key, body string) error {
	return b.store.PutText(ctx, b.name, key, body, "text/plain")
}

// PutJSON marshals v with indentation and writes it under key.
func (b *Bucket) PutJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.store.PutText(ctx, b.name, key, string(data), "application/json")
}

// ListKeys lists every key under prefix.
func (b *Bucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	return b.store.ListKeys(ctx, b.name, prefix)
}
