package storage

import (
	"context"
	"time"
)

// Observer receives one call per store operation.
type Observer interface {
	RecordStorage(op string, duration time.Duration, bytes int64, err error)
}

type instrumented struct {
	Store
	obs Observer
}

// Instrument wraps s so every operation is reported to obs. A nil obs
// returns s unchanged.
func Instrument(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &instrumented{Store: s, obs: obs}
}

func (i *instrumented) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	start := time.Now()
	err := i.Store.Put(ctx, objectPath, data, contentType)
	i.obs.RecordStorage("put", time.Since(start), int64(len(data)), err)
	return err
}

func (i *instrumented) Sign(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	start := time.Now()
	u, err := i.Store.Sign(ctx, objectPath, ttl)
	i.obs.RecordStorage("sign", time.Since(start), 0, err)
	return u, err
}

func (i *instrumented) Delete(ctx context.Context, objectPaths []string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, objectPaths)
	i.obs.RecordStorage("delete", time.Since(start), 0, err)
	return err
}
