package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Store used by tests across packages.
type Fake struct {
	mu       sync.Mutex
	objects  map[string][]byte
	Signs    []string
	Deletes  []string
	SignErr  error
	DelErr   error
	signSeq  int
	basePath string
}

// NewFake creates an empty in-memory store.
func NewFake() *Fake {
	return &Fake{
		objects:  make(map[string][]byte),
		basePath: "fake-store/",
	}
}

func (f *Fake) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *Fake) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *Fake) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DelErr != nil {
		return f.DelErr
	}
	delete(f.objects, key)
	f.Deletes = append(f.Deletes, key)
	return nil
}

func (f *Fake) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignErr != nil {
		return "", f.SignErr
	}
	f.signSeq++
	f.Signs = append(f.Signs, key)
	return fmt.Sprintf("https://signed.example/%s?sig=%d&ttl=%d", key, f.signSeq, int(ttl.Seconds())), nil
}

func (f *Fake) Holds(ref string) bool {
	if ref == "" {
		return false
	}
	if !strings.Contains(ref, "://") {
		return true
	}
	return strings.HasPrefix(ref, "https://objects.example/")
}

func (f *Fake) KeyFor(ref string) string {
	return strings.TrimPrefix(ref, "https://objects.example/")
}

// Contains reports whether an object is currently stored, for assertions.
func (f *Fake) Contains(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}
