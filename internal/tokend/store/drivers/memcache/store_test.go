package memcache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/signalhaus/tokend/internal/tokend/store"
	memcachestore "github.com/signalhaus/tokend/internal/tokend/store/drivers/memcache"
	"github.com/signalhaus/tokend/internal/tokend/store/storetest"
)

// fakeClient is an in-process stand-in for memcached. It ignores item
// expirations: the driver enforces expiry from the deadline embedded in
// each payload, which is what the suite exercises.
type fakeClient struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string][]byte)}
}

func (f *fakeClient) Get(key string) (*memcache.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return &memcache.Item{Key: key, Value: v}, nil
}

func (f *fakeClient) Set(item *memcache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.Key] = append([]byte(nil), item.Value...)
	return nil
}

func (f *fakeClient) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(f.items, key)
	return nil
}

func (f *fakeClient) Ping() error { return nil }

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, lookup store.UserLookup, ttl time.Duration) store.RefreshStore {
		s := memcachestore.NewWithClient(newFakeClient(), "tokend", lookup, ttl)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, storetest.Options{
		NonAtomicUse: true,
	})
}
