package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atx-oem/sesdrop/model"
)

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

// Memory is an in-memory Client used by tests. Listings are returned in
// lexical key order, which mirrors S3's listing behavior.
type Memory struct {
	mu      sync.Mutex
	objects map[string]map[string]memoryObject

	// Clock supplies LastModified for Put when set; defaults to time.Now.
	Clock func() time.Time
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]map[string]memoryObject)}
}

func (m *Memory) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// Seed stores an object with an explicit LastModified timestamp.
func (m *Memory) Seed(bucket, key string, data []byte, lastModified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]memoryObject)
	}
	m.objects[bucket][key] = memoryObject{data: data, lastModified: lastModified}
}

func (m *Memory) List(ctx context.Context, bucket, prefix string) ([]model.StorageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var objects []model.StorageObject
	for key, obj := range m.objects[bucket] {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		objects = append(objects, model.StorageObject{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *Memory) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, &NotFoundError{Bucket: bucket, Key: key}
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

func (m *Memory) Put(ctx context.Context, bucket, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]memoryObject)
	}
	m.objects[bucket][key] = memoryObject{data: data, lastModified: m.now()}
	return nil
}

func (m *Memory) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects[bucket], key)
	return nil
}

// Keys returns every key in the bucket in lexical order.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects[bucket]))
	for key := range m.objects[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NotFoundError reports a Get against a missing key.
type NotFoundError struct {
	Bucket string
	Key    string
}

func (e *NotFoundError) Error() string {
	return "object not found: " + e.Bucket + "/" + e.Key
}
