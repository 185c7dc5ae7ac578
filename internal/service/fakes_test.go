package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"photovault/internal/media/derive"
	"photovault/internal/models"
	"photovault/internal/repository"
)

var errBackend = errors.New("backend unavailable")

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	signs     int
	deletes   [][]string
	putErr    func(path string) error
	signErr   error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, objectPath string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		if err := m.putErr(objectPath); err != nil {
			return err
		}
	}
	m.objects[objectPath] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Sign(_ context.Context, objectPath string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signs++
	if m.signErr != nil {
		return "", m.signErr
	}
	return "https://signed.example/" + objectPath, nil
}

func (m *memoryStore) Delete(ctx context.Context, objectPaths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, objectPaths)
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, p := range objectPaths {
		delete(m.objects, p)
	}
	return nil
}

func (m *memoryStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts + m.signs + len(m.deletes)
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func failOn(segment string) func(string) error {
	return func(p string) error {
		if strings.Contains(p, "/"+segment+"/") {
			return errBackend
		}
		return nil
	}
}

type memoryImages struct {
	mu        sync.Mutex
	records   map[string]models.Image
	err       error
	deleteErr error
}

func newMemoryImages() *memoryImages {
	return &memoryImages{records: map[string]models.Image{}}
}

func (m *memoryImages) Create(_ context.Context, image models.Image) (models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Image{}, m.err
	}
	image.CreatedAt = time.Now()
	image.UpdatedAt = image.CreatedAt
	m.records[image.ID] = image
	return image, nil
}

func (m *memoryImages) GetByID(_ context.Context, id string) (models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	image, ok := m.records[id]
	if !ok {
		return models.Image{}, repository.ErrImageNotFound
	}
	return image, nil
}

func (m *memoryImages) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Image
	for _, image := range m.records {
		if image.UserID == userID {
			out = append(out, image)
		}
	}
	return page(out, limit, offset), nil
}

func (m *memoryImages) List(_ context.Context, limit, offset int) ([]models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Image, 0, len(m.records))
	for _, image := range m.records {
		out = append(out, image)
	}
	return page(out, limit, offset), nil
}

func (m *memoryImages) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[id]; !ok {
		return repository.ErrImageNotFound
	}
	delete(m.records, id)
	return nil
}

func page(images []models.Image, limit, offset int) []models.Image {
	sort.Slice(images, func(i, j int) bool { return images[i].ID < images[j].ID })
	if offset >= len(images) {
		return nil
	}
	end := offset + limit
	if end > len(images) {
		end = len(images)
	}
	return images[offset:end]
}

type countingGenerator struct {
	inner DerivativeGenerator
	calls int
}

func (c *countingGenerator) Generate(data []byte) (derive.Set, error) {
	c.calls++
	return c.inner.Generate(data)
}

type recordingPurge struct {
	mu      sync.Mutex
	batches [][]string
	reasons []string
	err     error
}

func (r *recordingPurge) EnqueuePurge(_ context.Context, paths []string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, paths)
	r.reasons = append(r.reasons, reason)
	return r.err
}

type recordingObserver struct {
	mu            sync.Mutex
	outcomes      []string
	compensations map[string]int
}

func (r *recordingObserver) RecordIngest(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingObserver) RecordCompensation(step string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.compensations == nil {
		r.compensations = map[string]int{}
	}
	key := step + ":ok"
	if err != nil {
		key = step + ":failed"
	}
	r.compensations[key]++
}
