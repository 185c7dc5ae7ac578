package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photovault/internal/models"
)

type imageFixture struct {
	svc    *ImageService
	store  *memoryStore
	images *memoryImages
	purge  *recordingPurge
}

func newImageFixture(t *testing.T) *imageFixture {
	t.Helper()
	f := &imageFixture{
		store:  newMemoryStore(),
		images: newMemoryImages(),
		purge:  &recordingPurge{},
	}
	urls := NewURLIssuer(f.store, time.Hour, zerolog.Nop())
	f.svc = NewImageService(f.images, f.store, f.purge, urls, zerolog.Nop())
	return f
}

func (f *imageFixture) seed(id, owner string) models.Image {
	image := models.Image{
		ID:          id,
		UserID:      owner,
		Filename:    id + ".webp",
		PreviewPath: owner + "/previews/" + id + ".webp",
		FullPath:    owner + "/full/" + id + ".webp",
		MIMEType:    "image/webp",
	}
	f.images.records[id] = image
	f.store.objects[image.PreviewPath] = []byte("p")
	f.store.objects[image.FullPath] = []byte("f")
	return image
}

var (
	alice = models.User{ID: "alice", Role: models.UserRoleUser}
	bob   = models.User{ID: "bob", Role: models.UserRoleUser}
	admin = models.User{ID: "root", Role: models.UserRoleAdmin}
)

func TestImageServiceGetEnforcesOwnership(t *testing.T) {
	f := newImageFixture(t)
	img := f.seed("img1", alice.ID)

	view, err := f.svc.Get(context.Background(), alice, "img1")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/"+img.PreviewPath, view.PreviewURL)
	assert.Equal(t, "https://signed.example/"+img.FullPath, view.FullURL)

	_, err = f.svc.Get(context.Background(), bob, "img1")
	assert.ErrorIs(t, err, ErrImageNotFound)

	_, err = f.svc.Get(context.Background(), admin, "img1")
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), alice, "missing")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestImageServiceListSignsEachImage(t *testing.T) {
	f := newImageFixture(t)
	f.seed("a1", alice.ID)
	f.seed("a2", alice.ID)
	f.seed("b1", bob.ID)

	views, err := f.svc.List(context.Background(), alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, alice.ID, v.Image.UserID)
		assert.NotEmpty(t, v.PreviewURL)
	}

	all, err := f.svc.ListAll(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestImageServiceListWithSigningOutage(t *testing.T) {
	f := newImageFixture(t)
	f.seed("a1", alice.ID)
	f.store.signErr = errors.New("signer down")

	views, err := f.svc.List(context.Background(), alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].PreviewURL)
	assert.Empty(t, views[0].FullURL)
}

func TestImageServiceDelete(t *testing.T) {
	f := newImageFixture(t)
	img := f.seed("img1", alice.ID)

	require.ErrorIs(t, f.svc.Delete(context.Background(), bob, "img1"), ErrImageNotFound)
	assert.Len(t, f.images.records, 1)

	require.NoError(t, f.svc.Delete(context.Background(), alice, "img1"))
	assert.Empty(t, f.images.records)
	assert.Empty(t, f.store.keys())
	assert.Equal(t, [][]string{img.ObjectPaths()}, f.store.deletes)
	assert.Empty(t, f.purge.batches)
}

func TestImageServiceDeleteQueuesSurvivingObjects(t *testing.T) {
	f := newImageFixture(t)
	img := f.seed("img1", alice.ID)
	f.store.deleteErr = errors.New("delete refused")

	require.NoError(t, f.svc.Delete(context.Background(), alice, "img1"))
	assert.Empty(t, f.images.records)
	assert.Equal(t, [][]string{img.ObjectPaths()}, f.purge.batches)
	assert.Equal(t, []string{"image_delete"}, f.purge.reasons)
}

func TestImageServiceDeleteKeepsObjectsWhenRecordDeleteFails(t *testing.T) {
	f := newImageFixture(t)
	f.seed("img1", alice.ID)
	f.images.deleteErr = errors.New("db down")

	err := f.svc.Delete(context.Background(), alice, "img1")
	assert.Error(t, err)
	assert.Len(t, f.store.keys(), 2)
	assert.Empty(t, f.store.deletes)
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		page, perPage int
		limit, offset int
	}{
		{page: 1, perPage: 10, limit: 10, offset: 0},
		{page: 3, perPage: 10, limit: 10, offset: 20},
		{page: 0, perPage: 0, limit: defaultPerPage, offset: 0},
		{page: -2, perPage: 1000, limit: maxPerPage, offset: 0},
		{page: math.MaxInt, perPage: 50, limit: 50, offset: (maxPage - 1) * 50},
		{page: maxPage + 1, perPage: 0, limit: defaultPerPage, offset: (maxPage - 1) * defaultPerPage},
	}
	for _, tt := range tests {
		limit, offset := Paginate(tt.page, tt.perPage)
		assert.Equal(t, tt.limit, limit)
		assert.Equal(t, tt.offset, offset)
	}
}

type ttlSigner struct{ ttl time.Duration }

func (s *ttlSigner) Sign(_ context.Context, _ string, ttl time.Duration) (string, error) {
	s.ttl = ttl
	return "https://signed.example", nil
}

func TestURLIssuerDefaultsTTL(t *testing.T) {
	signer := &ttlSigner{}
	NewURLIssuer(signer, 0, zerolog.Nop()).Sign(context.Background(), "a/b")
	assert.Equal(t, time.Hour, signer.ttl)

	NewURLIssuer(signer, 15*time.Minute, zerolog.Nop()).Sign(context.Background(), "a/b")
	assert.Equal(t, 15*time.Minute, signer.ttl)
}

func TestURLIssuer(t *testing.T) {
	store := newMemoryStore()
	urls := NewURLIssuer(store, 0, zerolog.Nop())

	assert.Equal(t, "", urls.Sign(context.Background(), ""))
	assert.Equal(t, "https://signed.example/a/b", urls.Sign(context.Background(), "a/b"))

	store.signErr = errors.New("down")
	assert.Equal(t, "", urls.Sign(context.Background(), "a/b"))
}
