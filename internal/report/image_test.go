package report

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	storage "github.com/supabase-community/storage-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweepin/internal/artifact"
	"sweepin/internal/models"
)

// memBucket is an in-memory Supabase Storage bucket.
type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memBucket) UploadFile(bucketID, relativePath string, data io.Reader, _ ...storage.FileOptions) (storage.FileUploadResponse, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return storage.FileUploadResponse{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucketID+"/"+relativePath] = raw
	return storage.FileUploadResponse{Key: relativePath}, nil
}

func (b *memBucket) DownloadFile(bucketID, filePath string, _ ...storage.UrlOptions) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.objects[bucketID+"/"+filePath]
	if !ok {
		return nil, errors.New("object not found")
	}
	return raw, nil
}

func TestReportImage_LocalRoundTrip(t *testing.T) {
	store := newMemStore("42")
	svc, _ := newFastService(t, store, &passthrough{}, 2)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: "42",
		Photos: []models.PhotoUpload{
			{Filename: "a.jpg", Data: []byte("stamped a")},
			{Filename: "b.jpg", Data: []byte("stamped b")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Images, 2)

	got, err := svc.ReportImage(context.Background(), res.Report.ID, res.Images[1].ID)
	require.NoError(t, err)
	assert.Equal(t, res.Images[1], got.Image)
	assert.Equal(t, "stamped b", string(got.Data))

	onDisk, err := os.ReadFile(res.Images[1].StoredPath)
	require.NoError(t, err)
	assert.Equal(t, onDisk, got.Data)
}

func TestReportImage_SupabaseRoundTrip(t *testing.T) {
	store := newMemStore("42")
	bucket := &memBucket{objects: map[string][]byte{}}
	pipe := &passthrough{}
	svc := NewService(Deps{
		Users:      store,
		Reports:    store,
		Composer:   stubComposer{},
		Normalizer: pipe,
		Overlayer:  pipe,
		Artifacts:  artifact.NewSupabaseClient(bucket, "sweepin"),
		Logger:     zerolog.Nop(),
	}, Options{DeepLinkBase: "https://sweepin.app", Workers: 1})

	res, err := svc.Submit(context.Background(), SubmitRequest{
		UserID: "42",
		Photos: []models.PhotoUpload{{Filename: "/phone/DCIM/IMG_9.jpg", Data: []byte("jpeg bytes")}},
	})
	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	assert.Equal(t, "reports/IMG_9.jpg", res.Images[0].StoredPath)
	assert.Contains(t, bucket.objects, "sweepin/reports/IMG_9.jpg")

	got, err := svc.ReportImage(context.Background(), res.Report.ID, res.Images[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(got.Data))

	// object vanished from the bucket
	delete(bucket.objects, "sweepin/reports/IMG_9.jpg")
	_, err = svc.ReportImage(context.Background(), res.Report.ID, res.Images[0].ID)
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestReportImage_NotFound(t *testing.T) {
	store := newMemStore("42")
	svc, _ := newFastService(t, store, &passthrough{}, 1)

	res, err := svc.Submit(context.Background(), SubmitRequest{UserID: "42", Photos: []models.PhotoUpload{{Filename: "a.jpg", Data: []byte("a")}}})
	require.NoError(t, err)
	other, err := svc.Submit(context.Background(), SubmitRequest{UserID: "42", Photos: []models.PhotoUpload{{Filename: "b.jpg", Data: []byte("b")}}})
	require.NoError(t, err)

	_, err = svc.ReportImage(context.Background(), uuid.New(), res.Images[0].ID)
	assert.ErrorIs(t, err, models.ErrReportNotFound)

	_, err = svc.ReportImage(context.Background(), res.Report.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrImageNotFound)

	// an image of another report is not reachable through this one
	_, err = svc.ReportImage(context.Background(), res.Report.ID, other.Images[0].ID)
	assert.ErrorIs(t, err, models.ErrImageNotFound)

	require.NoError(t, os.Remove(res.Images[0].StoredPath))
	_, err = svc.ReportImage(context.Background(), res.Report.ID, res.Images[0].ID)
	assert.ErrorIs(t, err, models.ErrImageNotFound)
}
