package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	storage "github.com/supabase-community/storage-go"

	"sweepin/internal/models"
)

// ObjectClient is the part of the storage-go client the store uses.
type ObjectClient interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage.FileOptions) (storage.FileUploadResponse, error)
	DownloadFile(bucketID, filePath string, urlOptions ...storage.UrlOptions) ([]byte, error)
}

// Supabase keeps artifacts in a Supabase Storage bucket under reports/.
type Supabase struct {
	client ObjectClient
	bucket string
}

func NewSupabase(supabaseURL, key, bucket string) *Supabase {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	return NewSupabaseClient(storage.NewClient(baseURL+"/storage/v1", key, nil), bucket)
}

func NewSupabaseClient(client ObjectClient, bucket string) *Supabase {
	return &Supabase{client: client, bucket: bucket}
}

func (s *Supabase) Put(ctx context.Context, name string, data []byte) (string, error) {
	const op = "artifact.Supabase.Put"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	name, err := ArtifactName(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	objectPath := path.Join(reportsDir, name)

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := true
	_, err = s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return objectPath, nil
}

func (s *Supabase) Get(ctx context.Context, storedPath string) ([]byte, error) {
	const op = "artifact.Supabase.Get"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data, err := s.client.DownloadFile(s.bucket, storedPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return data, nil
}
