package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsTimeout = time.Second * 50

// GCSStore keeps objects in a Google Cloud Storage bucket under a prefix.
type GCSStore struct {
	cl         *storage.Client
	bucketName string
	uploadPath string
}

// NewGCSStore creates a client using credentialsFile when given, otherwise
// the application default credentials.
func NewGCSStore(ctx context.Context, bucketName, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &GCSStore{
		cl:         client,
		bucketName: bucketName,
		uploadPath: "images/",
	}, nil
}

func (s *GCSStore) object(name string) *storage.ObjectHandle {
	return s.cl.Bucket(s.bucketName).Object(s.uploadPath + name)
}

func (s *GCSStore) Save(ctx context.Context, name string, r io.Reader) error {
	if err := ValidName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	// Upload an object with storage.Writer.
	wc := s.object(name).NewWriter(ctx)
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}
	return nil
}

func (s *GCSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	rc, err := s.object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	return rc, err
}

func (s *GCSStore) Remove(ctx context.Context, name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	err := s.object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotExist
	}
	return err
}

func (s *GCSStore) Close() error {
	return s.cl.Close()
}
