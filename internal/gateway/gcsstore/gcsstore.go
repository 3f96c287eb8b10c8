// Package gcsstore keeps product images in Google Cloud Storage.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const publicHost = "https://storage.googleapis.com"

type Store struct {
	client  *storage.Client
	baseURL string
}

// New opens a client from explicit credentials JSON, or from the application
// default credentials when credentialsJSON is empty.
func New(ctx context.Context, credentialsJSON string) (*Store, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &Store{client: client, baseURL: publicHost}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	w := s.client.Bucket(bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return nil
}

func (s *Store) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, path)
}

// PathFromURL accepts both path-style and virtual-host style object URLs.
func (s *Store) PathFromURL(bucket, rawURL string) (string, bool) {
	if prefix := fmt.Sprintf("%s/%s/", s.baseURL, bucket); strings.HasPrefix(rawURL, prefix) {
		return strings.TrimPrefix(rawURL, prefix), true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(parsed.Host)
	path := strings.TrimPrefix(parsed.Path, "/")
	switch {
	case host == "storage.googleapis.com" || host == "storage.cloud.google.com":
		parts := strings.SplitN(path, "/", 2)
		if len(parts) == 2 && parts[0] == bucket && parts[1] != "" {
			return parts[1], true
		}
	case host == bucket+".storage.googleapis.com" && path != "":
		return path, true
	}
	return "", false
}

// Remove deletes the objects. Objects that are already gone are not an error.
func (s *Store) Remove(ctx context.Context, bucket string, paths []string) error {
	var errs []error
	for _, path := range paths {
		err := s.client.Bucket(bucket).Object(path).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			errs = append(errs, fmt.Errorf("delete %s/%s: %w", bucket, path, err))
		}
	}
	return errors.Join(errs...)
}
