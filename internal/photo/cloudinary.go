package photo

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"visitordesk/internal/cloudinary"
)

// CloudinaryStore keeps photos in Cloudinary. References are public IDs.
type CloudinaryStore struct {
	client *cloudinary.Client
	now    func() time.Time
}

// NewCloudinaryStore wraps a Cloudinary client.
func NewCloudinaryStore(client *cloudinary.Client) *CloudinaryStore {
	return &CloudinaryStore{client: client, now: time.Now}
}

// Save uploads r and returns the Cloudinary public ID.
func (s *CloudinaryStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	name := FileName(s.now(), originalName)
	publicID := strings.TrimSuffix(name, filepath.Ext(name))
	res, err := s.client.Upload(ctx, r, name, publicID)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return res.PublicID, nil
}

// Open downloads the delivered image.
func (s *CloudinaryStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return s.client.Fetch(ctx, ref)
}

// Delete destroys the image.
func (s *CloudinaryStore) Delete(ctx context.Context, ref string) error {
	return s.client.Destroy(ctx, ref)
}
