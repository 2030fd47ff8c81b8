package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/notemate/internal/filestore"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/pkg/jwt"
)

const fileRemoveConcurrency = 4

// FileService hands out short-lived signed URLs for stored files and
// serves them back.
type FileService struct {
	store  filestore.Store
	secret []byte
	ttl    time.Duration
}

func NewFileService(store filestore.Store, secret string, ttl time.Duration) *FileService {
	return &FileService{store: store, secret: []byte(secret), ttl: ttl}
}

func (s *FileService) SignedURL(fileKey, downloadAs, contentType string) (string, error) {
	token, err := jwt.GenerateFileToken(fileKey, downloadAs, contentType, s.secret, s.ttl)
	if err != nil {
		return "", err
	}
	return "/api/v1/files/" + token, nil
}

// OpenSigned validates the token and opens the file it grants. Invalid or
// expired tokens are reported as ErrNotFound.
func (s *FileService) OpenSigned(ctx context.Context, token string) (*jwt.FileClaims, io.ReadCloser, error) {
	claims, err := jwt.ParseFileToken(token, s.secret)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", appErr.ErrNotFound, err)
	}
	rc, err := s.store.Open(ctx, claims.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return claims, rc, nil
}

// removeFiles deletes keys from the store after their records are gone.
// Failures are logged; the orphan cleanup job retries them later.
func removeFiles(ctx context.Context, store filestore.Store, keys []string) {
	if len(keys) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(fileRemoveConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := store.Delete(ctx, key); err != nil {
				logutil.GetLogger(ctx).Warn("remove stored file failed", zap.String("file_key", key), zap.Error(err))
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}
