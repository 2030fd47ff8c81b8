package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/notemate/internal/filestore"
	"github.com/xxxsen/notemate/internal/repo"
)

// OrphanFileCleanupJob removes stored files that no document or note image
// references. Files younger than grace are left alone so an upload that is
// still being registered is never collected.
type OrphanFileCleanupJob struct {
	store  filestore.Store
	docs   *repo.DocumentRepo
	images *repo.NoteImageRepo
	grace  time.Duration
	now    func() time.Time
}

func NewOrphanFileCleanupJob(store filestore.Store, docs *repo.DocumentRepo, images *repo.NoteImageRepo, grace time.Duration) *OrphanFileCleanupJob {
	return &OrphanFileCleanupJob{store: store, docs: docs, images: images, grace: grace, now: time.Now}
}

func (j *OrphanFileCleanupJob) Name() string {
	return "orphan_file_cleanup"
}

func (j *OrphanFileCleanupJob) Run(ctx context.Context) error {
	grace := j.grace
	if grace <= 0 {
		grace = time.Hour
	}
	files, err := j.store.List(ctx)
	if err != nil {
		return err
	}
	cutoff := j.now().Add(-grace)
	candidates := make([]string, 0, len(files))
	for _, f := range files {
		if f.ModTime.Before(cutoff) {
			candidates = append(candidates, f.Key)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	referenced := make(map[string]struct{}, len(candidates))
	for _, lookup := range []func(context.Context, []string) ([]string, error){j.docs.ListFileKeys, j.images.ListFileKeys} {
		keys, err := lookup(ctx, candidates)
		if err != nil {
			return err
		}
		for _, k := range keys {
			referenced[k] = struct{}{}
		}
	}
	logger := logutil.GetLogger(ctx)
	var removed atomic.Int32
	var eg errgroup.Group
	eg.SetLimit(4)
	for _, key := range candidates {
		if _, ok := referenced[key]; ok {
			continue
		}
		eg.Go(func() error {
			if err := j.store.Delete(ctx, key); err != nil {
				logger.Warn("remove orphan file failed", zap.String("key", key), zap.Error(err))
				return nil
			}
			removed.Add(1)
			return nil
		})
	}
	_ = eg.Wait()
	if n := removed.Load(); n > 0 {
		logger.Info("orphan files removed", zap.Int32("count", n))
	}
	return nil
}
