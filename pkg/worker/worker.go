// Package worker drives batches of candidates through extraction and the
// resolution cascade with a bounded goroutine pool. Network latency
// dominates resolution, so entities resolve concurrently; within one entity
// the cascade stays sequential by priority.
package worker

import (
	"context"
	"sync"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/seiri/pkg/approval"
	"github.com/shishobooks/seiri/pkg/book"
	"github.com/shishobooks/seiri/pkg/config"
	"github.com/shishobooks/seiri/pkg/resolver"
	"github.com/shishobooks/seiri/pkg/source"
	"github.com/shishobooks/seiri/pkg/tags"
)

type Worker struct {
	cfg      *config.Config
	log      logger.Logger
	reader   *tags.Reader
	resolver *resolver.Resolver
	store    *approval.Store
}

func New(cfg *config.Config, store *approval.Store, sources ...source.Source) *Worker {
	return &Worker{
		cfg:      cfg,
		log:      logger.New(),
		reader:   tags.NewReader(cfg.CoverCacheDir),
		resolver: resolver.New(cfg.Resolver.ConfidenceThreshold, sources...),
		store:    store,
	}
}

// Store exposes the approval store the worker populates.
func (w *Worker) Store() *approval.Store {
	return w.store
}

// ProcessBatch resolves every candidate and registers the results in the
// store. Cancellation stops feeding the pool; entities already resolved
// stay in the store, the rest remain pending and can be re-run later. One
// entity failing never aborts the others.
func (w *Worker) ProcessBatch(ctx context.Context, cands []book.Candidate) error {
	queue := make(chan book.Candidate)
	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Worker.Processes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range queue {
				w.processOne(ctx, cand)
			}
		}()
	}

feed:
	for _, cand := range cands {
		select {
		case queue <- cand:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	return ctx.Err()
}

// Resolve reruns extraction and the cascade for a single entity by id.
func (w *Worker) Resolve(ctx context.Context, id string) (*book.Entity, error) {
	existing, err := w.store.Get(id)
	if err != nil {
		return nil, err
	}
	entity := w.processOne(ctx, existing.Candidate)
	return entity, nil
}

func (w *Worker) processOne(ctx context.Context, cand book.Candidate) *book.Entity {
	ctx = w.log.WithContext(ctx)
	log := w.log.Data(logger.Data{"entity_id": cand.ID, "key": cand.Key})

	entity := book.NewEntity(cand)

	res := w.reader.Extract(ctx, &cand)
	tags.Apply(entity, res)
	if len(res.Errors) > 0 {
		log.Warn("some members failed extraction", logger.Data{"failed": len(res.Errors), "total": len(cand.Files)})
	}

	if err := w.resolver.Resolve(ctx, entity); err != nil {
		// Worst case is four unresolved fields, which is still a
		// valid, displayable entity.
		log.Err(err).Error("resolution error")
	}

	w.store.Put(entity)
	log.Info("entity resolved", logger.Data{
		"author": entity.Author.Source,
		"series": entity.Series.Source,
		"title":  entity.Title.Source,
	})
	return entity
}
