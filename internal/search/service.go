package search

import (
	"context"
	"log/slog"

	"exchangedocs/internal/util"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  Searcher
	indexer  Indexer
	fallback Searcher
	loader   Loader
	logger   *slog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{logger: util.Logger()}
	if meili != nil {
		s.primary = meili
		s.indexer = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts
	}
	return s
}

func (s *Service) primaryHealthy() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primaryHealthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("search: meilisearch error, falling back to pgfts", slog.String("error", err.Error()))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("search: pgfts error", slog.String("error", err.Error()))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexGenerated indexes a generated document (fire-and-forget to Meilisearch).
func (s *Service) IndexGenerated(rec Record) {
	if s.indexer == nil || !s.primaryHealthy() {
		return
	}
	go func() {
		if err := s.indexer.IndexGenerated(rec); err != nil {
			s.logger.Warn("search: index generated document", slog.String("id", rec.ID), slog.String("error", err.Error()))
		}
	}()
}

// DeleteGenerated removes a generated document from the index (fire-and-forget).
func (s *Service) DeleteGenerated(id string) {
	if s.indexer == nil || !s.primaryHealthy() {
		return
	}
	go func() {
		if err := s.indexer.DeleteGenerated(id); err != nil {
			s.logger.Warn("search: delete generated document", slog.String("id", id), slog.String("error", err.Error()))
		}
	}()
}

// ReindexAllFromPG pushes the whole generated-document log into Meilisearch.
// Called at start-up when Meilisearch is reachable.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.indexer == nil || !s.primaryHealthy() || s.loader == nil {
		return
	}
	recs, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("search: reindex load failed", slog.String("error", err.Error()))
		return
	}
	if len(recs) == 0 {
		return
	}
	if err := s.indexer.IndexAll(recs); err != nil {
		s.logger.Error("search: reindex generated documents", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("search: reindexed generated documents", slog.Int("count", len(recs)))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
