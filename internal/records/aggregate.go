package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source is the read-only data store the aggregator pulls from.
type Source interface {
	GetCase(ctx context.Context, caseID string) (Case, error)
	GetParty(ctx context.Context, partyID string) (Party, error)
	GetStaff(ctx context.Context, staffID string) (Staff, error)
	ListRelatedParties(ctx context.Context, caseID string) ([]RelatedParty, error)
	ListProperties(ctx context.Context, caseID string) ([]Property, error)
}

const defaultFetchTimeout = 5 * time.Second

type Aggregator struct {
	source  Source
	timeout time.Duration
	logger  *slog.Logger
}

// NewAggregator returns an aggregator whose secondary fetches are each bounded by
// timeout. A zero timeout uses five seconds; a nil logger uses slog.Default.
func NewAggregator(source Source, timeout time.Duration, logger *slog.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{source: source, timeout: timeout, logger: logger}
}

// Aggregate loads the case and then, concurrently, its primary party, assigned
// staff, related parties and properties. Only a missing case is an error; a failed
// or timed-out secondary fetch is logged and leaves that slice empty.
func (a *Aggregator) Aggregate(ctx context.Context, caseID string) (*Graph, error) {
	c, err := a.source.GetCase(ctx, caseID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("load case %s: %w", caseID, err)
	}

	graph := &Graph{Case: c}
	var g errgroup.Group

	if c.PrimaryPartyID != "" {
		g.Go(func() error {
			party, ok := fetch(ctx, a, caseID, "primary_party", func(ctx context.Context) (Party, error) {
				return a.source.GetParty(ctx, c.PrimaryPartyID)
			})
			if ok {
				graph.PrimaryParty = &party
			}
			return nil
		})
	}
	if c.AssignedStaffID != "" {
		g.Go(func() error {
			staff, ok := fetch(ctx, a, caseID, "assigned_staff", func(ctx context.Context) (Staff, error) {
				return a.source.GetStaff(ctx, c.AssignedStaffID)
			})
			if ok {
				graph.AssignedStaff = &staff
			}
			return nil
		})
	}
	g.Go(func() error {
		graph.RelatedParties, _ = fetch(ctx, a, caseID, "related_parties", func(ctx context.Context) ([]RelatedParty, error) {
			return a.source.ListRelatedParties(ctx, caseID)
		})
		return nil
	})
	g.Go(func() error {
		graph.Properties, _ = fetch(ctx, a, caseID, "properties", func(ctx context.Context) ([]Property, error) {
			return a.source.ListProperties(ctx, caseID)
		})
		return nil
	})

	_ = g.Wait()
	return graph, nil
}

func fetch[T any](ctx context.Context, a *Aggregator, caseID, slice string, load func(context.Context) (T, error)) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	value, err := load(ctx)
	if err != nil {
		a.logger.Warn("secondary fetch failed",
			slog.String("case_id", caseID),
			slog.String("slice", slice),
			slog.String("error", err.Error()),
		)
		var zero T
		return zero, false
	}
	return value, true
}
