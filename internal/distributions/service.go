package distributions

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/fieldops/internal/delivery"
	"github.com/odyssey-erp/fieldops/internal/localcache"
)

// Service resolves distribution visibility and courier assignments.
type Service struct {
	repo   Repository
	cache  localcache.Scoper
	logger *slog.Logger
}

// NewService constructs a Service. A nil cache disables the offline copy.
func NewService(repo Repository, cache localcache.Scoper, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Assignments loads the booker and distribution scope of a courier.
func (s *Service) Assignments(ctx context.Context, userID string) (delivery.Assignments, error) {
	var (
		bookers  []string
		assigned []UserDistribution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := s.repo.AssignedBookerIDs(gctx, userID)
		bookers = ids
		return err
	})
	g.Go(func() error {
		links, err := s.repo.Assigned(gctx, userID)
		assigned = links
		return err
	})
	if err := g.Wait(); err != nil {
		return delivery.Assignments{}, fmt.Errorf("load assignments: %w", err)
	}

	out := delivery.Assignments{
		BookerSalesmanIDs: append([]string{}, bookers...),
		DistributionIDs:   make([]string, 0, len(assigned)),
	}
	for _, ud := range assigned {
		out.DistributionIDs = append(out.DistributionIDs, ud.DistributionID)
	}
	return out, nil
}

// Visible returns the distributions a user may pick and the auto-selected one.
// When the database is unreachable the last cached selection is served.
func (s *Service) Visible(ctx context.Context, userID string, isAdmin bool, currentID string) (Selection, error) {
	var (
		all      []Distribution
		assigned []UserDistribution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.repo.ListActive(gctx)
		all = list
		return err
	})
	g.Go(func() error {
		links, err := s.repo.Assigned(gctx, userID)
		if err != nil {
			// Assignment lookups are best effort; the list still renders.
			s.logger.Warn("load user distributions", slog.String("user_id", userID), slog.Any("error", err))
			links = nil
		}
		assigned = links
		return nil
	})
	if err := g.Wait(); err != nil {
		if cached, ok := s.cached(ctx, userID); ok {
			s.logger.Warn("serving cached distributions", slog.String("user_id", userID), slog.Any("error", err))
			cached.Offline = true
			cached.Selected = AutoSelect(currentID, cached.Distributions, cached.Assigned, isAdmin)
			return cached, nil
		}
		return Selection{}, fmt.Errorf("load distributions: %w", err)
	}

	visible := FilterVisible(all, assigned, isAdmin)
	if assigned == nil {
		assigned = []UserDistribution{}
	}
	sel := Selection{
		Distributions: visible,
		Assigned:      assigned,
		Selected:      AutoSelect(currentID, visible, assigned, isAdmin),
	}
	if s.cache != nil {
		s.cache.Scope(userID).Set(ctx, localcache.KeyDistributions, sel)
	}
	return sel, nil
}

func (s *Service) cached(ctx context.Context, userID string) (Selection, bool) {
	if s.cache == nil {
		return Selection{}, false
	}
	var sel Selection
	if !s.cache.Scope(userID).Get(ctx, localcache.KeyDistributions, &sel) {
		return Selection{}, false
	}
	return sel, true
}

// FilterVisible keeps every distribution for admins and only assigned ones
// for everybody else.
func FilterVisible(all []Distribution, assigned []UserDistribution, isAdmin bool) []Distribution {
	if isAdmin {
		return append([]Distribution{}, all...)
	}
	ids := assignedSet(assigned)
	out := []Distribution{}
	for _, d := range all {
		if _, ok := ids[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out
}

// AutoSelect keeps current if it is still visible. Otherwise it picks the
// first visible assigned distribution, then (for admins) the first visible one.
func AutoSelect(currentID string, visible []Distribution, assigned []UserDistribution, isAdmin bool) *Distribution {
	if len(visible) == 0 {
		return nil
	}
	if currentID != "" {
		for i := range visible {
			if visible[i].ID == currentID {
				d := visible[i]
				return &d
			}
		}
	}
	if len(assigned) > 0 {
		ids := assignedSet(assigned)
		for i := range visible {
			if _, ok := ids[visible[i].ID]; ok {
				d := visible[i]
				return &d
			}
		}
		d := visible[0]
		return &d
	}
	if isAdmin {
		d := visible[0]
		return &d
	}
	return nil
}

func assignedSet(assigned []UserDistribution) map[string]struct{} {
	ids := make(map[string]struct{}, len(assigned))
	for _, ud := range assigned {
		ids[ud.DistributionID] = struct{}{}
	}
	return ids
}

var _ delivery.AssignmentSource = (*Service)(nil)
