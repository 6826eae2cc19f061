package delivery

import (
	"context"
	"fmt"
	"math"
	"time"
)

// HistoryStats summarizes the history screen.
type HistoryStats struct {
	Total          int     `json:"total"`
	Delivered      int     `json:"delivered"`
	Partial        int     `json:"partial"`
	Failed         int     `json:"failed"`
	TotalCollected float64 `json:"totalCollected"`
}

// History is a date range of terminal orders.
type History struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Orders []Order      `json:"orders"`
	Stats  HistoryStats `json:"stats"`
}

// LifetimeStats is the courier's all-time performance.
type LifetimeStats struct {
	TotalDeliveries int     `json:"totalDeliveries"`
	Successful      int     `json:"successful"`
	TotalCollected  float64 `json:"totalCollected"`
	SuccessRate     int     `json:"successRate"`
}

// SummarizeHistory counts history orders; returned orders count as failed.
func SummarizeHistory(orders []Order) HistoryStats {
	s := HistoryStats{Total: len(orders)}
	for _, o := range orders {
		switch o.DeliveryStatus {
		case StatusDelivered:
			s.Delivered++
		case StatusPartial:
			s.Partial++
		case StatusFailed, StatusReturned:
			s.Failed++
		}
		if o.DeliveryStatus.IsSuccessful() && o.CollectedAmount != nil {
			s.TotalCollected += *o.CollectedAmount
		}
	}
	return s
}

// SummarizeLifetime aggregates terminal outcomes. SuccessRate is a rounded
// percentage, 0 when there are no deliveries.
func SummarizeLifetime(outcomes []Outcome) LifetimeStats {
	s := LifetimeStats{TotalDeliveries: len(outcomes)}
	for _, o := range outcomes {
		if o.Status.IsSuccessful() {
			s.Successful++
			s.TotalCollected += o.CollectedAmount
		}
	}
	if s.TotalDeliveries > 0 {
		s.SuccessRate = int(math.Round(float64(s.Successful) / float64(s.TotalDeliveries) * 100))
	}
	return s
}

// HistoryRange returns [today-days+1, today] as calendar days.
func HistoryRange(now time.Time, days int) (time.Time, time.Time) {
	if days <= 0 {
		days = 1
	}
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return to.AddDate(0, 0, -(days - 1)), to
}

// History loads the courier's terminal orders between from and to inclusive.
func (m *Manager) History(ctx context.Context, from, to time.Time) (History, error) {
	if !m.identity.Resolved() {
		return History{}, ErrNoCourier
	}
	if to.Before(from) {
		from, to = to, from
	}
	orders, err := m.remote.History(ctx, m.identity.SalesmanID, from, to)
	if err != nil {
		return History{}, fmt.Errorf("load history: %w", err)
	}
	if orders == nil {
		orders = []Order{}
	}
	return History{
		From:   from.Format(DateLayout),
		To:     to.Format(DateLayout),
		Orders: orders,
		Stats:  SummarizeHistory(orders),
	}, nil
}

// Lifetime computes all-time performance for the courier.
func (m *Manager) Lifetime(ctx context.Context) (LifetimeStats, error) {
	if !m.identity.Resolved() {
		return LifetimeStats{}, ErrNoCourier
	}
	outcomes, err := m.remote.LifetimeOutcomes(ctx, m.identity.SalesmanID)
	if err != nil {
		return LifetimeStats{}, fmt.Errorf("load lifetime stats: %w", err)
	}
	return SummarizeLifetime(outcomes), nil
}
