package service

import (
	"context"
	"time"

	"github.com/Monthlyaway/ishort/internal/repository"
)

const (
	DefaultAnalyticsDays = 30
	MaxAnalyticsDays     = 365
)

// LinkStats summarises one link
type LinkStats struct {
	LinkID       int64      `json:"linkId,string"`
	Slug         string     `json:"shortUrl"`
	Title        string     `json:"title"`
	Clicks       uint64     `json:"clicks"`
	WindowClicks int        `json:"windowClicks"`
	LastClicked  *time.Time `json:"lastClicked"`
}

// DailyClicks is the click count of one UTC day
type DailyClicks struct {
	Date   string `json:"date"`
	Clicks int    `json:"clicks"`
}

// Analytics is the dashboard chart data for one user
type Analytics struct {
	From        string        `json:"from"`
	To          string        `json:"to"`
	TotalLinks  int           `json:"totalLinks"`
	TotalClicks uint64        `json:"totalClicks"`
	Links       []LinkStats   `json:"links"`
	Daily       []DailyClicks `json:"daily"`
}

// AnalyticsService aggregates click events for dashboards
type AnalyticsService struct {
	store *repository.Store
	now   func() time.Time
}

// NewAnalyticsService creates a new analytics service instance
func NewAnalyticsService(store *repository.Store) *AnalyticsService {
	return &AnalyticsService{store: store, now: time.Now}
}

// ForUser joins the click events of uid's own links over the last days days
func (s *AnalyticsService) ForUser(ctx context.Context, uid string, days int) (*Analytics, error) {
	if days <= 0 {
		days = DefaultAnalyticsDays
	}
	if days > MaxAnalyticsDays {
		days = MaxAnalyticsDays
	}

	links, err := s.store.Links.ListByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))

	ids := make([]int64, len(links))
	index := make(map[int64]int, len(links))
	out := &Analytics{
		From:       from.Format(time.DateOnly),
		To:         today.Format(time.DateOnly),
		TotalLinks: len(links),
		Links:      make([]LinkStats, len(links)),
		Daily:      make([]DailyClicks, days),
	}
	for i, l := range links {
		ids[i] = l.ID
		index[l.ID] = i
		out.TotalClicks += l.Clicks
		out.Links[i] = LinkStats{
			LinkID:      l.ID,
			Slug:        l.Slug,
			Title:       l.Title,
			Clicks:      l.Clicks,
			LastClicked: l.LastClicked,
		}
	}
	for i := range out.Daily {
		out.Daily[i].Date = from.AddDate(0, 0, i).Format(time.DateOnly)
	}

	events, err := s.store.Clicks.ListForLinks(ctx, ids, from)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		day := int(e.ClickedAt.UTC().Truncate(24*time.Hour).Sub(from) / (24 * time.Hour))
		if day >= 0 && day < days {
			out.Daily[day].Clicks++
		}
		if i, ok := index[e.URLID]; ok {
			out.Links[i].WindowClicks++
		}
	}
	return out, nil
}
