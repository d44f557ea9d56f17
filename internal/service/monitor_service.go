package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"approvalflow/internal/clock"
	"approvalflow/internal/logger"
	"approvalflow/internal/metrics"
	"approvalflow/internal/model"
	"approvalflow/internal/repository"
	"approvalflow/internal/workflow"

	"github.com/shopspring/decimal"
)

// OverdueFilter narrows ListOverdue; zero values mean "any". With IncludeWaiting
// every active assignment is returned, overdue or not.
type OverdueFilter struct {
	Level          int
	ApproverID     string
	RequestType    string
	Priority       string
	IncludeWaiting bool
}

// MonitorService reports assignments that have waited longer than their
// timeout. It only reads requests.
type MonitorService interface {
	Sweep(ctx context.Context) (model.MonitorReport, error)
	ListOverdue(ctx context.Context, filter OverdueFilter) ([]model.OverdueItem, error)
	ListBottlenecks(ctx context.Context) ([]model.BottleneckStat, error)
	LastReport() (model.MonitorReport, bool)
	Run(ctx context.Context)
}

type MonitorDeps struct {
	Requests     repository.ApprovalRepository
	Clock        clock.Clock
	Events       Publisher
	Log          *logger.Logger
	Interval     time.Duration
	SweepTimeout time.Duration
}

type monitorService struct {
	repo     repository.ApprovalRepository
	clock    clock.Clock
	events   Publisher
	log      *logger.Logger
	interval time.Duration
	timeout  time.Duration

	mu   sync.RWMutex
	last *model.MonitorReport
}

func NewMonitorService(deps MonitorDeps) MonitorService {
	s := &monitorService{
		repo:     deps.Requests,
		clock:    deps.Clock,
		events:   deps.Events,
		log:      deps.Log,
		interval: deps.Interval,
		timeout:  deps.SweepTimeout,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.Component("monitor")
	if s.interval <= 0 {
		s.interval = 5 * time.Minute
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	return s
}

// snapshot evaluates every active assignment at the current time
func (s *monitorService) snapshot(ctx context.Context) ([]model.OverdueItem, int, time.Time, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, 0, time.Time{}, fmt.Errorf("failed to load active requests: %w", err)
	}

	now := s.clock.Now()
	items := make([]model.OverdueItem, 0, len(active))
	for _, req := range active {
		assignments := append([]model.ApproverAssignment(nil), req.Assignments...)
		workflow.SortByLevel(assignments)
		idx := workflow.ActiveIndex(assignments)
		if idx < 0 {
			continue
		}
		a := assignments[idx]

		since := a.AssignedAt
		if a.ActivatedAt != nil {
			since = *a.ActivatedAt
		}
		elapsed := now.Sub(since)
		items = append(items, model.OverdueItem{
			RequestID:    req.ID,
			RequestTitle: req.Title,
			RequestType:  req.Type,
			Priority:     req.Priority,
			AssignmentID: a.ID,
			ApproverID:   a.ApproverID,
			Level:        a.Level,
			TimeoutHours: a.TimeoutHours,
			WaitingHours: hours(elapsed),
			Overdue:      elapsed.Hours() > a.TimeoutHours,
			WaitingSince: since,
		})
	}

	// Longest waits first
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].WaitingSince.Before(items[j].WaitingSince)
	})
	return items, len(active), now, nil
}

func (s *monitorService) ListOverdue(ctx context.Context, filter OverdueFilter) ([]model.OverdueItem, error) {
	items, _, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]model.OverdueItem, 0, len(items))
	for _, it := range items {
		if !it.Overdue && !filter.IncludeWaiting {
			continue
		}
		if filter.Level > 0 && it.Level != filter.Level {
			continue
		}
		if filter.ApproverID != "" && it.ApproverID.String() != filter.ApproverID {
			continue
		}
		if filter.RequestType != "" && it.RequestType != filter.RequestType {
			continue
		}
		if filter.Priority != "" && it.Priority != filter.Priority {
			continue
		}
		res = append(res, it)
	}
	return res, nil
}

func (s *monitorService) ListBottlenecks(ctx context.Context) ([]model.BottleneckStat, error) {
	items, _, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return bottlenecks(items), nil
}

// Sweep builds a full report, refreshes the gauges and broadcasts it
func (s *monitorService) Sweep(ctx context.Context) (model.MonitorReport, error) {
	started := time.Now()
	items, active, now, err := s.snapshot(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("overdue sweep failed")
		return model.MonitorReport{}, err
	}

	overdue := make([]model.OverdueItem, 0, len(items))
	for _, it := range items {
		if it.Overdue {
			overdue = append(overdue, it)
		}
	}
	report := model.MonitorReport{
		GeneratedAt:    now,
		ActiveRequests: active,
		Overdue:        overdue,
		Bottlenecks:    bottlenecks(items),
	}

	stats := make([]metrics.LevelStat, 0, len(report.Bottlenecks))
	for _, b := range report.Bottlenecks {
		stats = append(stats, metrics.LevelStat{
			Level:            b.LevelName,
			Count:            float64(b.Count),
			AverageWaitHours: b.AverageWaitHours,
		})
	}
	metrics.SetBottlenecks(active, stats)

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	s.log.LogSweep(active, len(overdue), time.Since(started))
	if len(overdue) > 0 {
		s.events.Publish(EventMonitorOverdue, report)
	}
	return report, nil
}

func (s *monitorService) LastReport() (model.MonitorReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.MonitorReport{}, false
	}
	return *s.last, true
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *monitorService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("overdue monitor started")
	for {
		sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
		_, _ = s.Sweep(sweepCtx)
		cancel()

		select {
		case <-ctx.Done():
			s.log.Info().Msg("overdue monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// bottlenecks groups overdue items per level, ordered by level
func bottlenecks(items []model.OverdueItem) []model.BottleneckStat {
	type acc struct {
		count int
		total decimal.Decimal
	}
	byLevel := map[int]*acc{}
	for _, it := range items {
		if !it.Overdue {
			continue
		}
		a, ok := byLevel[it.Level]
		if !ok {
			a = &acc{total: decimal.Zero}
			byLevel[it.Level] = a
		}
		a.count++
		a.total = a.total.Add(decimal.NewFromFloat(it.WaitingHours))
	}

	res := make([]model.BottleneckStat, 0, len(byLevel))
	for level, a := range byLevel {
		avg, _ := a.total.Div(decimal.NewFromInt(int64(a.count))).Round(2).Float64()
		res = append(res, model.BottleneckStat{
			Level:            level,
			LevelName:        fmt.Sprintf("Level %d", level),
			Count:            a.count,
			AverageWaitHours: avg,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Level < res[j].Level })
	return res
}

// hours converts d to hours rounded to two decimals
func hours(d time.Duration) float64 {
	h, _ := decimal.NewFromFloat(d.Hours()).Round(2).Float64()
	return h
}
