package well

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultCompletionTimeout bounds a single call to the completion service.
const DefaultCompletionTimeout = 20 * time.Second

// WellService is the orchestration layer over the record ledger, the
// aggregator, the XP engine and the insight cache.
type WellService struct {
	database  Database
	completer Completer
	insights  *InsightCache
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	metrics   Instrumentation
	vault     Vault
	encryptor Encryptor
	locks     userLocks

	loc               *time.Location
	insightTTL        time.Duration
	completionTimeout time.Duration
}

// Option configures optional WellService behaviour.
type Option func(*WellService)

// WithLocation sets the time zone that defines calendar days. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *WellService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithInsightTTL(ttl time.Duration) Option {
	return func(s *WellService) { s.insightTTL = ttl }
}

func WithCompletionTimeout(d time.Duration) Option {
	return func(s *WellService) { s.completionTimeout = d }
}

func WithInstrumentation(m Instrumentation) Option {
	return func(s *WellService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithVault enables snapshot export and import.
func WithVault(v Vault, enc Encryptor) Option {
	return func(s *WellService) {
		s.vault = v
		s.encryptor = enc
	}
}

// NewWellService creates a WellService. completer may be nil, in which case
// every insight request is served the fallback payload.
func NewWellService(database Database, cache CacheStore, completer Completer, logger Logger, clock Clock, idgen IDGenerator, opts ...Option) *WellService {
	s := &WellService{
		database:          database,
		completer:         completer,
		logger:            logger,
		clock:             clock,
		idgen:             idgen,
		metrics:           NopInstrumentation{},
		loc:               time.UTC,
		insightTTL:        DefaultInsightTTL,
		completionTimeout: DefaultCompletionTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.insights = NewInsightCache(cache, clock, s.insightTTL, logger, s.metrics)
	return s
}

// Location returns the time zone used for calendar days.
func (s *WellService) Location() *time.Location { return s.loc }

// AppendRecord validates record and appends it to the ledger, assigning an ID
// if it has none. The caller's record is not modified.
func (s *WellService) AppendRecord(ctx context.Context, record *Record) (string, error) {
	if record == nil {
		return "", invalid("record", "is required")
	}
	r := *record
	if err := r.normalize(); err != nil {
		return "", err
	}
	if r.ID == "" {
		r.ID = s.idgen.New()
	}
	if err := s.database.AppendRecord(ctx, &r); err != nil {
		return "", fmt.Errorf("appending record: %w", err)
	}

	s.metrics.RecordAppended(r.Type)
	s.logger.Debug("record appended", "user", r.UserID, "type", r.Type, "id", r.ID)
	return r.ID, nil
}

// QueryRecords returns the user's records matching filter in ledger order.
func (s *WellService) QueryRecords(ctx context.Context, userID string, filter RecordFilter) ([]*Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}
	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, invalid("type", fmt.Sprintf("unknown record type %q", t))
		}
	}
	records, err := s.database.QueryRecords(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return records, nil
}

// ComputeAggregate fetches the records in period's window ending on ref and
// folds them. A zero ref means now. On a store error the returned aggregate is
// the empty window, alongside the error.
func (s *WellService) ComputeAggregate(ctx context.Context, userID string, period Period, ref time.Time) (*TimeAggregate, error) {
	if ref.IsZero() {
		ref = s.clock.Now()
	}
	start, end := period.Window(ref, s.loc)
	records, err := s.database.QueryRecords(ctx, userID, RecordFilter{From: start, To: end})
	if err != nil {
		return Aggregate(userID, period, ref, s.loc, nil), fmt.Errorf("querying records: %w", err)
	}
	return Aggregate(userID, period, ref, s.loc, records), nil
}

func (s *WellService) GetDailyStats(ctx context.Context, userID string, date time.Time) (*TimeAggregate, error) {
	return s.ComputeAggregate(ctx, userID, PeriodDaily, date)
}

func (s *WellService) GetWeeklyStats(ctx context.Context, userID string, date time.Time) (*TimeAggregate, error) {
	return s.ComputeAggregate(ctx, userID, PeriodWeekly, date)
}

func (s *WellService) GetMonthlyStats(ctx context.Context, userID string, date time.Time) (*TimeAggregate, error) {
	return s.ComputeAggregate(ctx, userID, PeriodMonthly, date)
}

// Summary pairs today's aggregate with the rolling week ending today.
type Summary struct {
	Day  *TimeAggregate `json:"day"`
	Week *TimeAggregate `json:"week"`
}

func (s *WellService) GetSummaryStats(ctx context.Context, userID string) (*Summary, error) {
	now := s.clock.Now()
	day, dayErr := s.GetDailyStats(ctx, userID, now)
	week, weekErr := s.GetWeeklyStats(ctx, userID, now)
	return &Summary{Day: day, Week: week}, errors.Join(dayErr, weekErr)
}

// GetInsights returns insights for the user's period ending now. It always
// returns a payload: cached, freshly generated or the fallback.
func (s *WellService) GetInsights(ctx context.Context, userID string, period Period, regenerate bool) *Insights {
	key := CacheKey{UserID: userID, Period: period}
	return s.insights.GetOrCompute(ctx, key, regenerate, func(ctx context.Context) (*Insights, error) {
		agg, err := s.ComputeAggregate(ctx, userID, period, s.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("computing aggregate: %w", err)
		}
		progress, err := s.GetProgress(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.generateInsights(ctx, agg, progress)
	})
}

// generateInsights makes one bounded completion call for agg.
func (s *WellService) generateInsights(ctx context.Context, agg *TimeAggregate, progress Progress) (*Insights, error) {
	if s.completer == nil {
		return nil, &UpstreamServiceError{Err: ErrNoCompleter}
	}
	if s.completionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.completionTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.complete(ctx, insightPrompt(agg, progress))
	s.metrics.CompletionObserved(time.Since(start), err)

	return InsightsFromCompletion(ParseCompletion(text, err), s.clock.Now())
}

type completion struct {
	text string
	err  error
}

// complete returns when the completer does or when ctx is done, whichever
// comes first.
func (s *WellService) complete(ctx context.Context, prompt string) (string, error) {
	done := make(chan completion, 1)
	go func() {
		text, err := s.completer.Complete(ctx, prompt)
		done <- completion{text: text, err: err}
	}()
	select {
	case c := <-done:
		return c.text, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
