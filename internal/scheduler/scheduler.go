// Package scheduler implements the Subscription Scheduler: it runs
// in-process with a single wall-clock-driven worker pool, reconciles the
// subscriptions view into a job set keyed by (provider, interval, cron),
// and dynamically adds/removes/rebinds jobs as that view changes.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/quasarhq/quasar/internal/jobrunner"
	"github.com/quasarhq/quasar/internal/metrics"
	"github.com/quasarhq/quasar/internal/model"
	"github.com/quasarhq/quasar/internal/offsetcron"
	"github.com/quasarhq/quasar/internal/providercontract"
	"github.com/quasarhq/quasar/internal/providerloader"
)

const (
	// DefaultReconcileInterval is how often the scheduler re-fetches the
	// subscriptions view and diffs it against the running job set (§4.E).
	DefaultReconcileInterval = 30 * time.Second

	defaultDelayHours       = 0
	defaultPreCloseSeconds  = 30
	defaultPostCloseSeconds = 5
)

// SubscriptionStore is the subset of persistence the scheduler needs:
// the aggregated subscriptions view and registration preferences (to
// compute each job's offset).
type SubscriptionStore interface {
	providerloader.RegistrationStore
	ListSubscriptionGroups(ctx context.Context) ([]model.SubscriptionGroup, error)
}

// ProviderLoader is the subset of providerloader.Loader the scheduler
// needs: load-on-demand and unload-on-removal.
type ProviderLoader interface {
	Load(ctx context.Context, className string, classType model.ClassType) (providercontract.Provider, error)
	Unload(ctx context.Context, className string) error
}

// HistoricalRunner executes one historical-collector firing.
type HistoricalRunner interface {
	Run(ctx context.Context, provider, interval string, symbols []string) error
}

// LiveRunner executes one live-collector firing.
type LiveRunner interface {
	Run(ctx context.Context, provider, interval string, symbols []string, timeout time.Duration) error
}

// job is the scheduler's in-memory representation of one scheduled
// (provider, interval, cron) -> symbols binding.
type job struct {
	key      string
	provider string
	interval string
	cron     string
	subtype  model.ClassSubtype
	trigger  *offsetcron.OffsetCron

	mu      sync.Mutex
	symbols []string

	cancel context.CancelFunc
}

func (j *job) setSymbols(symbols []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.symbols = symbols
}

func (j *job) getSymbols() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.symbols))
	copy(out, j.symbols)
	return out
}

// Scheduler reconciles the subscription view into live jobs.
type Scheduler struct {
	store      SubscriptionStore
	loader     ProviderLoader
	historical HistoricalRunner
	live       LiveRunner
	logger     *slog.Logger
	interval   time.Duration
	metrics    *metrics.SchedulerMetrics

	mu               sync.Mutex
	jobs             map[string]*job
	loadedProviders  map[string]bool
	invalidProviders map[string]bool
}

// New builds a Scheduler. reconcileInterval of 0 uses DefaultReconcileInterval.
// m may be nil, in which case reconciliation passes are not instrumented.
func New(store SubscriptionStore, loader ProviderLoader, historical HistoricalRunner, live LiveRunner, logger *slog.Logger, reconcileInterval time.Duration, m *metrics.SchedulerMetrics) *Scheduler {
	if reconcileInterval <= 0 {
		reconcileInterval = DefaultReconcileInterval
	}
	return &Scheduler{
		store:            store,
		loader:           loader,
		historical:       historical,
		live:             live,
		logger:           logger,
		interval:         reconcileInterval,
		metrics:          m,
		jobs:             map[string]*job{},
		loadedProviders:  map[string]bool{},
		invalidProviders: map[string]bool{},
	}
}

// Run blocks, reconciling every tick until ctx is canceled. The
// reconciler itself runs as a "job" inside the same process (§4.E: "The
// reconciler itself runs as a scheduled job inside the same scheduler").
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	jobrunner.Run(ctx, s.logger, "reconcile", s.Reconcile)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobrunner.Run(ctx, s.logger, "reconcile", s.Reconcile)
		}
	}
}

// JobKeys returns the set of currently scheduled job keys. Exposed for
// the scheduler-fixed-point test property (§8).
func (s *Scheduler) JobKeys() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.jobs))
	for k := range s.jobs {
		out[k] = true
	}
	return out
}

// Reconcile runs one pass of §4.E steps 1-7.
func (s *Scheduler) Reconcile(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveReconcile(time.Since(start), err, len(s.JobKeys()))
	}()

	groups, err := s.store.ListSubscriptionGroups(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	desiredProviders := map[string]bool{}
	for _, g := range groups {
		desiredProviders[g.Provider] = true
	}

	// Step 2: load providers not yet loaded; record failures.
	s.invalidProviders = map[string]bool{}
	for provider := range desiredProviders {
		if s.loadedProviders[provider] {
			continue
		}
		if _, err := s.loader.Load(ctx, provider, model.ClassTypeProvider); err != nil {
			s.logger.Error("provider load failed during reconciliation", "provider", provider, "error", err)
			s.invalidProviders[provider] = true
			continue
		}
		s.loadedProviders[provider] = true
	}

	// Step 3: unload providers no longer desired.
	for provider := range s.loadedProviders {
		if !desiredProviders[provider] {
			if err := s.loader.Unload(ctx, provider); err != nil {
				s.logger.Error("provider unload failed", "provider", provider, "error", err)
			}
			delete(s.loadedProviders, provider)
		}
	}

	// Step 4: desired keys, excluding invalid providers.
	desiredGroups := map[string]model.SubscriptionGroup{}
	for _, g := range groups {
		if s.invalidProviders[g.Provider] {
			continue
		}
		desiredGroups[g.JobKey()] = g
	}

	// Step 5 & 6: additions and updates.
	for key, g := range desiredGroups {
		if existing, ok := s.jobs[key]; ok {
			existing.setSymbols(g.Symbols)
			continue
		}
		if err := s.addJob(ctx, g); err != nil {
			s.logger.Error("failed to schedule job", "job_key", key, "error", err)
		}
	}

	// Step 7: removals.
	for key, j := range s.jobs {
		if _, ok := desiredGroups[key]; !ok {
			j.cancel()
			delete(s.jobs, key)
		}
	}

	return nil
}

func (s *Scheduler) addJob(ctx context.Context, g model.SubscriptionGroup) error {
	reg, err := s.store.GetRegistration(ctx, g.Provider, model.ClassTypeProvider)
	if err != nil {
		return err
	}

	delta, err := offsetSeconds(reg)
	if err != nil {
		return err
	}

	trigger, err := offsetcron.New(g.Cron, delta)
	if err != nil {
		return err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{
		key:      g.JobKey(),
		provider: g.Provider,
		interval: g.Interval,
		cron:     g.Cron,
		subtype:  reg.ClassSubtype,
		trigger:  trigger,
		symbols:  g.Symbols,
		cancel:   cancel,
	}
	s.jobs[j.key] = j

	go s.runLoop(jobCtx, j, reg)
	return nil
}

func (s *Scheduler) runLoop(ctx context.Context, j *job, reg model.ProviderRegistration) {
	for {
		next := j.trigger.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx, j, reg)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, j *job, reg model.ProviderRegistration) {
	symbols := j.getSymbols()
	logger := s.logger.With("provider", j.provider, "interval", j.interval, "job_key", j.key)

	switch j.subtype {
	case model.SubtypeHistorical:
		jobrunner.Run(ctx, logger, j.key, func(ctx context.Context) error {
			return s.historical.Run(ctx, j.provider, j.interval, symbols)
		})
	case model.SubtypeLive:
		preCloseSeconds := intPref(reg.Preferences, "pre_close_seconds", defaultPreCloseSeconds)
		postCloseSeconds := intPref(reg.Preferences, "post_close_seconds", defaultPostCloseSeconds)
		timeout := time.Duration(preCloseSeconds+postCloseSeconds+30) * time.Second
		jobrunner.Run(ctx, logger, j.key, func(ctx context.Context) error {
			return s.live.Run(ctx, j.provider, j.interval, symbols, timeout)
		})
	default:
		logger.Info("job fired for non-collecting subtype, nothing to do", "subtype", j.subtype)
	}
}

// offsetSeconds computes δ for a job per §4.E step 5:
// Historical: +delay_hours*3600; Live: -pre_close_seconds; other: 0.
func offsetSeconds(reg model.ProviderRegistration) (int, error) {
	switch reg.ClassSubtype {
	case model.SubtypeHistorical:
		delayHours := intPref(reg.Preferences, "delay_hours", defaultDelayHours)
		return delayHours * 3600, nil
	case model.SubtypeLive:
		preClose := intPref(reg.Preferences, "pre_close_seconds", defaultPreCloseSeconds)
		return -preClose, nil
	default:
		return 0, nil
	}
}

func intPref(prefs map[string]any, key string, def int) int {
	v, ok := prefs[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// ErrNoSuchJob names the condition of a job key the scheduler does not
// currently hold. No Scheduler method returns it.
var ErrNoSuchJob = errors.New("scheduler: no such job")
