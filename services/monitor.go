package services

import (
	"context"
	"math/rand"
	"time"

	"flatwatch/models"
	"flatwatch/scraper"
	"flatwatch/storage"
	"flatwatch/utils"
)

// notifyPause decouples the notification burst from the regular interval:
// after a cycle that found new listings, the loop pauses briefly before
// starting the interval wait.
const notifyPause = 5 * time.Second

// Dispatcher sends passing listings to the configured recipients.
type Dispatcher interface {
	Dispatch(listings []*models.Listing, recipients []int64) models.DispatchResult
}

// Monitor drives the poll loop: fetch, extract, diff against the catalog,
// filter, notify, sleep. It never terminates on its own; cancelling the
// context is the only way out.
type Monitor struct {
	fetcher    scraper.Fetcher
	extractor  *Extractor
	catalog    storage.Catalog
	criteria   Criteria
	dispatcher Dispatcher
	recipients []int64
	retry      *utils.RetryConfig
	logger     *utils.Logger

	// interval is drawn once per process from a bounded random range so the
	// polling rhythm is not fingerprintable.
	interval time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

// NewMonitor wires the pipeline stages into a Monitor. The inter-cycle
// interval is drawn uniformly from [minMinutes, maxMinutes].
func NewMonitor(
	fetcher scraper.Fetcher,
	extractor *Extractor,
	catalog storage.Catalog,
	criteria Criteria,
	dispatcher Dispatcher,
	recipients []int64,
	minMinutes, maxMinutes int,
	maxRetries int,
	logger *utils.Logger,
) *Monitor {
	interval := time.Duration(minMinutes+rand.Intn(maxMinutes-minMinutes+1)) * time.Minute

	return &Monitor{
		fetcher:    fetcher,
		extractor:  extractor,
		catalog:    catalog,
		criteria:   criteria,
		dispatcher: dispatcher,
		recipients: recipients,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger:   logger,
		interval: interval,
		sleep:    sleepCtx,
	}
}

// Run blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.fetcher.Close()

	m.logger.Info("[monitor] Poll interval for this process: %v", m.interval)

	if !m.catalog.Exists() {
		m.runBaseline(ctx)
	}

	for ctx.Err() == nil {
		found, empty := m.runCycle(ctx)

		if empty {
			// A source outage is not "no new listings": retry right away,
			// bounded by the fetch's own timeout and backoff.
			continue
		}
		if found {
			m.sleep(ctx, notifyPause)
		}
		m.sleep(ctx, m.interval)
	}

	m.logger.Info("[monitor] Shutting down")
	return ctx.Err()
}

// runBaseline is the first-run cycle: persist everything currently listed
// without notifying, so pre-existing listings never spam the recipients.
func (m *Monitor) runBaseline(ctx context.Context) {
	m.logger.Info("[monitor] Empty catalog — establishing baseline without notifications")

	listings := m.fetchAndExtract(ctx)
	if len(listings) == 0 {
		m.logger.Warn("[monitor] Baseline fetch produced no listings")
		return
	}
	if err := m.catalog.Append(listings); err != nil {
		m.logger.Error("[monitor] Baseline persist failed: %v", err)
		return
	}
	m.logger.Info("[monitor] Baseline established with %d listings", len(listings))
}

// runCycle performs one full poll pass. It reports whether new listings
// were found and whether the fetch produced nothing at all.
func (m *Monitor) runCycle(ctx context.Context) (found, empty bool) {
	known, err := m.catalog.KnownIDs()
	if err != nil {
		m.logger.Warn("[monitor] Loading known ids failed, proceeding with empty set: %v", err)
		known = make(map[string]struct{})
	}

	listings := m.fetchAndExtract(ctx)
	if ctx.Err() != nil {
		return false, false
	}
	if len(listings) == 0 {
		m.logger.Warn("[monitor] No listings extracted — retrying cycle")
		return false, true
	}

	unseen := Diff(listings, known)
	if len(unseen) == 0 {
		return false, false
	}

	ids := make([]string, len(unseen))
	for i, l := range unseen {
		ids[i] = l.ID
	}
	m.logger.Info("[monitor] New listings found: %v", ids)

	if err := m.catalog.Append(unseen); err != nil {
		// At-least-once over availability: keep going with the in-memory
		// batch, the next cycle re-detects and re-appends.
		m.logger.Error("[monitor] Persist failed, listings will be re-evaluated next cycle: %v", err)
	}

	passing := make([]*models.Listing, 0, len(unseen))
	for _, l := range unseen {
		if failed := Evaluate(l, m.criteria); len(failed) > 0 {
			m.logger.Debug("[monitor] %s filtered out (%v)", l.ID, failed)
			continue
		}
		passing = append(passing, l)
	}

	if len(passing) > 0 {
		result := m.dispatcher.Dispatch(passing, m.recipients)
		if !result.OK() {
			m.logger.Warn("[monitor] Partial delivery: %d recipients failed", len(result.Failed))
		}
	}

	return true, false
}

// fetchAndExtract runs the fetch with retries and extracts the batch. A
// fetch timeout already released the browser; the retry reacquires it.
func (m *Monitor) fetchAndExtract(ctx context.Context) []*models.Listing {
	m.logTimeSinceLastUpdate()

	var items []scraper.RawItem
	err := m.retry.Do("fetch-listings", func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetched, err := m.fetcher.Fetch(ctx)
		if err != nil {
			return err
		}
		items = fetched
		return nil
	})
	if err != nil {
		m.logger.Error("[monitor] Fetch failed: %v", err)
		return nil
	}

	return m.extractor.ExtractAll(ctx, items)
}

func (m *Monitor) logTimeSinceLastUpdate() {
	last, ok := m.catalog.LastUpdated()
	if !ok {
		m.logger.Info("[monitor] Fetching listings (no catalog updates yet)")
		return
	}
	m.logger.Info("[monitor] Fetching listings. Time since last update: %d minutes",
		int(time.Since(last).Round(time.Minute)/time.Minute))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
