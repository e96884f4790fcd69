package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pokedex/catalog/internal/catalog"
	"pokedex/catalog/internal/client"
	"pokedex/catalog/internal/domain"
	"pokedex/catalog/internal/domain/task"
	"pokedex/catalog/internal/queue"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type State int32

const (
	StateIdle State = iota
	StateLoading
	StateLoadingAll
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoadingAll:
		return "loading_all"
	default:
		return "unknown"
	}
}

type Options struct {
	BatchSize  int           // window size used by LoadAll
	MaxWorkers int           // concurrent fetches within a window
	MaxRetries int           // extra attempts after a transient failure
	RetryWait  time.Duration // base backoff, multiplied by the attempt number
}

// BatchLoader resolves windows of remote positions and appends them to the
// cache in ascending order. Only one window is in flight at a time.
type BatchLoader struct {
	cache   *catalog.Cache
	remote  client.PokeAPIClient
	journal queue.Journal
	opts    Options

	group singleflight.Group

	mu     sync.Mutex
	state  State
	cursor int // next remote position to fetch
}

func NewBatchLoader(cache *catalog.Cache, remote client.PokeAPIClient, journal queue.Journal, opts Options) *BatchLoader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if journal == nil {
		journal = queue.NopJournal{}
	}

	return &BatchLoader{
		cache:   cache,
		remote:  remote,
		journal: journal,
		opts:    opts,
		cursor:  cache.NextPosition(),
	}
}

func (l *BatchLoader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Cursor returns the next remote position the loader will request.
func (l *BatchLoader) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

func (l *BatchLoader) BatchSize() int {
	return l.opts.BatchSize
}

// LoadNextBatch fetches the next window of batchSize positions and returns the
// entries it appended. Concurrent callers share the in-flight window. An empty
// result with a nil error means the remote has nothing at those positions; a
// window in which nothing resolved and some fetches failed returns ErrTransient
// and leaves the cursor in place.
func (l *BatchLoader) LoadNextBatch(ctx context.Context, batchSize int) ([]domain.Entry, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	for {
		v, err, shared := l.group.Do("next", func() (any, error) {
			if !l.begin(StateLoading) {
				return nil, domain.ErrBusy
			}
			defer l.end()

			report, err := l.loadWindow(ctx, batchSize)
			return report.entries, err
		})
		if shared {
			log.Debugf("Joined in-flight batch")
		}

		// A joined window abandoned by the caller that started it is run again
		// for callers that are still waiting.
		if shared && isContextErr(err) && ctx.Err() == nil {
			log.Debugf("In-flight batch was abandoned by its owner, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		return v.([]domain.Entry), nil
	}
}

// LoadAll loads windows until the remote catalog is exhausted. The end is the
// remote's reported size when available, otherwise the first window in which
// every position is missing. An unreachable window ends the run with
// ErrTransient.
func (l *BatchLoader) LoadAll(ctx context.Context) error {
	_, err, _ := l.group.Do("all", func() (any, error) {
		if !l.begin(StateLoadingAll) {
			return nil, domain.ErrBusy
		}
		defer l.end()

		return nil, l.loadAll(ctx)
	})
	return err
}

func (l *BatchLoader) loadAll(ctx context.Context) error {
	total, err := l.remote.FetchCatalogSize(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("⚠️ Catalog size unavailable, loading until the remote runs out: %v", err)
		total = 0
	}

	started := time.Now()
	log.Infof("🔄 Loading full catalog from position %d (remote reports %d entries)", l.Cursor(), total)

	for {
		size := l.opts.BatchSize
		if total > 0 {
			remaining := total - l.Cursor()
			if remaining <= 0 {
				break
			}
			size = min(size, remaining)
		}

		report, err := l.loadWindow(ctx, size)
		if err != nil {
			return err
		}

		if report.notFound == report.window {
			log.Debugf("Window [%d,%d) had no remote entries", report.start, report.start+report.window)
			break
		}
	}

	log.Infof("✅ Catalog loaded: %d entries in %v", l.cache.Size(), time.Since(started).Round(time.Millisecond))
	return nil
}

func (l *BatchLoader) begin(next State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return false
	}
	l.state = next
	return true
}

func (l *BatchLoader) end() {
	l.mu.Lock()
	l.state = StateIdle
	l.mu.Unlock()
}

type windowReport struct {
	start    int
	window   int
	entries  []domain.Entry
	notFound int
	skipped  int
}

// loadWindow must only run while the loader is not idle.
func (l *BatchLoader) loadWindow(ctx context.Context, size int) (windowReport, error) {
	start := l.Cursor()
	report := windowReport{start: start, window: size}

	results := make([]*domain.Entry, size)
	missing := make([]bool, size)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.MaxWorkers)

	for i := 0; i < size; i++ {
		g.Go(func() error {
			entry, err := l.fetch(gctx, start+i)
			switch {
			case err == nil:
				results[i] = &entry
			case errors.Is(err, domain.ErrNotFound):
				missing[i] = true
			case gctx.Err() != nil:
				return gctx.Err()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warnf("🛑 Window [%d,%d) abandoned, nothing appended: %v", start, start+size, err)
		return windowReport{}, fmt.Errorf("window [%d,%d) abandoned: %w", start, start+size, err)
	}

	report.entries = make([]domain.Entry, 0, size)
	for i, entry := range results {
		switch {
		case entry != nil:
			report.entries = append(report.entries, *entry)
		case missing[i]:
			report.notFound++
		default:
			report.skipped++
		}
	}

	if len(report.entries) == 0 && report.skipped > 0 {
		log.Warnf("🛑 Window [%d,%d) unreachable: %d positions failed, cursor stays at %d",
			start, start+size, report.skipped, start)
		return windowReport{}, fmt.Errorf("%w: window [%d,%d) unreachable, %d positions failed",
			domain.ErrTransient, start, start+size, report.skipped)
	}

	if err := l.cache.Append(report.entries); err != nil {
		return windowReport{}, fmt.Errorf("failed to append window [%d,%d): %w", start, start+size, err)
	}

	l.mu.Lock()
	l.cursor = start + size
	l.mu.Unlock()

	log.Infof("📦 Window [%d,%d): %d appended, %d not found, %d skipped (cache size %d)",
		start, start+size, len(report.entries), report.notFound, report.skipped, l.cache.Size())

	return report, nil
}

func (l *BatchLoader) fetch(ctx context.Context, position int) (domain.Entry, error) {
	attempts := l.opts.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		entry, err := l.remote.FetchEntry(ctx, position)
		if err == nil {
			return entry, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Entry{}, err
		}
		if ctx.Err() != nil {
			return domain.Entry{}, ctx.Err()
		}

		lastErr = err
		if attempt < attempts {
			log.Debugf("Retrying position %d (attempt %d/%d): %v", position, attempt+1, attempts, err)
			if err := wait(ctx, l.opts.RetryWait*time.Duration(attempt)); err != nil {
				return domain.Entry{}, err
			}
		}
	}

	log.Warnf("⚠️ Skipping position %d after %d attempts: %v", position, attempts, lastErr)
	l.journalSkip(ctx, position, attempts, lastErr)

	return domain.Entry{}, lastErr
}

func (l *BatchLoader) journalSkip(ctx context.Context, position, attempts int, cause error) {
	skip := &task.EntrySkipTask{
		Position:  position,
		Attempts:  attempts,
		Error:     cause.Error(),
		SkippedAt: time.Now().UTC(),
	}
	if _, err := l.journal.AddTask(ctx, skip); err != nil {
		log.Errorf("❌ Failed to journal skipped position %d: %v", position, err)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
