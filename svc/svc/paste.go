package svc

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"pastrio/cfg"
	"pastrio/metrics"
	"pastrio/pkg/domain"
	"pastrio/svc/db"
	"pastrio/svc/util"
)

// Paste implements the paste lifecycle: hash generation, creation, the
// counting read with its view-cap deletion, and the non-counting API read.
type Paste struct {
	store *db.Store
	cfg   *cfg.Cfg
}

func NewPaste(store *db.Store, c *cfg.Cfg) *Paste {
	if store == nil || c == nil {
		panic("paste service: nil dependency (store or cfg)")
	}
	return &Paste{store: store, cfg: c}
}

// Create trims and validates the content, computes the expiry deadline,
// generates a unique hash and persists the paste. A hash collision at insert
// time (another writer won the race after our existence probe) is retried by
// regenerating; only that narrow condition retries.
func (p *Paste) Create(ctx context.Context, params domain.CreateParams) (*domain.Paste, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, domain.ErrContentRequired
	}
	if int64(len(content)) > p.cfg.MaxPasteSize {
		return nil, domain.ErrPasteTooLarge
	}
	if params.MaxViews != nil && *params.MaxViews <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	now := time.Now().UTC()
	expiresAt, err := params.ExpiryFor(now)
	if err != nil {
		return nil, err
	}
	for {
		hash, err := util.GenHash(p.cfg.HashLength, func(candidate string) (bool, error) {
			return p.store.HashExists(ctx, candidate)
		})
		if err != nil {
			return nil, errors.Wrap(err, "gen hash")
		}
		paste := &domain.Paste{
			Hash:      hash,
			Content:   content,
			ExpiresAt: expiresAt,
			MaxViews:  params.MaxViews,
			Views:     0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = p.store.Insert(ctx, paste)
		if errors.Is(err, domain.ErrDuplicateKey) {
			util.Warn().Str("hash", hash).Msg("hash collided at insert, regenerating")
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "insert paste")
		}
		metrics.PasteCreated.Inc()
		return paste, nil
	}
}

// View is the counting read. Order is load-bearing: accessibility is checked
// first, the counter is bumped atomically, and only then is the record
// deleted if the cap was reached. The read that hits the cap is still served
// in full; deletion is idempotent so racing boundary reads are harmless.
func (p *Paste) View(ctx context.Context, hash string) (*domain.Paste, error) {
	paste, err := p.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !paste.IsAccessible(time.Now()) {
		return nil, domain.ErrPasteExpired
	}
	views, err := p.store.IncrementViews(ctx, paste.ID)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			// The row vanished between find and increment (purge sweep or a
			// racing capped read). This read lost.
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrap(err, "view accounting")
	}
	paste.Views = views
	if paste.MaxViews != nil && views >= *paste.MaxViews {
		if err := p.store.DeleteByID(ctx, paste.ID); err != nil {
			util.Warn().Err(err).Str("hash", hash).Msg("view-cap delete failed")
		} else {
			metrics.PasteViewCapped.Inc()
			util.Info().Str("hash", hash).Int("views", views).Msg("paste deleted at view cap")
		}
	}
	metrics.PasteViewed.Inc()
	return paste, nil
}

// Peek is the non-counting read behind the JSON endpoint: it checks
// accessibility but neither increments views nor triggers cap deletion.
func (p *Paste) Peek(ctx context.Context, hash string) (*domain.Paste, error) {
	paste, err := p.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !paste.IsAccessible(time.Now()) {
		return nil, domain.ErrPasteExpired
	}
	return paste, nil
}

var (
	cleanerOnce    sync.Once
	cleanerRunning atomic.Bool
)

// StartCleaner launches the background TTL purge sweep. Removal is best
// effort with no latency bound; visibility of expired pastes is governed by
// IsAccessible, not by this worker.
func StartCleaner(ctx context.Context, store *db.Store, interval time.Duration) error {
	if cleanerRunning.Load() {
		return errors.New("cleaner already running")
	}
	cleanerOnce.Do(func() {
		cleanerRunning.Store(true)
		go runCleaner(ctx, store, interval)
	})
	return nil
}

func runCleaner(ctx context.Context, store *db.Store, interval time.Duration) {
	defer cleanerRunning.Store(false)
	sweepID := util.NewRequestID()
	ctx = util.SetRequestID(ctx, sweepID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	util.Info().
		Str("request_id", sweepID).
		Dur("interval", interval).
		Msg("expiry sweep started")
	for {
		select {
		case <-ctx.Done():
			util.Info().
				Str("request_id", sweepID).
				Msg("expiry sweep shutting down")
			return
		case <-ticker.C:
			deleted, err := store.PurgeExpired(ctx)
			metrics.PruneCycles.Inc()
			if err != nil {
				util.Error().
					Err(err).
					Str("request_id", sweepID).
					Msg("expiry sweep failed")
			} else if deleted > 0 {
				metrics.PastesPurged.Add(float64(deleted))
				util.Info().
					Int("deleted", deleted).
					Str("request_id", sweepID).
					Msg("expiry sweep completed")
			}
		}
	}
}
