package searchindex

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Source supplies the catalog snapshot an index build reads from.
type Source func(ctx context.Context) ([]model.Activity, error)

// Manager owns the current index and replaces it atomically on rebuild.
// Readers obtain a snapshot via Current and keep using it for the whole
// request even if a rebuild lands mid-flight.
type Manager struct {
	source        Source
	emb           Embedder
	maxAge        time.Duration
	schemaVersion int
	log           zerolog.Logger

	current   atomic.Pointer[Index]
	rebuildMu sync.Mutex
}

// NewManager constructs a Manager. The first Current call triggers the initial build.
func NewManager(source Source, emb Embedder, maxAge time.Duration, schemaVersion int, log zerolog.Logger) *Manager {
	return &Manager{
		source:        source,
		emb:           emb,
		maxAge:        maxAge,
		schemaVersion: schemaVersion,
		log:           log,
	}
}

// Current returns a usable index snapshot, rebuilding first when none exists
// or the current one is stale. A stale snapshot is served unchanged if the
// rebuild fails, so readers degrade rather than error.
func (m *Manager) Current(ctx context.Context) (*Index, error) {
	ix := m.current.Load()
	if ix != nil && !m.stale(ix) {
		return ix, nil
	}
	if err := m.Rebuild(ctx); err != nil {
		if ix != nil {
			m.log.Warn().Err(err).Msg("index rebuild failed; serving stale snapshot")
			return ix, nil
		}
		return nil, err
	}
	return m.current.Load(), nil
}

// Rebuild constructs a whole new index and swaps it in atomically. Concurrent
// rebuild requests are serialized; the second caller reuses the fresh result.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	// Another rebuild may have completed while we waited on the lock.
	if ix := m.current.Load(); ix != nil && !m.stale(ix) {
		return nil
	}

	start := time.Now()
	acts, err := m.source(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	ix, err := Build(ctx, acts, m.emb, m.schemaVersion, m.log)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	m.current.Store(ix)
	m.log.Info().
		Int("activities", ix.meta.Count).
		Int("vectors", len(ix.vectors)).
		Dur("elapsed", time.Since(start)).
		Msg("search index rebuilt")
	return nil
}

func (m *Manager) stale(ix *Index) bool {
	if ix.meta.SchemaVersion != m.schemaVersion {
		return true
	}
	return time.Since(ix.meta.BuiltAt) > m.maxAge
}
