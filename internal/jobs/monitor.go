// Package jobs runs the background loops that keep persisted session
// state honest: a periodic health audit that reconciles rows against the
// live registry, and a cleanup sweep for stale disconnected sessions.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/repository"
)

// HealthProbe answers whether a session currently holds an open socket.
// The gateway registry implements it.
type HealthProbe interface {
	SocketHealthy(sessionID string) bool
}

// Reconnector redials a session. The gateway supervisor implements it.
type Reconnector interface {
	Reconnect(ctx context.Context, tenantID, sessionID string) error
}

type Monitor struct {
	sessionRepo     repository.SessionRepository
	tenantRepo      repository.TenantRepository
	probe           HealthProbe
	reconnector     Reconnector
	auditInterval   time.Duration
	cleanupInterval time.Duration
	retention       time.Duration
	done            chan struct{}
}

func NewMonitor(
	sessionRepo repository.SessionRepository,
	tenantRepo repository.TenantRepository,
	probe HealthProbe,
	reconnector Reconnector,
	auditInterval time.Duration,
	cleanupInterval time.Duration,
	retention time.Duration,
) *Monitor {
	return &Monitor{
		sessionRepo:     sessionRepo,
		tenantRepo:      tenantRepo,
		probe:           probe,
		reconnector:     reconnector,
		auditInterval:   auditInterval,
		cleanupInterval: cleanupInterval,
		retention:       retention,
		done:            make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go m.run()
	log.Info().
		Dur("auditInterval", m.auditInterval).
		Dur("cleanupInterval", m.cleanupInterval).
		Msg("session monitor started")
}

func (m *Monitor) Stop() {
	close(m.done)
	log.Info().Msg("session monitor stopped")
}

func (m *Monitor) run() {
	audit := time.NewTicker(m.auditInterval)
	defer audit.Stop()
	cleanup := time.NewTicker(m.cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-audit.C:
			m.Audit()
		case <-cleanup.C:
			m.Cleanup()
		}
	}
}

// Audit reconciles sessions persisted as connected against the live
// registry. A row whose socket is gone is marked disconnected, and the
// session is redialed when its tenant opted into auto-reconnect.
func (m *Monitor) Audit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := m.sessionRepo.FindByStatus(ctx, model.SessionStatusConnected)
	if err != nil {
		log.Error().Err(err).Msg("health audit: failed to list connected sessions")
		return
	}

	for _, row := range rows {
		if m.probe.SocketHealthy(row.SessionID) {
			continue
		}

		log.Warn().
			Str("tenantId", row.TenantID).
			Str("sessionId", row.SessionID).
			Msg("health audit: persisted session has no live socket")

		if err := m.sessionRepo.UpdateStatus(ctx, row.TenantID, row.SessionID, model.SessionStatusDisconnected); err != nil {
			log.Error().Err(err).Str("sessionId", row.SessionID).Msg("health audit: failed to mark session disconnected")
			continue
		}

		tenant, err := m.tenantRepo.FindByID(ctx, row.TenantID)
		if err != nil {
			log.Error().Err(err).Str("tenantId", row.TenantID).Msg("health audit: tenant lookup failed")
			continue
		}
		if tenant == nil || !tenant.AutoReconnect {
			continue
		}

		if err := m.reconnector.Reconnect(ctx, row.TenantID, row.SessionID); err != nil {
			log.Error().Err(err).
				Str("tenantId", row.TenantID).
				Str("sessionId", row.SessionID).
				Msg("health audit: reconnect failed")
		}
	}
}

// Cleanup removes disconnected sessions that have sat idle past the
// retention window.
func (m *Monitor) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := m.sessionRepo.DeleteStale(ctx, time.Now().UTC().Add(-m.retention))
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup stale sessions")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up stale sessions")
	}
}
