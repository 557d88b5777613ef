package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/wagate/gateway-server-go/internal/authstate"
	"github.com/wagate/gateway-server-go/internal/config"
	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
	"github.com/wagate/gateway-server-go/internal/repository"
	"github.com/wagate/gateway-server-go/internal/webhook"
)

const qrImageSize = 256

// ConnectOptions selects the pairing flow for a new connection.
type ConnectOptions struct {
	SessionID      string
	UsePairingCode bool
	PhoneNumber    string
}

// Stats summarizes the registry for the stats endpoint.
type Stats struct {
	Total    int                         `json:"total"`
	ByStatus map[model.SessionStatus]int `json:"byStatus"`
	ByTenant map[string]int              `json:"byTenant"`
}

// Supervisor drives every session's connection lifecycle: dialing,
// pairing, reconnection with backoff, teardown, and restore at boot.
type Supervisor struct {
	registry *Registry
	dialer   protocol.Dialer
	auth     *authstate.Store
	sessions repository.SessionRepository
	tenants  repository.TenantRepository
	notifier *webhook.Notifier
	pipeline *Pipeline

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSupervisor(
	registry *Registry,
	dialer protocol.Dialer,
	auth *authstate.Store,
	sessions repository.SessionRepository,
	tenants repository.TenantRepository,
	notifier *webhook.Notifier,
	pipeline *Pipeline,
) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		registry: registry,
		dialer:   dialer,
		auth:     auth,
		sessions: sessions,
		tenants:  tenants,
		notifier: notifier,
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// CreateConnection starts (or returns) the connection for a session. A
// missing session id gets a generated one. Calling it again for a live
// session is a no-op that returns the current snapshot.
func (s *Supervisor) CreateConnection(ctx context.Context, tenantID string, opts ConnectOptions) (Snapshot, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return Snapshot{}, err
	}
	if tenant == nil {
		return Snapshot{}, errors.TenantNotFound(tenantID)
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if existing, ok := s.registry.Get(sessionID); ok {
		return existing.Snapshot(), nil
	}

	if _, err := s.sessions.Ensure(ctx, tenantID, sessionID); err != nil {
		return Snapshot{}, err
	}

	bound, err := s.auth.Bind(ctx, tenantID, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	sess := newSession(tenantID, sessionID, bound, tenant)
	if !s.registry.Register(sess) {
		// Lost the race to a concurrent create; the winner owns the socket.
		winner, _ := s.registry.Get(sessionID)
		if winner != nil {
			return winner.Snapshot(), nil
		}
		return Snapshot{}, errors.AlreadyExists("session")
	}

	if err := s.dial(ctx, sess); err != nil {
		s.registry.Remove(sessionID)
		return Snapshot{}, err
	}

	if opts.UsePairingCode {
		if err := s.issuePairingCode(ctx, sess, opts.PhoneNumber); err != nil {
			return sess.Snapshot(), err
		}
	}

	return sess.Snapshot(), nil
}

// dial opens a fresh socket for the session and starts its event loop.
func (s *Supervisor) dial(ctx context.Context, sess *Session) error {
	sock, err := s.dialer.Dial(ctx, sess.auth)
	if err != nil {
		return err
	}

	sess.setSocket(sock)
	sess.setStatus(model.SessionStatusConnecting)
	go s.run(sess, sock)

	if err := sock.Connect(ctx); err != nil {
		sess.takeSocket()
		sock.Disconnect()
		return err
	}
	return nil
}

// run is the session's single event consumer. Events are handled in
// emission order; the loop exits when the socket closes its channel.
func (s *Supervisor) run(sess *Session, sock protocol.Socket) {
	for evt := range sock.Events() {
		switch e := evt.(type) {
		case protocol.ConnectionUpdate:
			s.handleConnectionUpdate(sess, sock, e)
		default:
			s.pipeline.Handle(s.ctx, sess, evt)
		}
	}
}

func (s *Supervisor) handleConnectionUpdate(sess *Session, sock protocol.Socket, upd protocol.ConnectionUpdate) {
	logger := log.With().
		Str("tenant_id", sess.TenantID).
		Str("session_id", sess.SessionID).
		Logger()

	if upd.QRChallenge != "" {
		s.handleQRChallenge(sess, upd.QRChallenge)
		return
	}

	switch upd.State {
	case protocol.StateOpen:
		sess.resetAttempts()
		sess.cancelReconnect()
		sess.setStatus(model.SessionStatusConnected)
		sess.setProfile(sock.Profile())

		if err := s.sessions.UpdateStatus(s.ctx, sess.TenantID, sess.SessionID, model.SessionStatusConnected); err != nil {
			logger.Error().Err(err).Msg("failed to persist connected status")
		}
		s.persistProfile(sess, sock.Profile())

		logger.Info().Msg("session connected")
		s.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventConnection, map[string]any{
			"status":  model.SessionStatusConnected,
			"profile": sock.Profile(),
		})

	case protocol.StateClosed:
		s.handleClose(sess, sock, upd, logger)
	}
}

func (s *Supervisor) handleQRChallenge(sess *Session, challenge string) {
	dataURL, err := renderQR(challenge)
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to render qr code")
		return
	}

	sess.setQRCode(dataURL)
	if err := s.sessions.SaveQRCode(s.ctx, sess.TenantID, sess.SessionID, dataURL); err != nil {
		log.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to persist qr code")
	}

	s.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventQRCode, map[string]string{
		"qrCode": dataURL,
	})
}

func (s *Supervisor) handleClose(sess *Session, sock protocol.Socket, upd protocol.ConnectionUpdate, logger zerolog.Logger) {
	switch upd.Reason {
	case protocol.ReasonLoggedOut:
		logger.Warn().Msg("session logged out, purging credentials")
		sess.cancelReconnect()
		sess.takeSocket()
		sock.Disconnect()
		if err := s.auth.Clear(s.ctx, sess.TenantID, sess.SessionID); err != nil {
			logger.Error().Err(err).Msg("failed to purge auth state")
		}
		sess.setStatus(model.SessionStatusLoggedOut)
		s.registry.Remove(sess.SessionID)
		s.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventConnection, map[string]any{
			"status": model.SessionStatusLoggedOut,
		})

	case protocol.ReasonRestartRequired:
		// Credentials stay valid; the protocol just wants a new socket.
		// Fixed short delay, attempt counter untouched.
		logger.Info().Msg("restart required, redialing")
		sess.takeSocket()
		sock.Disconnect()
		sess.scheduleReconnect(config.RestartReconnectDelay, func() {
			s.redial(sess)
		})

	default:
		sess.takeSocket()
		sock.Disconnect()
		s.afterClose(sess, upd, logger)
	}
}

// afterClose records the disconnect and decides whether to retry. The
// socket is already torn down when this runs.
func (s *Supervisor) afterClose(sess *Session, upd protocol.ConnectionUpdate, logger zerolog.Logger) {
	sess.setStatus(model.SessionStatusDisconnected)
	if err := s.sessions.UpdateStatus(s.ctx, sess.TenantID, sess.SessionID, model.SessionStatusDisconnected); err != nil {
		logger.Error().Err(err).Msg("failed to persist disconnected status")
	}
	if upd.Err != nil {
		sess.setLastError(upd.Err.Error())
	}
	s.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventConnection, map[string]any{
		"status": model.SessionStatusDisconnected,
		"reason": int(upd.Reason),
	})

	if !sess.autoReconnect {
		logger.Info().Int("reason", int(upd.Reason)).Msg("session closed, auto-reconnect disabled")
		return
	}

	attempt, ok := sess.nextAttempt(config.MaxReconnectAttempts)
	if !ok {
		logger.Error().
			Int("attempts", attempt).
			Msg("reconnect budget exhausted, abandoning session")
		sess.setLastError(fmt.Sprintf("abandoned after %d reconnect attempts", attempt))
		s.registry.Remove(sess.SessionID)
		s.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventError, map[string]any{
			"status": "abandoned",
			"reason": "reconnect attempts exhausted",
		})
		return
	}

	delay := backoffDelay(attempt)
	logger.Info().
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("scheduling reconnect")
	sess.scheduleReconnect(delay, func() {
		s.redial(sess)
	})
}

// redial runs on the reconnect timer goroutine.
func (s *Supervisor) redial(sess *Session) {
	if s.ctx.Err() != nil {
		return
	}
	if _, ok := s.registry.Get(sess.SessionID); !ok {
		// Torn down while the timer was pending.
		return
	}
	if err := s.dial(s.ctx, sess); err != nil {
		log.Error().Err(err).
			Str("session_id", sess.SessionID).
			Msg("redial failed")
		// Feed the failure back through the normal retry path.
		s.afterClose(sess, protocol.ConnectionUpdate{
			State:  protocol.StateClosed,
			Reason: protocol.ReasonConnectionLost,
			Err:    err,
		}, log.With().Str("session_id", sess.SessionID).Logger())
		return
	}

	// The session may have been torn down while the dial was in flight.
	// A socket attached to a deregistered handle would leak a live
	// connection, so tear it down instead of keeping it.
	if cur, ok := s.registry.Get(sess.SessionID); !ok || cur != sess {
		log.Warn().
			Str("session_id", sess.SessionID).
			Msg("session removed during redial, tearing down socket")
		if sock := sess.takeSocket(); sock != nil {
			sock.Disconnect()
		}
	}
}

func (s *Supervisor) issuePairingCode(ctx context.Context, sess *Session, phoneNumber string) error {
	if phoneNumber == "" {
		return errors.MissingRequired("phoneNumber")
	}
	sock := sess.Socket()
	if sock == nil {
		return errors.NotConnected(sess.SessionID)
	}

	codeCtx, cancel := context.WithTimeout(ctx, config.PairingCodeTimeout)
	defer cancel()

	code, err := sock.RequestPairingCode(codeCtx, phoneNumber)
	if err != nil {
		return err
	}

	sess.setPairingCode(code)
	if err := s.sessions.SavePairingCode(ctx, sess.TenantID, sess.SessionID, code); err != nil {
		log.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to persist pairing code")
	}
	s.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventPairingCode, map[string]string{
		"pairingCode": code,
	})
	return nil
}

// DisconnectSession tears the session down and purges its credentials.
// Safe to call for sessions that are already gone.
func (s *Supervisor) DisconnectSession(ctx context.Context, tenantID, sessionID string) error {
	sess, ok := s.registry.Get(sessionID)
	if ok {
		if sess.TenantID != tenantID {
			return errors.SessionNotFound(sessionID)
		}
		sess.cancelReconnect()
		if sock := sess.takeSocket(); sock != nil {
			logoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := sock.Logout(logoutCtx); err != nil {
				log.Warn().Err(err).Str("session_id", sessionID).Msg("logout failed, forcing teardown")
			}
			cancel()
			sock.Disconnect()
		}
		sess.setStatus(model.SessionStatusLoggedOut)
		s.registry.Remove(sessionID)
	} else {
		row, err := s.sessions.FindBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}
		if row == nil || row.TenantID != tenantID {
			return errors.SessionNotFound(sessionID)
		}
	}

	if err := s.auth.Clear(ctx, tenantID, sessionID); err != nil {
		return err
	}

	webhookURL := ""
	if sess != nil {
		webhookURL = sess.WebhookURL()
	}
	s.notifier.Async(webhookURL, tenantID, sessionID, webhook.EventConnection, map[string]any{
		"status": model.SessionStatusLoggedOut,
	})
	return nil
}

// ConnectionStatus reports the live snapshot when the session is in
// memory, falling back to the persisted row for sessions this process
// does not hold.
func (s *Supervisor) ConnectionStatus(ctx context.Context, tenantID, sessionID string) (Snapshot, error) {
	if sess, ok := s.registry.Get(sessionID); ok && sess.TenantID == tenantID {
		return sess.Snapshot(), nil
	}

	row, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if row == nil || row.TenantID != tenantID {
		return Snapshot{}, errors.SessionNotFound(sessionID)
	}

	snap := Snapshot{
		TenantID:  row.TenantID,
		SessionID: row.SessionID,
		Status:    row.Status,
	}
	if row.QRCode != nil {
		snap.QRCode = *row.QRCode
	}
	if row.PairingCode != nil {
		snap.PairingCode = *row.PairingCode
	}
	if row.Profile != nil {
		var profile protocol.Profile
		if err := json.Unmarshal(*row.Profile, &profile); err == nil {
			snap.Profile = &profile
		}
	}
	return snap, nil
}

// Reconnect redials a session the health monitor found stale. A session
// with no live handle is dialed fresh from persisted state.
func (s *Supervisor) Reconnect(ctx context.Context, tenantID, sessionID string) error {
	if sess, ok := s.registry.Get(sessionID); ok {
		if sess.TenantID != tenantID {
			return errors.SessionNotFound(sessionID)
		}
		sess.cancelReconnect()
		if sock := sess.takeSocket(); sock != nil {
			sock.Disconnect()
		}
		return s.dial(ctx, sess)
	}

	_, err := s.CreateConnection(ctx, tenantID, ConnectOptions{SessionID: sessionID})
	return err
}

// ForceReconnect resets the backoff counter and redials immediately.
func (s *Supervisor) ForceReconnect(ctx context.Context, tenantID, sessionID string) error {
	sess, ok := s.registry.Get(sessionID)
	if !ok || sess.TenantID != tenantID {
		return errors.SessionNotFound(sessionID)
	}
	sess.resetAttempts()
	sess.cancelReconnect()
	if sock := sess.takeSocket(); sock != nil {
		sock.Disconnect()
	}
	return s.dial(ctx, sess)
}

// ConnectionStats aggregates the registry by status and tenant.
func (s *Supervisor) ConnectionStats() Stats {
	stats := Stats{
		ByStatus: make(map[model.SessionStatus]int),
		ByTenant: make(map[string]int),
	}
	for _, sess := range s.registry.Sessions() {
		stats.Total++
		stats.ByStatus[sess.Status()]++
		stats.ByTenant[sess.TenantID]++
	}
	return stats
}

// RestoreSessions redials every session that was connected when the
// process last stopped. Failures are logged per session, never fatal.
func (s *Supervisor) RestoreSessions(ctx context.Context) {
	rows, err := s.sessions.FindByStatus(ctx, model.SessionStatusConnected)
	if err != nil {
		log.Error().Err(err).Msg("failed to load sessions for restore")
		return
	}

	log.Info().Int("count", len(rows)).Msg("restoring sessions")
	for _, row := range rows {
		if _, err := s.CreateConnection(ctx, row.TenantID, ConnectOptions{SessionID: row.SessionID}); err != nil {
			log.Error().Err(err).
				Str("tenant_id", row.TenantID).
				Str("session_id", row.SessionID).
				Msg("failed to restore session")
		}
	}
}

// Shutdown closes every socket without touching credentials so sessions
// resume on the next boot.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.cancel()
	for _, sess := range s.registry.Sessions() {
		sess.cancelReconnect()
		if sock := sess.takeSocket(); sock != nil {
			sock.Disconnect()
		}
		if err := s.sessions.UpdateStatus(ctx, sess.TenantID, sess.SessionID, model.SessionStatusDisconnected); err != nil {
			log.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to persist status during shutdown")
		}
		s.registry.Remove(sess.SessionID)
	}
}

func (s *Supervisor) persistProfile(sess *Session, profile *protocol.Profile) {
	if profile == nil {
		return
	}
	err := s.sessions.SaveProfile(s.ctx, sess.TenantID, sess.SessionID, model.SessionProfile{
		ID:       profile.ID,
		Name:     profile.Name,
		Number:   profile.Number,
		Platform: profile.Platform,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to persist profile")
	}
}

// backoffDelay is the exponential schedule for attempt n (1-based):
// 1s, 2s, 4s, ... capped at the ceiling.
func backoffDelay(attempt int) time.Duration {
	delay := config.ReconnectBaseDelay << (attempt - 1)
	if delay > config.ReconnectMaxDelay {
		return config.ReconnectMaxDelay
	}
	return delay
}

// renderQR turns the raw challenge into a PNG data URL for clients that
// display it directly.
func renderQR(challenge string) (string, error) {
	png, err := qrcode.Encode(challenge, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
