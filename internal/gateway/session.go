package gateway

import (
	"sync"
	"time"

	"github.com/wagate/gateway-server-go/internal/authstate"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
)

// Session is the live handle for one connection. All mutable fields sit
// behind the mutex; nothing blocking runs while it is held.
type Session struct {
	TenantID  string
	SessionID string

	mu            sync.Mutex
	status        model.SessionStatus
	qrCode        string
	pairingCode   string
	attempts      int
	socket        protocol.Socket
	auth          *authstate.Bound
	profile       *protocol.Profile
	reconnect     *time.Timer
	webhookURL    string
	autoReconnect bool
	receiveGroups bool
	lastError     string
}

// Snapshot is the point-in-time view handed to API consumers.
type Snapshot struct {
	TenantID    string                `json:"tenantId"`
	SessionID   string                `json:"sessionId"`
	Status      model.SessionStatus   `json:"status"`
	QRCode      string                `json:"qrCode,omitempty"`
	PairingCode string                `json:"pairingCode,omitempty"`
	Attempts    int                   `json:"reconnectAttempts"`
	Connected   bool                  `json:"connected"`
	Profile     *protocol.Profile     `json:"profile,omitempty"`
	LastError   string                `json:"lastError,omitempty"`
}

func newSession(tenantID, sessionID string, auth *authstate.Bound, tenant *model.Tenant) *Session {
	sess := &Session{
		TenantID:      tenantID,
		SessionID:     sessionID,
		status:        model.SessionStatusConnecting,
		auth:          auth,
		autoReconnect: tenant.AutoReconnect,
		receiveGroups: tenant.ReceiveGroupMessages,
	}
	if tenant.WebhookURL != nil {
		sess.webhookURL = *tenant.WebhookURL
	}
	return sess
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	connected := s.socket != nil && s.socket.IsConnected()
	return Snapshot{
		TenantID:    s.TenantID,
		SessionID:   s.SessionID,
		Status:      s.status,
		QRCode:      s.qrCode,
		PairingCode: s.pairingCode,
		Attempts:    s.attempts,
		Connected:   connected,
		Profile:     s.profile,
		LastError:   s.lastError,
	}
}

func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) WebhookURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webhookURL
}

func (s *Session) ReceiveGroupMessages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiveGroups
}

// Socket returns the current socket, nil between dials.
func (s *Session) Socket() protocol.Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socket
}

// SocketHealthy reports whether a socket exists and is open.
func (s *Session) SocketHealthy() bool {
	s.mu.Lock()
	sock := s.socket
	s.mu.Unlock()
	return sock != nil && sock.IsConnected()
}

func (s *Session) setStatus(status model.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	if status == model.SessionStatusConnected {
		s.qrCode = ""
		s.pairingCode = ""
		s.lastError = ""
	}
}

func (s *Session) setSocket(sock protocol.Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.socket = sock
}

func (s *Session) setQRCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrCode = code
	s.pairingCode = ""
}

func (s *Session) setPairingCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairingCode = code
	s.qrCode = ""
}

func (s *Session) setProfile(profile *protocol.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
}

func (s *Session) setLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

// resetAttempts clears the backoff counter after a successful open.
func (s *Session) resetAttempts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
}

// nextAttempt consumes one reconnect attempt and reports the attempt
// number just used, plus whether the budget still allowed it.
func (s *Session) nextAttempt(max int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts >= max {
		return s.attempts, false
	}
	s.attempts++
	return s.attempts, true
}

func (s *Session) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// scheduleReconnect arms the reconnect timer, replacing any pending one.
func (s *Session) scheduleReconnect(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	s.reconnect = time.AfterFunc(delay, fn)
}

// cancelReconnect stops a pending redial, if any.
func (s *Session) cancelReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// takeSocket detaches and returns the socket so the caller can tear it
// down outside the lock.
func (s *Session) takeSocket() protocol.Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	sock := s.socket
	s.socket = nil
	return sock
}
