package authstate

// Credentials is the opaque identity material the protocol layer needs to
// resume a session without re-pairing. The gateway never interprets the
// binary fields; they only need to round-trip byte-for-byte. encoding/json
// base64-encodes []byte, which is lossless.
type Credentials struct {
	DeviceID       string `json:"deviceId,omitempty"`
	RegistrationID uint32 `json:"registrationId,omitempty"`
	NoiseKey       []byte `json:"noiseKey,omitempty"`
	IdentityKey    []byte `json:"identityKey,omitempty"`
	AdvSecret      []byte `json:"advSecret,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Registered     bool   `json:"registered,omitempty"`
}

// KeyMaterial holds incremental protocol key state, category -> id -> bytes.
type KeyMaterial map[string]map[string][]byte

type State struct {
	Creds Credentials `json:"creds"`
	Keys  KeyMaterial `json:"keys"`
}

// NewState returns a fresh, empty auth state usable for a first pairing.
func NewState() *State {
	return &State{Keys: make(KeyMaterial)}
}

// Paired reports whether the credentials carry a protocol identity, i.e.
// the session completed a QR or pairing-code flow at least once.
func (s *State) Paired() bool {
	return s.Creds.DeviceID != ""
}

func (m KeyMaterial) get(category string, ids []string) map[string][]byte {
	out := make(map[string][]byte, len(ids))
	entries, ok := m[category]
	if !ok {
		return out
	}
	for _, id := range ids {
		if v, ok := entries[id]; ok {
			out[id] = v
		}
	}
	return out
}

func (m KeyMaterial) put(category string, entries map[string][]byte) {
	bucket, ok := m[category]
	if !ok {
		bucket = make(map[string][]byte, len(entries))
		m[category] = bucket
	}
	for id, v := range entries {
		if v == nil {
			delete(bucket, id)
			continue
		}
		bucket[id] = v
	}
}
