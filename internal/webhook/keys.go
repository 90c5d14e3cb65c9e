package webhook

import (
	"crypto/subtle"

	"grainlab-backend/internal/shared/config"
)

// KeySet resolves inbound API keys to named sessions.
type KeySet struct {
	keys    []config.WebhookKey
	allowed map[string]bool
}

// NewKeySet builds a key set from configured keys and the sessions allowed
// to deliver results. An empty allow-list allows every known session.
func NewKeySet(keys []config.WebhookKey, allowedSessions []string) *KeySet {
	allowed := make(map[string]bool, len(allowedSessions))
	for _, session := range allowedSessions {
		allowed[session] = true
	}
	return &KeySet{keys: keys, allowed: allowed}
}

// Match resolves an API key to its session name. Every configured secret is
// compared so timing does not reveal which entry matched.
func (k *KeySet) Match(apiKey string) (session string, ok bool) {
	if apiKey == "" {
		return "", false
	}
	for _, key := range k.keys {
		if subtle.ConstantTimeCompare([]byte(key.Secret), []byte(apiKey)) == 1 && !ok {
			session = key.Session
			ok = true
		}
	}
	return session, ok
}

// Allowed reports whether the session may deliver analysis results.
func (k *KeySet) Allowed(session string) bool {
	if len(k.allowed) == 0 {
		return true
	}
	return k.allowed[session]
}
