package webui

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

type SessionOptions struct {
	CleanupInterval time.Duration `toml:"cleanup-interval"`
	MaxAge          time.Duration `toml:"max-age"`
	// Hex-encoded 32-byte keys. Come from the secrets file.
	AuthKey  string `toml:"-"`
	CryptKey string `toml:"-"`
	Insecure bool   `toml:"-"`
}

func (o *SessionOptions) FillDefaults() {
	if o.CleanupInterval == 0 {
		o.CleanupInterval = 1 * time.Hour
	}
	if o.MaxAge == 0 {
		o.MaxAge = 14 * 24 * time.Hour
	}
}

func decodeKey(s string) ([]byte, error) {
	k, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	if len(k) != 32 {
		return nil, fmt.Errorf("key must have 32 bytes, got %v", len(k))
	}
	return k, nil
}

// Keys returns the key pairs for the session store. Bad keys are skipped, the store
// refuses to work without a hash key.
func (o SessionOptions) Keys() [][]byte {
	var keys [][]byte
	if k, err := decodeKey(o.AuthKey); err == nil {
		keys = append(keys, k)
		if k, err := decodeKey(o.CryptKey); err == nil {
			keys = append(keys, k)
		}
	}
	return keys
}

func (o SessionOptions) SetupSession(s *sessions.Options) {
	s.Path = "/"
	s.MaxAge = int(o.MaxAge.Seconds())
	s.HttpOnly = true
	s.Secure = !o.Insecure
	s.SameSite = http.SameSiteLaxMode
}
