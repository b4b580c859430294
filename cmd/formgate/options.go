package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/alex65536/formgate/internal/database"
	"github.com/alex65536/formgate/internal/formgate"
	"github.com/alex65536/formgate/internal/regapi"
	"github.com/alex65536/formgate/internal/userauth"
	"github.com/alex65536/formgate/internal/util/idgen"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/alex65536/formgate/internal/webui"
)

type HTTPSOptions struct {
	Port                 int      `toml:"port"`
	AllowedSecureDomains []string `toml:"allowed-secure-domains"`
	CachePath            string   `toml:"cache-path"`
	// Also serve plain HTTP on the insecure port.
	ExposeInsecure bool `toml:"expose-insecure"`
}

type Options struct {
	Addr  string                  `toml:"addr"`
	Port  int                     `toml:"port"`
	HTTPS *HTTPSOptions           `toml:"https"`
	Log   slogx.Options           `toml:"log"`
	DB    database.Options        `toml:"db"`
	Users userauth.ManagerOptions `toml:"users"`
	Gate  formgate.Options        `toml:"gate"`
	WebUI webui.Options           `toml:"webui"`
	API   regapi.ServerOptions    `toml:"api"`
	// Disable parts of the server.
	NoWebUI bool `toml:"no-webui"`
	NoAPI   bool `toml:"no-api"`
}

func (o *Options) FillDefaults() {
	if o.Addr == "" {
		o.Addr = "127.0.0.1"
	}
	if o.Port == 0 {
		o.Port = 8080
	}
	if o.HTTPS != nil && o.HTTPS.Port == 0 {
		o.HTTPS.Port = 8443
	}
	o.Log.FillDefaults()
	o.DB.FillDefaults()
	o.Users.FillDefaults()
	o.Gate.FillDefaults()
	o.API.FillDefaults()
}

func (o *Options) AddrWithPort() string {
	return net.JoinHostPort(o.Addr, strconv.Itoa(o.Port))
}

func (o *Options) SecureAddrWithPort() string {
	return net.JoinHostPort(o.Addr, strconv.Itoa(o.HTTPS.Port))
}

type Secrets struct {
	CSRFKey         string `toml:"csrf-key"`
	SessionAuthKey  string `toml:"session-auth-key"`
	SessionCryptKey string `toml:"session-crypt-key"`
}

// GenerateMissing fills empty keys with fresh random values. It returns true if anything
// has changed and the secrets must be written back.
func (s *Secrets) GenerateMissing() (bool, error) {
	changed := false
	for _, k := range []*string{&s.CSRFKey, &s.SessionAuthKey, &s.SessionCryptKey} {
		if *k != "" {
			continue
		}
		v, err := idgen.SecureKey(32)
		if err != nil {
			return false, fmt.Errorf("generate key: %w", err)
		}
		*k = v
		changed = true
	}
	return changed, nil
}

func (o *Options) MixSecrets(s *Secrets) error {
	if s.CSRFKey == "" || s.SessionAuthKey == "" || s.SessionCryptKey == "" {
		return fmt.Errorf("secrets are incomplete")
	}
	o.WebUI.CSRFKey = s.CSRFKey
	o.WebUI.Session.AuthKey = s.SessionAuthKey
	o.WebUI.Session.CryptKey = s.SessionCryptKey
	return nil
}
