package userauth

import (
	"crypto/subtle"
	"fmt"

	"github.com/alex65536/formgate/internal/util/idgen"
	"github.com/alex65536/formgate/internal/util/timeutil"
	"golang.org/x/crypto/argon2"
)

type PasswordOptions struct {
	Time    uint32 `toml:"time"`
	Memory  uint32 `toml:"memory"`
	Threads uint8  `toml:"threads"`
	KeyLen  uint32 `toml:"key-len"`
	SaltLen uint32 `toml:"salt-len"`
}

func (o PasswordOptions) Clone() PasswordOptions { return o }

func (o *PasswordOptions) FillDefaults() {
	if o.Time == 0 {
		o.Time = 3
	}
	if o.Memory == 0 {
		o.Memory = 16384
	}
	if o.Threads == 0 {
		o.Threads = 1
	}
	if o.KeyLen == 0 {
		o.KeyLen = 32
	}
	if o.SaltLen == 0 {
		o.SaltLen = 32
	}
}

type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	PasswordHash []byte
	PasswordSalt []byte
	// Bumped on every password change, so that sessions issued before it become stale.
	Epoch     int
	CreatedAt timeutil.UTCTime
}

// The stored hash is argon2id over the client-side digest, never over the plaintext.
func (u *User) doHash(digested string, o *PasswordOptions) []byte {
	return argon2.IDKey([]byte(digested), u.PasswordSalt, o.Time, o.Memory, o.Threads, o.KeyLen)
}

func (u *User) SetPassword(digested string, o *PasswordOptions) error {
	salt, err := idgen.SecureBytes(int(o.SaltLen))
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	u.PasswordSalt = salt
	u.PasswordHash = u.doHash(digested, o)
	u.Epoch++
	return nil
}

func (u *User) VerifyPassword(digested string, o *PasswordOptions) bool {
	if len(u.PasswordHash) == 0 {
		return false
	}
	hash := u.doHash(digested, o)
	return subtle.ConstantTimeCompare(hash, u.PasswordHash) == 1
}
