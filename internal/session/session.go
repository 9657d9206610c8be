package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"medchat/internal/models"
)

var (
	bucketName = []byte("session")
	keyToken   = []byte("token")
	keyUser    = []byte("user")
)

// AuthManager holds the signed-in account. When opened with a path the
// session survives restarts in a bbolt file.
type AuthManager struct {
	mu     sync.RWMutex
	db     *bbolt.DB
	token  string
	user   *models.PublicUser
	logger *zap.Logger
	now    func() time.Time
}

// Open loads the session stored at path. An empty path keeps it in memory.
func Open(path string, logger *zap.Logger) (*AuthManager, error) {
	a := &AuthManager{logger: logger, now: time.Now}
	if path == "" {
		return a, nil
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("session.Open: %w", err)
	}
	a.db = db

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		a.token = string(b.Get(keyToken))
		if raw := b.Get(keyUser); raw != nil {
			var u models.PublicUser
			if err := json.Unmarshal(raw, &u); err != nil {
				// A corrupt record only costs a fresh login.
				logger.Warn("discarding unreadable stored user", zap.Error(err))
				a.token = ""
				return nil
			}
			a.user = &u
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("session.Open: loading session: %w", err)
	}

	if a.token != "" {
		logger.Info("restored session", zap.String("username", a.Username()), zap.Bool("expired", a.Expired()))
	}
	return a, nil
}

// Close releases the session file.
func (a *AuthManager) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// SetAuthData stores the token and user returned by a successful login.
func (a *AuthManager) SetAuthData(token string, user *models.PublicUser) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("SetAuthData: encoding user: %w", err)
		}
		err = a.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketName)
			if err := b.Put(keyToken, []byte(token)); err != nil {
				return err
			}
			return b.Put(keyUser, raw)
		})
		if err != nil {
			return fmt.Errorf("SetAuthData: %w", err)
		}
	}
	a.token = token
	a.user = user
	return nil
}

// Clear forgets the session. The in-memory copy is always cleared, even if
// the file cannot be updated.
func (a *AuthManager) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.token = ""
	a.user = nil
	if a.db == nil {
		return nil
	}
	err := a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Delete(keyToken); err != nil {
			return err
		}
		return b.Delete(keyUser)
	})
	if err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

func (a *AuthManager) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// User returns a copy of the signed-in user, or nil.
func (a *AuthManager) User() *models.PublicUser {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *AuthManager) UserID() int64 {
	if u := a.User(); u != nil {
		return u.ID
	}
	return 0
}

func (a *AuthManager) Username() string {
	if u := a.User(); u != nil {
		return u.Username
	}
	return ""
}

func (a *AuthManager) Role() models.Role {
	if u := a.User(); u != nil {
		return u.Role
	}
	return models.RoleUnknown
}

// Expired reports whether the token carries an exp claim in the past.
// The signature is not checked; the server remains the authority. Tokens
// that are not JWTs, or carry no exp, never expire locally.
func (a *AuthManager) Expired() bool {
	token := a.Token()
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !a.now().Before(exp.Time)
}

// IsAuthenticated reports whether a token is held and not known to be expired.
func (a *AuthManager) IsAuthenticated() bool {
	return a.Token() != "" && !a.Expired()
}
