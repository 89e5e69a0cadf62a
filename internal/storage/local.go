package storage

import (
	"alcyxob/video-catalog/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

const readScope = "read"

// readClaims is the payload of a local read capability token.
type readClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// LocalStorage keeps objects on the local filesystem and serves them through
// the API's /media route. Read capabilities are HS256 tokens bound to one key.
type LocalStorage struct {
	baseDir       string
	publicBaseURL string
	signingKey    []byte
	now           func() time.Time
	logger        logrus.FieldLogger
}

type LocalOption func(*LocalStorage)

func WithLocalClock(clock func() time.Time) LocalOption {
	return func(s *LocalStorage) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewLocalStorage creates the filesystem store rooted at cfg.BaseDir.
func NewLocalStorage(cfg config.LocalConfig, logger logrus.FieldLogger, opts ...LocalOption) (*LocalStorage, error) {
	if cfg.BaseDir == "" || cfg.PublicBaseURL == "" || cfg.SigningKey == "" {
		return nil, fmt.Errorf("%w: local store needs base_dir, public_base_url and signing_key", ErrNotConfigured)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStorageUnavailable, cfg.BaseDir, err)
	}

	s := &LocalStorage{
		baseDir:       cfg.BaseDir,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		signingKey:    []byte(cfg.SigningKey),
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	logger.WithField("base_dir", cfg.BaseDir).Info("local object store initialized")
	return s, nil
}

// Put writes to a temp file in the same directory and renames it into place
// once everything is flushed, so readers never see a partial object.
func (s *LocalStorage) Put(ctx context.Context, r io.Reader, contentType, suggestedName string) (Object, error) {
	key := NewObjectKey(suggestedName)

	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	body := &countingReader{ctx: ctx, r: r}
	if _, err := io.Copy(tmp, body); err != nil {
		s.logger.WithFields(logrus.Fields{"key": key, "bytes": body.n}).WithError(err).Error("local put failed")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Object{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return Object{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		return Object{}, fmt.Errorf("%w: sync: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("%w: close: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.baseDir, key)); err != nil {
		return Object{}, fmt.Errorf("%w: rename: %w", ErrWriteFailed, err)
	}
	committed = true

	return Object{Key: key, Size: body.n, ContentType: contentType}, nil
}

// IssueReadCapability signs a token scoped to key and returns the media URL.
func (s *LocalStorage) IssueReadCapability(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("%w: bad key %q", ErrInvalidCapability, key)
	}
	now := s.now()
	claims := readClaims{
		Scope: readScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(normalizeTTL(ttl)))),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign read capability: %w", err)
	}
	return s.publicBaseURL + "/media/" + url.PathEscape(key) + "?token=" + url.QueryEscape(token), nil
}

// ceilSecond rounds t up to a whole second. Token times are truncated to
// seconds, so rounding down would end a link before its TTL elapsed.
func ceilSecond(t time.Time) time.Time {
	if trunc := t.Truncate(time.Second); trunc.Before(t) {
		return trunc.Add(time.Second)
	}
	return t
}

// VerifyReadCapability checks that token grants read access to key right now.
// A token is rejected at its expiry instant, not one tick after.
func (s *LocalStorage) VerifyReadCapability(key, token string) error {
	var claims readClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCapability, err)
	}
	if claims.Scope != readScope || claims.Subject != key {
		return ErrInvalidCapability
	}
	if !claims.VerifyExpiresAt(s.now(), true) {
		return ErrCapabilityExpired
	}
	return nil
}

// Open returns the stored object for reading. The caller closes it.
func (s *LocalStorage) Open(key string) (*os.File, error) {
	if !validKey(key) {
		return nil, ErrObjectNotFound
	}
	f, err := os.Open(filepath.Join(s.baseDir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return f, nil
}

// validKey accepts only single path elements so a key can never escape baseDir.
func validKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, ".") && filepath.Base(key) == key && !strings.ContainsAny(key, `/\`)
}
