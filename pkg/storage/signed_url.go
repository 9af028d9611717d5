package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed tokens and signature mismatches.
	ErrTokenInvalid = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner issues time-limited download tokens of the form
// subject.expiry.path.signature for files in a LocalStorage.
type SignedURLSigner struct {
	secret []byte
	scope  string
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Scope returns a signer whose tokens only verify under the same scope, so a
// QR download token cannot be replayed against the export endpoint.
func (s *SignedURLSigner) Scope(scope string) *SignedURLSigner {
	if s == nil {
		return nil
	}
	scoped := *s
	scoped.scope = scope
	return &scoped
}

// Generate binds subject (a student or export id) to a stored file path.
func (s *SignedURLSigner) Generate(subject, relPath string) (string, time.Time, error) {
	switch {
	case subject == "" || relPath == "":
		return "", time.Time{}, fmt.Errorf("subject and relPath required")
	case strings.Contains(subject, "."):
		return "", time.Time{}, fmt.Errorf("subject must not contain '.'")
	case len(s.secret) == 0:
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	expiry := strconv.FormatInt(expiresAt.Unix(), 10)
	path := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{subject, expiry, path, s.sign(subject, expiry, path)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded metadata. When
// allowExpired is true the expiry is reported but not enforced.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (subject, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	subject, expiry, path, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(subject, expiry, path)), []byte(signature)) {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(path)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}

	expiresAt = time.Unix(unix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return subject, string(raw), expiresAt, nil
}

func (s *SignedURLSigner) sign(subject, expiry, path string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(s.scope + "|" + subject + "|" + expiry + "|" + path))
	return hex.EncodeToString(mac.Sum(nil))
}
