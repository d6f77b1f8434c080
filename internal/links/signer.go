package links

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	claimFileID   = "fid"
	claimUniqueID = "uid"
	claimName     = "name"
	claimMime     = "mime"
	claimSize     = "size"
)

// Signer issues stateless HS256 codes that carry the file reference. It
// survives restarts at the cost of longer URLs and no early revocation.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer. ttl bounds every issued code.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("link secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("link ttl must be positive")
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue implements Issuer.
func (s *Signer) Issue(ref Ref) (string, error) {
	if strings.TrimSpace(ref.FileID) == "" {
		return "", fmt.Errorf("file id is required")
	}
	now := s.now().UTC()
	claims := jwt.MapClaims{
		claimFileID: ref.FileID,
		"iat":       now.Unix(),
		"exp":       now.Add(s.ttl).Unix(),
	}
	if ref.UniqueID != "" {
		claims[claimUniqueID] = ref.UniqueID
	}
	if ref.Name != "" {
		claims[claimName] = ref.Name
	}
	if ref.Mime != "" {
		claims[claimMime] = ref.Mime
	}
	if ref.Size > 0 {
		claims[claimSize] = ref.Size
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Lookup verifies code and rebuilds its entry. Expired codes yield ErrExpired,
// anything else that fails verification yields ErrInvalid.
func (s *Signer) Lookup(code string) (Entry, error) {
	token, err := jwt.Parse(strings.TrimSpace(code), func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Entry{}, ErrExpired
		}
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Entry{}, ErrInvalid
	}
	fileID := claimString(claims, claimFileID)
	if fileID == "" {
		return Entry{}, fmt.Errorf("%w: file id missing", ErrInvalid)
	}
	issued, err := claims.GetIssuedAt()
	if err != nil || issued == nil {
		return Entry{}, fmt.Errorf("%w: issued-at missing", ErrInvalid)
	}
	var size int64
	if raw, ok := claims[claimSize].(float64); ok {
		size = int64(raw)
	}
	return Entry{
		Code: code,
		Ref: Ref{
			FileID:   fileID,
			UniqueID: claimString(claims, claimUniqueID),
			Name:     claimString(claims, claimName),
			Mime:     claimString(claims, claimMime),
			Size:     size,
		},
		CreatedAt: issued.Time,
	}, nil
}

// Delete is a no-op: signed codes cannot be revoked.
func (s *Signer) Delete(string) {}

func claimString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return ""
	}
	if value, ok := raw.(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
