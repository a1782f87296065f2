// Package signedlink produces and verifies tamper-evident, self-expiring URLs.
//
// A signed link carries its parameters, an integer `expires` timestamp and an
// HMAC-SHA256 `signature` in the query string. Validity is re-derived from the
// URL, the secret key and the clock; nothing is stored. A link validates every
// time it is presented until it expires, use ValidateOnce with a
// ConsumptionTracker when an action must only run once.
package signedlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// ExpiresParam is the query field holding the unix expiry timestamp.
	ExpiresParam = "expires"
	// SignatureParam is the query field holding the hex encoded MAC.
	SignatureParam = "signature"
)

var (
	ErrEmptyKey         = errors.New("signedlink: secret key is empty")
	ErrInvalidBaseURL   = errors.New("signedlink: invalid base url")
	ErrInvalidTTL       = errors.New("signedlink: ttl must be positive")
	ErrMalformed        = errors.New("signedlink: malformed signed url")
	ErrInvalidSignature = errors.New("signedlink: invalid signature")
	ErrExpired          = errors.New("signedlink: link expired")
	ErrReservedParam    = errors.New("signedlink: expires and signature are reserved parameters")
)

// Signer signs and verifies URLs with a process wide secret key.
type Signer struct {
	key []byte
	now func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock injects the time source, mostly useful in tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) {
		if clock != nil {
			s.now = clock
		}
	}
}

// New returns a Signer using key as the MAC key. The key is copied.
func New(key []byte, opts ...Option) (*Signer, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	s := &Signer{
		key: append([]byte(nil), key...),
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

// Generate returns baseURL with params, expires and signature appended.
// Query values already present on baseURL are kept unless params overrides them.
// Neither params nor baseURL may carry expires or signature.
func (s *Signer) Generate(baseURL string, params map[string]string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	base, query, err := splitURL(baseURL)
	if err != nil {
		return "", err
	}

	if reserved(query) {
		return "", ErrReservedParam
	}
	for k, v := range params {
		if k == ExpiresParam || k == SignatureParam {
			return "", ErrReservedParam
		}
		query.Set(k, v)
	}

	expires := s.now().Add(ttl).Unix()
	query.Set(ExpiresParam, strconv.FormatInt(expires, 10))

	canonical := query.Encode()
	signature := s.sign(base, canonical)

	return base + "?" + canonical + "&" + SignatureParam + "=" + signature, nil
}

// Validate reports whether fullURL carries a valid signature and has not
// expired. It never fails loudly: any malformed input is simply invalid.
func (s *Signer) Validate(fullURL string) bool {
	return s.Verify(fullURL) == nil
}

// Verify is Validate with the failure kind exposed. Callers facing end users
// must not leak the difference between the returned errors.
func (s *Signer) Verify(fullURL string) error {
	_, err := s.VerifyLink(fullURL)
	return err
}

// VerifyLink verifies fullURL like Verify and returns its decoded form.
func (s *Signer) VerifyLink(fullURL string) (*Link, error) {
	base, query, err := splitURL(fullURL)
	if err != nil {
		return nil, ErrMalformed
	}

	link, err := decode(base, query)
	if err != nil {
		return nil, err
	}

	query.Del(SignatureParam)
	expected := s.sign(base, query.Encode())

	if !hmac.Equal([]byte(expected), []byte(link.Signature)) {
		return nil, ErrInvalidSignature
	}

	if s.now().Unix() > link.ExpiresAt.Unix() {
		return nil, ErrExpired
	}

	return link, nil
}

// ValidateOnce validates fullURL and then records its signature with tracker,
// so a second presentation of the same link is rejected.
func (s *Signer) ValidateOnce(fullURL string, tracker ConsumptionTracker) bool {
	link, err := s.VerifyLink(fullURL)
	if err != nil {
		return false
	}

	if tracker == nil {
		return true
	}

	return tracker.Consume(link.Signature, link.ExpiresAt)
}

// Parse extracts the parameters, expiry and signature from fullURL without
// checking them. The signature and expires fields are not part of Params.
func Parse(fullURL string) (*Link, error) {
	base, query, err := splitURL(fullURL)
	if err != nil {
		return nil, ErrMalformed
	}
	return decode(base, query)
}

// Link is the decoded form of a signed URL.
type Link struct {
	BaseURL   string
	Params    map[string]string
	ExpiresAt time.Time
	Signature string
}

// Get returns the named parameter or an empty string.
func (l *Link) Get(key string) string {
	if l == nil {
		return ""
	}
	return l.Params[key]
}

func reserved(query url.Values) bool {
	_, hasExpires := query[ExpiresParam]
	_, hasSignature := query[SignatureParam]
	return hasExpires || hasSignature
}

func decode(base string, query url.Values) (*Link, error) {
	if len(query[SignatureParam]) != 1 || query.Get(SignatureParam) == "" {
		return nil, ErrMalformed
	}

	if len(query[ExpiresParam]) != 1 {
		return nil, ErrMalformed
	}

	expires, err := strconv.ParseInt(query.Get(ExpiresParam), 10, 64)
	if err != nil {
		return nil, ErrMalformed
	}

	params := make(map[string]string, len(query))
	for k := range query {
		if k == SignatureParam || k == ExpiresParam {
			continue
		}
		params[k] = query.Get(k)
	}

	return &Link{
		BaseURL:   base,
		Params:    params,
		ExpiresAt: time.Unix(expires, 0),
		Signature: query.Get(SignatureParam),
	}, nil
}

func (s *Signer) sign(base, canonical string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(base))
	mac.Write([]byte("?"))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// splitURL normalizes raw into scheme://host/path and its decoded query.
func splitURL(raw string) (string, url.Values, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil, ErrInvalidBaseURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, ErrInvalidBaseURL
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", nil, ErrInvalidBaseURL
	}

	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	base := u.String()
	if base == "" {
		return "", nil, ErrInvalidBaseURL
	}

	return base, query, nil
}
