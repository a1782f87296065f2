package accounts

import (
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-accounts/signedlink"
)

// LinkKind names a signed link flow.
type LinkKind string

const (
	LinkActivation  LinkKind = "activation"
	LinkEmailChange LinkKind = "email_change"
)

const (
	ActivationPath  = "/user/activate"
	EmailChangePath = "/user/email/confirm"

	DefaultActivationTTL  = 24 * time.Hour
	DefaultEmailChangeTTL = 24 * time.Hour
)

// SignedLinks issues and checks the confirmation URLs of both flows. Links
// are bound to their endpoint: a URL signed for activation never validates
// as an email change confirmation.
type SignedLinks struct {
	signer         *signedlink.Signer
	appURL         string
	activationTTL  time.Duration
	emailChangeTTL time.Duration
	tracker        signedlink.ConsumptionTracker
	observer       Observer
}

var _ Links = (*SignedLinks)(nil)

// SignedLinksOption configures SignedLinks
type SignedLinksOption func(*SignedLinks)

// WithConsumptionTracker makes every link single use.
func WithConsumptionTracker(tracker signedlink.ConsumptionTracker) SignedLinksOption {
	return func(l *SignedLinks) {
		l.tracker = tracker
	}
}

// WithLinkObserver reports issued and checked links.
func WithLinkObserver(o Observer) SignedLinksOption {
	return func(l *SignedLinks) {
		l.observer = normalizeObserver(o)
	}
}

// NewSignedLinks creates the link issuer for the API served at cfg.GetAppURL().
func NewSignedLinks(signer *signedlink.Signer, cfg Config, opts ...SignedLinksOption) *SignedLinks {
	l := &SignedLinks{
		signer:         signer,
		appURL:         strings.TrimRight(cfg.GetAppURL(), "/"),
		activationTTL:  cfg.GetActivationTTL(),
		emailChangeTTL: cfg.GetEmailChangeTTL(),
		observer:       noopObserver{},
	}
	if l.activationTTL <= 0 {
		l.activationTTL = DefaultActivationTTL
	}
	if l.emailChangeTTL <= 0 {
		l.emailChangeTTL = DefaultEmailChangeTTL
	}
	if cfg.GetSingleUseLinks() {
		l.tracker = signedlink.NewMemoryTracker(0)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// ActivationURL returns the link that activates user's account.
func (l *SignedLinks) ActivationURL(user *User) (string, error) {
	out, err := l.signer.Generate(l.appURL+ActivationPath, map[string]string{
		"email": user.Email,
	}, l.activationTTL)
	if err != nil {
		return "", err
	}
	l.observer.LinkIssued(LinkActivation)
	return out, nil
}

// EmailChangeURL returns the link confirming newEmail for user.
func (l *SignedLinks) EmailChangeURL(user *User, newEmail string) (string, error) {
	out, err := l.signer.Generate(l.appURL+EmailChangePath, map[string]string{
		"user_id": user.ID.String(),
		"email":   newEmail,
	}, l.emailChangeTTL)
	if err != nil {
		return "", err
	}
	l.observer.LinkIssued(LinkEmailChange)
	return out, nil
}

// Check validates a presented link of the given kind. rawQuery is the query
// string the endpoint received, without the leading "?".
func (l *SignedLinks) Check(kind LinkKind, rawQuery string) (*signedlink.Link, error) {
	path := ActivationPath
	if kind == LinkEmailChange {
		path = EmailChangePath
	}
	full := l.appURL + path + "?" + rawQuery

	link, err := l.signer.VerifyLink(full)
	if err != nil {
		l.observer.LinkChecked(kind, linkResult(err))
		return nil, errInvalidLink(err)
	}

	if l.tracker != nil && !l.tracker.Consume(link.Signature, link.ExpiresAt) {
		l.observer.LinkChecked(kind, LinkResultAlreadyUsed)
		return nil, errLinkAlreadyUsed()
	}

	l.observer.LinkChecked(kind, LinkResultValid)
	return link, nil
}

func linkResult(err error) string {
	switch {
	case errors.Is(err, signedlink.ErrExpired):
		return LinkResultExpired
	case errors.Is(err, signedlink.ErrInvalidSignature):
		return LinkResultInvalid
	default:
		return LinkResultMalformed
	}
}
