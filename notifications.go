package accounts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-accounts/mailer"
	goerrors "github.com/goliatone/go-errors"
)

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelDatabase Channel = "database"
	ChannelMail     Channel = "mail"
)

// Notification type identifiers, stored in notifications.type.
const (
	NotificationActivation  = "activation"
	NotificationEmailChange = "email_change"
	NotificationWelcome     = "welcome"
	NotificationNewFollower = "new_follower"
)

// Recipient is who a notice is delivered to. Address overrides the user's
// email for the mail channel.
type Recipient struct {
	User    *User
	Address string
}

// To addresses u at its current email.
func To(u *User) Recipient {
	return Recipient{User: u}
}

// MailAddress returns where mail for the recipient goes.
func (r Recipient) MailAddress() string {
	if r.Address != "" {
		return r.Address
	}
	if r.User != nil {
		return r.User.Email
	}
	return ""
}

// Notice is a notification that can be delivered on one or more channels.
type Notice interface {
	Type() string
	Channels() []Channel
	// Mail builds the mail channel message for r.
	Mail(r Recipient) mailer.Message
	// Data is stored with the database channel record.
	Data() map[string]any
}

// ActivationMail carries the account activation link.
type ActivationMail struct {
	URL string
	TTL time.Duration
}

func (n ActivationMail) Type() string        { return NotificationActivation }
func (n ActivationMail) Channels() []Channel { return []Channel{ChannelMail} }
func (n ActivationMail) Data() map[string]any {
	return nil
}

func (n ActivationMail) Mail(r Recipient) mailer.Message {
	return mailer.Message{
		To:       r.MailAddress(),
		Subject:  "Activate your account",
		Template: "activation",
		Data: map[string]any{
			"name":      displayName(r.User),
			"url":       n.URL,
			"ttl_hours": int(n.TTL.Hours()),
		},
	}
}

// EmailChangeMail carries the confirmation link for a new address. It is
// addressed to the new address, not the current one.
type EmailChangeMail struct {
	Email string
	URL   string
	TTL   time.Duration
}

func (n EmailChangeMail) Type() string        { return NotificationEmailChange }
func (n EmailChangeMail) Channels() []Channel { return []Channel{ChannelMail} }
func (n EmailChangeMail) Data() map[string]any {
	return map[string]any{"email": n.Email}
}

func (n EmailChangeMail) Mail(r Recipient) mailer.Message {
	return mailer.Message{
		To:       r.MailAddress(),
		Subject:  "Confirm your new email address",
		Template: "email_change",
		Data: map[string]any{
			"name":      displayName(r.User),
			"email":     n.Email,
			"url":       n.URL,
			"ttl_hours": int(n.TTL.Hours()),
		},
	}
}

// Welcome greets a freshly activated account.
type Welcome struct {
	SiteURL string
}

func (n Welcome) Type() string        { return NotificationWelcome }
func (n Welcome) Channels() []Channel { return []Channel{ChannelMail, ChannelDatabase} }
func (n Welcome) Data() map[string]any {
	return map[string]any{"message": "Welcome aboard!"}
}

func (n Welcome) Mail(r Recipient) mailer.Message {
	return mailer.Message{
		To:       r.MailAddress(),
		Subject:  "Welcome!",
		Template: "welcome",
		Data: map[string]any{
			"name":     displayName(r.User),
			"site_url": n.SiteURL,
		},
	}
}

// NewFollower tells a user someone started following them.
type NewFollower struct {
	Follower *User
}

func (n NewFollower) Type() string        { return NotificationNewFollower }
func (n NewFollower) Channels() []Channel { return []Channel{ChannelDatabase, ChannelMail} }
func (n NewFollower) Data() map[string]any {
	return map[string]any{
		"follower_id":       n.Follower.ID.String(),
		"follower_username": n.Follower.Username,
		"follower_name":     displayName(n.Follower),
		"follower_avatar":   n.Follower.Avatar,
	}
}

func (n NewFollower) Mail(r Recipient) mailer.Message {
	return mailer.Message{
		To:       r.MailAddress(),
		Subject:  displayName(n.Follower) + " started following you",
		Template: "new_follower",
		Data: map[string]any{
			"name":              displayName(r.User),
			"follower_name":     displayName(n.Follower),
			"follower_username": n.Follower.Username,
		},
	}
}

func displayName(u *User) string {
	if u == nil {
		return ""
	}
	if u.Realname != "" {
		return u.Realname
	}
	return u.Username
}

// Notifier fans notices out to their channels.
type Notifier struct {
	store    Notifications
	mailer   Mailer
	logger   Logger
	observer Observer
	async    bool
	wg       sync.WaitGroup
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithAsyncDelivery sends mail in the background. Send then only reports
// database channel failures.
func WithAsyncDelivery() NotifierOption {
	return func(n *Notifier) {
		n.async = true
	}
}

// WithNotifierLogger sets the logger
func WithNotifierLogger(l Logger) NotifierOption {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithNotifierObserver reports deliveries.
func WithNotifierObserver(o Observer) NotifierOption {
	return func(n *Notifier) {
		n.observer = normalizeObserver(o)
	}
}

// NewNotifier creates a Notifier. store may be nil when no notice uses the
// database channel.
func NewNotifier(store Notifications, m Mailer, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		store:    store,
		mailer:   m,
		logger:   DiscardLogger(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Send delivers notice to r on every channel it declares.
func (n *Notifier) Send(ctx context.Context, r Recipient, notice Notice) error {
	var errs []error
	for _, ch := range notice.Channels() {
		switch ch {
		case ChannelDatabase:
			if err := n.toDatabase(ctx, r, notice); err != nil {
				errs = append(errs, err)
			}
		case ChannelMail:
			if n.async {
				n.wg.Add(1)
				go func() {
					defer n.wg.Done()
					if err := n.toMail(context.WithoutCancel(ctx), r, notice); err != nil {
						n.logger.Error("async %s mail to %s failed: %v", notice.Type(), r.MailAddress(), err)
					}
				}()
				continue
			}
			if err := n.toMail(ctx, r, notice); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return goerrors.Wrap(errors.Join(errs...), goerrors.CategoryExternal, "notification delivery failed").
			WithTextCode(TextCodeNotificationFailed).
			WithMetadata(map[string]any{"type": notice.Type()})
	}
	return nil
}

// Wait blocks until background deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) toDatabase(ctx context.Context, r Recipient, notice Notice) error {
	if n.store == nil || r.User == nil {
		return nil
	}
	_, err := n.store.Create(ctx, &Notification{
		NotifiableID: r.User.ID,
		Type:         notice.Type(),
		Data:         notice.Data(),
	})
	n.observer.NotificationDelivered(ChannelDatabase, notice.Type(), err)
	return err
}

func (n *Notifier) toMail(ctx context.Context, r Recipient, notice Notice) error {
	if n.mailer == nil {
		return nil
	}
	err := n.mailer.Send(ctx, notice.Mail(r))
	n.observer.NotificationDelivered(ChannelMail, notice.Type(), err)
	return err
}
