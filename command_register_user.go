package accounts

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used to parse phone numbers without a country prefix.
const DefaultPhoneRegion = "US"

type RegisterUserMessage struct {
	Username    string `json:"username"`
	Realname    string `json:"realname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	PhoneRegion string `json:"phone_region"`
	Role        string `json:"role"`
	Password    string `json:"password"`
	// Activate creates the account already active and verified.
	Activate   bool `json:"activate"`
	UseHashid  bool
	OnResponse func(u *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.EmailFormat),
		validation.Field(&e.Username, validation.Length(0, 64)),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&e.Role, validation.By(func(value any) error {
			role, _ := value.(string)
			if role == "" {
				return nil
			}
			if _, ok := ParseRole(role); !ok {
				return validation.NewError("validation_invalid_role", "must be a valid role")
			}
			return nil
		})),
	)
}

// RegisterUserHandler creates an account. It backs the CLI, registration over
// HTTP is not exposed.
type RegisterUserHandler struct {
	deps Dependencies
	now  func() time.Time
}

func NewRegisterUserHandler(deps Dependencies) *RegisterUserHandler {
	return &RegisterUserHandler{deps: deps, now: time.Now}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	event.Email = strings.TrimSpace(event.Email)
	if err := event.Validate(); err != nil {
		return errInvalidPayload(err)
	}

	phone, err := normalizePhone(event.Phone, event.PhoneRegion)
	if err != nil {
		return err
	}

	hasher := h.deps.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	hash, err := hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        event.Email,
		Phone:        phone,
		Realname:     event.Realname,
		Username:     getUsername(event.Username, event.Email),
		PasswordHash: hash,
		Status:       UserStatusPending,
	}
	if role, ok := ParseRole(event.Role); ok {
		user.Role = role
	}
	if event.Activate {
		now := h.now()
		user.Status = UserStatusActive
		user.ActivatedAt = &now
		user.EmailValidated = true
	}
	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			user.ID = id
		}
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	users := h.deps.Repo.Users()
	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := users.EmailTakenTx(ctx, tx, user.Email, user.ID)
		if err != nil {
			return err
		}
		if taken {
			return errEmailTaken(user.Email)
		}

		if user, err = users.RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
				WithCode(goerrors.CodeConflict)
		}
		return nil
	})
	if err != nil {
		return richError(err, "user registration transaction failed")
	}

	recordActivity(ctx, h.deps.activity(), h.deps.logger(), ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{Type: "system"},
		UserID:    user.ID.String(),
		ToStatus:  user.Status,
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}

// normalizePhone formats phone as E.164, empty input is allowed.
func normalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", goerrors.NewValidation("invalid phone number", goerrors.FieldError{
			Field:   "phone",
			Message: "must be a valid phone number",
			Value:   phone,
		}).WithCode(422).WithTextCode(TextCodeInvalidPayload)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
