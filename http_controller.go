package accounts

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/goliatone/go-accounts/middleware/jwtware"
)

// Confirmation types reported in the redirect after following a signed link.
const (
	ConfirmationRegister = "register"
	ConfirmationEmail    = "email"
)

// UserControllerRoutes holds the paths the controller mounts.
type UserControllerRoutes struct {
	Users             string
	Me                string
	SendActivation    string
	Activate          string
	EmailChange       string
	EmailConfirm      string
	Notifications     string
	NotificationsRead string
}

// UserController serves the user resource API.
type UserController struct {
	Debug          bool
	Logger         Logger
	Repo           RepositoryManager
	Handlers       Handlers
	Tokens         TokenService
	Config         Config
	Routes         *UserControllerRoutes
	MailRateLimit  int
	MailRateWindow time.Duration
}

type UserControllerOption func(*UserController) *UserController

// WithControllerDebug dumps request payloads to the logger.
func WithControllerDebug(debug bool) UserControllerOption {
	return func(uc *UserController) *UserController {
		uc.Debug = debug
		return uc
	}
}

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) UserControllerOption {
	return func(uc *UserController) *UserController {
		if logger != nil {
			uc.Logger = logger
		}
		return uc
	}
}

// WithMailRateLimit caps the mail sending endpoints to max requests per
// window and user. Zero disables the limit.
func WithMailRateLimit(max int, window time.Duration) UserControllerOption {
	return func(uc *UserController) *UserController {
		uc.MailRateLimit = max
		uc.MailRateWindow = window
		return uc
	}
}

// NewUserController creates the controller. Handlers are built from deps.
func NewUserController(deps Dependencies, tokens TokenService, opts ...UserControllerOption) *UserController {
	uc := &UserController{
		Logger:         resolveLogger(deps.Logger),
		Repo:           deps.Repo,
		Handlers:       NewHandlers(deps),
		Tokens:         tokens,
		Config:         deps.Config,
		MailRateLimit:  5,
		MailRateWindow: time.Minute,
		Routes: &UserControllerRoutes{
			Users:             "/users",
			Me:                "/user",
			SendActivation:    "/user/send-active-mail",
			Activate:          ActivationPath,
			EmailChange:       "/user/email",
			EmailConfirm:      EmailChangePath,
			Notifications:     "/user/notifications",
			NotificationsRead: "/user/notifications/read",
		},
	}

	for _, opt := range opts {
		uc = opt(uc)
	}

	if uc.Repo == nil {
		panic("Missing RepositoryManager in user controller...")
	}

	if uc.Tokens == nil {
		panic("Missing TokenService in user controller...")
	}

	return uc
}

// RegisterUserRoutes mounts the user endpoints of uc on r.
func RegisterUserRoutes[T any](r router.Router[T], uc *UserController) {
	auth := uc.Authenticate()
	mail := uc.mailLimiter()

	r.Get(uc.Routes.Users, uc.Index)
	r.Get(uc.Routes.Users+"/:id", uc.Show)
	r.Patch(uc.Routes.Users+"/:id", uc.Update, auth)
	r.Get(uc.Routes.Users+"/:id/followers", uc.Followers)
	r.Get(uc.Routes.Users+"/:id/followings", uc.Followings)
	r.Get(uc.Routes.Users+"/:id/activities", uc.Activities)
	r.Post(uc.Routes.Users+"/:id/follow", uc.Follow, auth)
	r.Post(uc.Routes.Users+"/:id/unfollow", uc.Unfollow, auth)

	r.Get(uc.Routes.Me, uc.Me, auth)
	r.Get(uc.Routes.Notifications, uc.Notifications, auth)
	r.Post(uc.Routes.NotificationsRead, uc.MarkNotificationsRead, auth)
	r.Post(uc.Routes.SendActivation, uc.SendActiveMail, auth, mail)
	r.Get(uc.Routes.Activate, uc.Activate)
	r.Post(uc.Routes.EmailChange, uc.EditEmail, auth, mail)
	r.Get(uc.Routes.EmailConfirm, uc.UpdateEmail)
}

// Authenticate validates the bearer token and loads the user it names.
func (uc *UserController) Authenticate() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config[AuthClaims]{
		TokenValidator:  uc.Tokens,
		ContextKey:      ClaimsStoreKey,
		ContextEnricher: WithClaimsContext,
		ErrorHandler: func(ctx router.Context, err error) error {
			uc.Logger.Debug("rejected bearer token: %v", err)
			return errUnauthenticated()
		},
		SuccessHandler: uc.loadCurrentUser,
	})
}

func (uc *UserController) loadCurrentUser(ctx router.Context, next router.HandlerFunc) error {
	claims, ok := GetRouterClaims(ctx, ClaimsStoreKey)
	if !ok {
		return errUnauthenticated()
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return errUnauthenticated()
	}

	user, err := uc.Repo.Users().FindByID(ctx.Context(), id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return errUnauthenticated()
		}
		return err
	}

	ctx.Set(UserStoreKey, user)
	ctx.SetContext(WithContext(ctx.Context(), user))
	return next(ctx)
}

// mailLimiter allows MailRateLimit requests per user in a fixed
// MailRateWindow. It must run after Authenticate.
func (uc *UserController) mailLimiter() router.MiddlewareFunc {
	if uc.MailRateLimit <= 0 {
		return func(next router.HandlerFunc) router.HandlerFunc { return next }
	}

	hits := cache.New(uc.MailRateWindow, 2*uc.MailRateWindow)
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			key := "anonymous"
			if user, ok := CurrentUser(ctx); ok {
				key = "user:" + user.ID.String()
			}

			hits.Add(key, 0, uc.MailRateWindow)
			n, err := hits.IncrementInt(key, 1)
			if err != nil {
				// window closed between Add and IncrementInt
				hits.Set(key, 1, uc.MailRateWindow)
				n = 1
			}

			if n > uc.MailRateLimit {
				return goerrors.New("too many mail requests, try again later", goerrors.CategoryRateLimit).
					WithCode(goerrors.CodeTooManyRequests).
					WithTextCode(goerrors.HTTPStatusToTextCode(http.StatusTooManyRequests))
			}
			return next(ctx)
		}
	}
}

func (uc *UserController) Index(ctx router.Context) error {
	filter := UserFilter{
		Search: ctx.Query("search", ""),
		Status: UserStatus(ctx.Query("status", "")),
		Role:   UserRole(ctx.Query("role", "")),
	}

	page, err := uc.Repo.Users().Search(ctx.Context(), filter, pageRequest(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MapPage(page, NewUserResource))
}

func (uc *UserController) Show(ctx router.Context) error {
	user, err := uc.findUser(ctx)
	if err != nil {
		return err
	}

	res, err := NewUserResource(user).WithCounts(ctx.Context(), uc.Repo.Users())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{"data": res})
}

// ProfilePayload is the body accepted by Update. Unknown fields are ignored.
type ProfilePayload struct {
	Avatar   *string        `json:"avatar"`
	Realname *string        `json:"realname"`
	Bio      *string        `json:"bio"`
	Gender   *string        `json:"gender"`
	Extends  map[string]any `json:"extends"`
	Settings map[string]any `json:"settings"`
	Cache    map[string]any `json:"cache"`
}

func (p ProfilePayload) toUpdate() ProfileUpdate {
	return ProfileUpdate(p)
}

func (uc *UserController) Update(ctx router.Context) error {
	actor, _ := CurrentUser(ctx)
	id, err := userIDParam(ctx)
	if err != nil {
		return err
	}

	payload := new(ProfilePayload)
	if err := ctx.Bind(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}
	uc.debug("profile update", payload)

	var updated *User
	err = uc.Handlers.UpdateProfile.Execute(ctx.Context(), UpdateProfileMessage{
		Actor:      actor,
		UserID:     id,
		Profile:    payload.toUpdate(),
		OnResponse: func(u *User) { updated = u },
	})
	if err != nil {
		return err
	}

	res, err := NewUserResource(updated).WithCounts(ctx.Context(), uc.Repo.Users())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{"data": res})
}

func (uc *UserController) Followers(ctx router.Context) error {
	user, err := uc.findUser(ctx)
	if err != nil {
		return err
	}
	page, err := uc.Repo.Users().Followers(ctx.Context(), user.ID, pageRequest(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MapPage(page, NewUserResource))
}

func (uc *UserController) Followings(ctx router.Context) error {
	user, err := uc.findUser(ctx)
	if err != nil {
		return err
	}
	page, err := uc.Repo.Users().Followings(ctx.Context(), user.ID, pageRequest(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MapPage(page, NewUserResource))
}

func (uc *UserController) Activities(ctx router.Context) error {
	user, err := uc.findUser(ctx)
	if err != nil {
		return err
	}
	page, err := uc.Repo.Activities().ListForUser(ctx.Context(), user.ID, pageRequest(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MapPage(page, NewActivityResource))
}

func (uc *UserController) Follow(ctx router.Context) error {
	actor, _ := CurrentUser(ctx)
	id, err := userIDParam(ctx)
	if err != nil {
		return err
	}

	err = uc.Handlers.FollowUser.Execute(ctx.Context(), FollowUserMessage{
		FollowerID:  actor.ID,
		FollowingID: id,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{})
}

func (uc *UserController) Unfollow(ctx router.Context) error {
	actor, _ := CurrentUser(ctx)
	id, err := userIDParam(ctx)
	if err != nil {
		return err
	}

	err = uc.Handlers.UnfollowUser.Execute(ctx.Context(), UnfollowUserMessage{
		FollowerID:  actor.ID,
		FollowingID: id,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{})
}

func (uc *UserController) Me(ctx router.Context) error {
	user, _ := CurrentUser(ctx)
	reqCtx := ctx.Context()

	counts, err := NewUserResource(user).WithCounts(reqCtx, uc.Repo.Users())
	if err != nil {
		return err
	}
	unread, err := uc.Repo.Notifications().CountUnread(reqCtx, user.ID)
	if err != nil {
		return err
	}

	res := NewPrivateUserResource(user)
	res.UserResource = counts
	res.UnreadNotifications = unread
	return ctx.JSON(http.StatusOK, map[string]any{"data": res})
}

func (uc *UserController) Notifications(ctx router.Context) error {
	user, _ := CurrentUser(ctx)
	filter := NotificationFilter{
		Type:       ctx.Query("type", ""),
		UnreadOnly: queryBool(ctx, "unread"),
	}

	page, err := uc.Repo.Notifications().ListForUser(ctx.Context(), user.ID, filter, pageRequest(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MapPage(page, NewNotificationResource))
}

// MarkReadPayload lists the notifications to mark, empty marks all.
type MarkReadPayload struct {
	IDs []uuid.UUID `json:"ids"`
}

func (uc *UserController) MarkNotificationsRead(ctx router.Context) error {
	user, _ := CurrentUser(ctx)
	payload := new(MarkReadPayload)
	if len(ctx.Body()) > 0 {
		if err := ctx.Bind(payload); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
				WithCode(goerrors.CodeBadRequest)
		}
	}

	n, err := uc.Repo.Notifications().MarkRead(ctx.Context(), user.ID, payload.IDs...)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]any{"marked": n})
}

func (uc *UserController) SendActiveMail(ctx router.Context) error {
	user, _ := CurrentUser(ctx)

	var res *MessageResponse
	err := uc.Handlers.SendActivation.Execute(ctx.Context(), SendActivationMessage{
		UserID:     user.ID,
		OnResponse: func(r *MessageResponse) { res = r },
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (uc *UserController) Activate(ctx router.Context) error {
	err := uc.Handlers.ActivateAccount.Execute(ctx.Context(), ActivateAccountMessage{
		RawQuery: rawQuery(ctx),
	})
	return uc.confirmationRedirect(ctx, ConfirmationRegister, err)
}

// EmailPayload is the body accepted by EditEmail.
type EmailPayload struct {
	Email string `json:"email" form:"email"`
}

func (uc *UserController) EditEmail(ctx router.Context) error {
	user, _ := CurrentUser(ctx)

	payload := new(EmailPayload)
	if err := ctx.Bind(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithCode(goerrors.CodeBadRequest)
	}
	uc.debug("email change", payload)

	var res *MessageResponse
	err := uc.Handlers.RequestEmailChange.Execute(ctx.Context(), RequestEmailChangeMessage{
		UserID:     user.ID,
		Email:      payload.Email,
		OnResponse: func(r *MessageResponse) { res = r },
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (uc *UserController) UpdateEmail(ctx router.Context) error {
	err := uc.Handlers.ConfirmEmailChange.Execute(ctx.Context(), ConfirmEmailChangeMessage{
		RawQuery: rawQuery(ctx),
	})
	return uc.confirmationRedirect(ctx, ConfirmationEmail, err)
}

func (uc *UserController) confirmationRedirect(ctx router.Context, kind string, err error) error {
	success := "yes"
	if err != nil {
		success = "no"
		uc.Logger.Info("%s confirmation failed: %v", kind, err)
	}
	ctx.SetHeader("Location", ConfirmationURL(uc.siteURL(), success, kind))
	return ctx.NoContent(http.StatusFound)
}

func (uc *UserController) siteURL() string {
	if uc.Config == nil {
		return "/"
	}
	return uc.Config.GetSiteURL()
}

func (uc *UserController) findUser(ctx router.Context) (*User, error) {
	id, err := userIDParam(ctx)
	if err != nil {
		return nil, err
	}
	return uc.Repo.Users().FindByID(ctx.Context(), id)
}

func (uc *UserController) debug(label string, payload any) {
	if uc.Debug {
		uc.Logger.Debug("%s payload: %s", label, print.MaybePrettyJSON(payload))
	}
}

// ConfirmationURL builds the front end landing URL for a confirmation result.
func ConfirmationURL(siteURL, success, kind string) string {
	q := url.Values{}
	q.Set("active-success", success)
	q.Set("type", kind)

	sep := "?"
	if strings.Contains(siteURL, "?") {
		sep = "&"
	}
	return siteURL + sep + q.Encode()
}

// rawQuery returns the query string captured by the server, see NewFiberServer.
func rawQuery(ctx router.Context) string {
	return RawQuery(ctx.Context())
}

func queryBool(ctx router.Context, name string) bool {
	v, err := strconv.ParseBool(ctx.Query(name, ""))
	return err == nil && v
}

func pageRequest(ctx router.Context) PageRequest {
	return NewPageRequest(ctx.Query("page", ""), ctx.Query("per_page", ""))
}

func userIDParam(ctx router.Context) (uuid.UUID, error) {
	raw := ctx.Param("id", "")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errUserNotFound(map[string]any{"id": raw})
	}
	return id, nil
}
