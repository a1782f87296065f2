package accounts

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeSelfFollow         = "SELF_FOLLOW"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeInvalidLink        = "INVALID_SIGNED_LINK"
	TextCodeLinkAlreadyUsed    = "SIGNED_LINK_ALREADY_USED"
	TextCodeInvalidTransition  = "INVALID_USER_STATE_TRANSITION"
	TextCodeTerminalState      = "TERMINAL_USER_STATE"
	TextCodeAccountNotPending  = "ACCOUNT_NOT_PENDING"
	TextCodeInvalidPayload     = "INVALID_PAYLOAD"
	TextCodeNotificationFailed = "NOTIFICATION_FAILED"
)

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}

func errUserNotFound(meta map[string]any) *goerrors.Error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeUserNotFound).
		WithMetadata(meta)
}

func errAccountNotPending(user *User) *goerrors.Error {
	return goerrors.New("account is not pending activation", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeAccountNotPending).
		WithMetadata(map[string]any{"status": string(user.Status)})
}

func errEmailTaken(email string) *goerrors.Error {
	return goerrors.NewValidation("The email has already been taken.", goerrors.FieldError{
		Field:   "email",
		Message: "has already been taken",
	}).
		WithCode(422).
		WithTextCode(TextCodeEmailTaken).
		WithMetadata(map[string]any{"email": email})
}

func errSelfFollow() *goerrors.Error {
	return goerrors.New("you cannot follow yourself", goerrors.CategoryValidation).
		WithCode(422).
		WithTextCode(TextCodeSelfFollow)
}

func errForbidden(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(TextCodeForbidden)
}

func errUnauthenticated() *goerrors.Error {
	return goerrors.New("unauthenticated", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeUnauthenticated)
}

func errInvalidLink(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid signed link").
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeInvalidLink)
}

func errLinkAlreadyUsed() *goerrors.Error {
	return goerrors.New("signed link already used", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeLinkAlreadyUsed)
}

func errInvalidPayload(err error) *goerrors.Error {
	if rich := goerrors.FromOzzoValidation(err, "invalid payload"); rich != nil {
		return rich.WithCode(422).WithTextCode(TextCodeInvalidPayload)
	}
	return nil
}
