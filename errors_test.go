package accounts_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func TestHasTextCode(t *testing.T) {
	rich := goerrors.New("nope", goerrors.CategoryConflict).WithTextCode(accounts.TextCodeEmailTaken)

	tests := []struct {
		name     string
		err      error
		code     string
		expected bool
	}{
		{name: "matching code", err: rich, code: accounts.TextCodeEmailTaken, expected: true},
		{name: "wrapped", err: goerrors.Wrap(rich, goerrors.CategoryInternal, "outer"), code: accounts.TextCodeEmailTaken, expected: true},
		{name: "different code", err: rich, code: accounts.TextCodeSelfFollow, expected: false},
		{name: "plain error", err: errors.New("boom"), code: accounts.TextCodeEmailTaken, expected: false},
		{name: "nil error", err: nil, code: accounts.TextCodeEmailTaken, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, accounts.HasTextCode(tt.err, tt.code))
		})
	}
}

func TestErrorHandlerStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		textCode string
	}{
		{
			name:     "explicit code wins",
			err:      goerrors.New("gone", goerrors.CategoryNotFound).WithCode(http.StatusGone),
			status:   http.StatusGone,
			textCode: "",
		},
		{
			name:   "validation category",
			err:    goerrors.New("bad", goerrors.CategoryValidation),
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "authz category",
			err:    goerrors.New("no", goerrors.CategoryAuthz),
			status: http.StatusForbidden,
		},
		{
			name:   "conflict category",
			err:    goerrors.New("dup", goerrors.CategoryConflict),
			status: http.StatusConflict,
		},
		{
			name:   "external category",
			err:    goerrors.New("smtp", goerrors.CategoryExternal),
			status: http.StatusBadGateway,
		},
		{
			name:     "fiber error",
			err:      fiber.NewError(fiber.StatusMethodNotAllowed, "nope"),
			status:   http.StatusMethodNotAllowed,
			textCode: goerrors.HTTPStatusToTextCode(fiber.StatusMethodNotAllowed),
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			status:   http.StatusInternalServerError,
			textCode: "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &MockLogger{}
			if tt.status >= http.StatusInternalServerError {
				logger.On("Error", "%s %s failed: %v", []any{http.MethodGet, "/", tt.err}).Once()
			}

			app := fiber.New(fiber.Config{ErrorHandler: accounts.ErrorHandler(logger)})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			res, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, tt.status, res.StatusCode)
			if tt.textCode != "" {
				var body struct {
					Error struct {
						TextCode string `json:"text_code"`
					} `json:"error"`
				}
				require.NoError(t, decodeJSON(res, &body))
				assert.Equal(t, tt.textCode, body.Error.TextCode)
			}
			logger.AssertExpectations(t)
		})
	}
}
