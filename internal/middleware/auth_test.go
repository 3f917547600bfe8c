package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authContext(authorization string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthWithoutHeaderPassesAnonymously(t *testing.T) {
	c, _ := authContext("")

	called := false
	err := Auth(testSecret)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	require.NoError(t, err)

	assert.True(t, called)
	assert.Nil(t, c.Get(ContextUserID))
}

func TestAuthParsesValidToken(t *testing.T) {
	token := signToken(t, &Claims{
		UserID: 7,
		Email:  "admin@example.com",
		Admin:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	c, _ := authContext("Bearer " + token)

	err := Auth(testSecret)(func(c echo.Context) error { return nil })(c)
	require.NoError(t, err)

	assert.Equal(t, uint(7), c.Get(ContextUserID))
	assert.Equal(t, "admin@example.com", c.Get(ContextEmail))
	assert.Equal(t, true, c.Get(ContextAdmin))
}

func TestAuthRejectsBadToken(t *testing.T) {
	cases := map[string]string{
		"malformed header": "Token abc",
		"garbage token":    "Bearer not.a.jwt",
		"wrong secret":     "Bearer " + signToken(t, &Claims{UserID: 7}, "other-secret"),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := authContext(header)

			err := Auth(testSecret)(func(c echo.Context) error { return nil })(c)
			require.Error(t, err)

			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	token := signToken(t, &Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSecret)

	c, _ := authContext("Bearer " + token)

	err := Auth(testSecret)(func(c echo.Context) error { return nil })(c)
	require.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	c, _ := authContext("")
	err := RequireAdmin()(func(c echo.Context) error { return nil })(c)
	require.Error(t, err)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)

	c, _ = authContext("")
	c.Set(ContextAdmin, true)
	assert.NoError(t, RequireAdmin()(func(c echo.Context) error { return nil })(c))
}
