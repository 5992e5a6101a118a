package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-backend/internal/model"
)

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name string
		user *model.User
		want int
	}{
		{"admin", &model.User{ID: 1, Role: model.RoleAdmin}, http.StatusOK},
		{"customer", &model.User{ID: 2, Role: model.RoleCustomer}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/analytics", nil), rec)
			if tc.user != nil {
				SetCurrentUser(c, tc.user)
			}
			h := RequireRole(model.RoleAdmin)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			require.NoError(t, h(c))
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestUserIDForRateKeys(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	require.Equal(t, "anon", userID(c))

	SetCurrentUser(c, &model.User{ID: 42})
	require.Equal(t, "42", userID(c))
}
