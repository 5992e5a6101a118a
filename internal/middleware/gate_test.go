package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/service"
)

type fakeValidator struct {
	id  uint64
	err error
	got string
}

func (f *fakeValidator) ValidateAccess(token string) (uint64, error) {
	f.got = token
	return f.id, f.err
}

type fakeUsers struct {
	users map[uint64]*model.User
	err   error
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func runGate(t *testing.T, g *Gate, req *http.Request) (*httptest.ResponseRecorder, *model.User) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *model.User
	h := g.Middleware()(func(c echo.Context) error {
		seen, _ = CurrentUser(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec, seen
}

func withAccessCookie(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	return req
}

func TestGateAdmitsKnownIdentity(t *testing.T) {
	ada := &model.User{ID: 7, Email: "ada@example.com", Role: model.RoleCustomer}
	v := &fakeValidator{id: 7}
	g := NewGate(v, &fakeUsers{users: map[uint64]*model.User{7: ada}})

	rec, seen := runGate(t, g, withAccessCookie("tok"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ada, seen)
	require.Equal(t, "tok", v.got)
}

func TestGateAcceptsBearerHeader(t *testing.T) {
	v := &fakeValidator{id: 1}
	g := NewGate(v, &fakeUsers{users: map[uint64]*model.User{1: {ID: 1}}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	rec, _ := runGate(t, g, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "header-token", v.got)
}

func TestGateRejections(t *testing.T) {
	cases := []struct {
		name   string
		req    *http.Request
		valErr error
		reason string
	}{
		{"no cookie", httptest.NewRequest(http.MethodGet, "/", nil), nil, ReasonNoCredential},
		{"expired", withAccessCookie("old"), service.ErrTokenExpired, ReasonExpired},
		{"bad signature", withAccessCookie("forged"), service.ErrTokenInvalid, ReasonInvalid},
		{"deleted user", withAccessCookie("tok"), nil, ReasonIdentityNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGate(&fakeValidator{id: 99, err: tc.valErr}, &fakeUsers{})

			_, err := g.Authenticate(context.Background(), tc.req)
			var rej *Rejection
			require.ErrorAs(t, err, &rej)
			require.Equal(t, tc.reason, rej.Reason)

			before := testutil.ToFloat64(metrics.AuthRejections.WithLabelValues(tc.reason))
			rec, seen := runGate(t, g, tc.req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
			require.Nil(t, seen)
			require.Equal(t, before+1, testutil.ToFloat64(metrics.AuthRejections.WithLabelValues(tc.reason)))
		})
	}
}

func TestGateStoreFailureIsServerError(t *testing.T) {
	g := NewGate(&fakeValidator{id: 1}, &fakeUsers{err: errors.New("db down")})

	_, err := g.Authenticate(context.Background(), withAccessCookie("tok"))
	var rej *Rejection
	require.Error(t, err)
	require.False(t, errors.As(err, &rej))

	rec, _ := runGate(t, g, withAccessCookie("tok"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
