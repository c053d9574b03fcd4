package httpfront

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gatewayd/internal/acmeshim"
)

func TestServeChallengeReturnsKeyAuthorization(t *testing.T) {
	table := acmeshim.NewChallengeTable()
	table.Put("tok123", "tok123.thumbprint")
	l := New(table, 4443, nil)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/acme-challenge/tok123", nil)
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Equal(t, "tok123.thumbprint", string(body))
	require.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestServeChallengeMissingTokenReturns404(t *testing.T) {
	table := acmeshim.NewChallengeTable()
	l := New(table, 4443, nil)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/acme-challenge/missing", nil)
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedirectsToHTTPSWithNonDefaultPort(t *testing.T) {
	table := acmeshim.NewChallengeTable()
	l := New(table, 4443, nil)

	req := httptest.NewRequest(http.MethodGet, "/some/path?x=1", nil)
	req.Host = "app.example.com:8080"
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://app.example.com:4443/some/path?x=1", rec.Header().Get("Location"))
}

func TestRedirectsToHTTPSOmittingStandardPort(t *testing.T) {
	table := acmeshim.NewChallengeTable()
	l := New(table, 443, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "app.example.com"
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)

	require.Equal(t, "https://app.example.com/", rec.Header().Get("Location"))
}

func TestSetRedirectStatusOverridesDefault(t *testing.T) {
	table := acmeshim.NewChallengeTable()
	l := New(table, 4443, nil)
	l.SetRedirectStatus(http.StatusPermanentRedirect)

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Host = "app.example.com"
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
}

func TestDelegateShortCircuitsHandling(t *testing.T) {
	table := acmeshim.NewChallengeTable()
	delegate := func(c echo.Context) (bool, error) {
		return true, c.String(http.StatusTeapot, "handled by admin")
	}
	l := New(table, 4443, delegate)

	req := httptest.NewRequest(http.MethodGet, "/admin/anything", nil)
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
}
