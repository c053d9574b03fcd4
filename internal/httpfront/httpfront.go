// Package httpfront implements the plaintext HTTP listener: it answers
// ACME HTTP-01 challenges and redirects everything else to the HTTPS
// listener.
package httpfront

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bnema/gatewayd/internal/acmeshim"
	"github.com/bnema/gatewayd/internal/logging"
)

const acmeChallengePrefix = "/.well-known/acme-challenge/"

// Delegate is consulted before ACME/redirect logic; if it claims the
// request (returns true), the exchange is considered handled. This is the
// admin collaborator's hook.
type Delegate func(c echo.Context) (handled bool, err error)

// Listener is the HTTP-only front door: ACME-01 responder plus
// HTTPS redirect.
type Listener struct {
	echo           *echo.Echo
	table          *acmeshim.ChallengeTable
	httpsPort      int
	delegate       Delegate
	redirectStatus int
	log            interface {
		Info(msg interface{}, keyvals ...interface{})
		Warn(msg interface{}, keyvals ...interface{})
	}
}

// New constructs the HTTP listener. httpsPort is appended to redirect
// Location headers unless it is 443.
func New(table *acmeshim.ChallengeTable, httpsPort int, delegate Delegate) *Listener {
	l := &Listener{
		echo:           echo.New(),
		table:          table,
		httpsPort:      httpsPort,
		delegate:       delegate,
		redirectStatus: http.StatusMovedPermanently,
		log:            logging.For("httpfront"),
	}
	l.echo.HideBanner = true
	l.echo.HidePort = true
	l.echo.Use(middleware.Recover())
	l.echo.Any("/*", l.handle)
	return l
}

// SetRedirectStatus overrides the HTTPS redirect's status code, e.g. 308
// for callers that need non-GET-safe redirects to preserve the request
// method and body. Unset, it defaults to 301.
func (l *Listener) SetRedirectStatus(status int) {
	l.redirectStatus = status
}

// Handler exposes the underlying http.Handler for use with http.Server.
func (l *Listener) Handler() http.Handler { return l.echo }

func (l *Listener) handle(c echo.Context) error {
	if l.delegate != nil {
		handled, err := l.delegate(c)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}

	path := c.Request().URL.Path
	if strings.HasPrefix(path, acmeChallengePrefix) {
		return l.serveChallenge(c, strings.TrimPrefix(path, acmeChallengePrefix))
	}

	return l.redirectToHTTPS(c)
}

func (l *Listener) serveChallenge(c echo.Context, token string) error {
	keyAuth, ok := l.table.Get(token)
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.Blob(http.StatusOK, "text/plain", []byte(keyAuth))
}

// redirectToHTTPS issues a redirect to the HTTPS listener (301 unless
// overridden via SetRedirectStatus), preserving path and stripping any
// port from the Host header.
func (l *Listener) redirectToHTTPS(c echo.Context) error {
	host := c.Request().Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	target := "https://" + host
	if l.httpsPort != 443 {
		target += fmt.Sprintf(":%d", l.httpsPort)
	}
	target += c.Request().URL.RequestURI()

	return c.Redirect(l.redirectStatus, target)
}
