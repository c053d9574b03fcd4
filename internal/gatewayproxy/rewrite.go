package gatewayproxy

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// rewriteLocation rewrites the Location header: a Location pointing back
// at the upstream (by host, or loopback) is
// rewritten to the public host over HTTPS; a callback query parameter
// pointing at the public host without a port gets the incoming request's
// authority port injected. Malformed URLs fall back to a literal prefix
// replacement.
func rewriteLocation(raw, upstreamHost, publicHostFull, requestPort string) string {
	loc, err := url.Parse(raw)
	if err != nil {
		for _, scheme := range []string{"http://", "https://"} {
			if prefix := scheme + upstreamHost; strings.HasPrefix(raw, prefix) {
				return "https://" + publicHostFull + strings.TrimPrefix(raw, prefix)
			}
		}
		return raw
	}

	locHost := loc.Hostname()
	upstreamHostname := upstreamHost
	if h, _, err := net.SplitHostPort(upstreamHost); err == nil {
		upstreamHostname = h
	}
	isUpstream := locHost == upstreamHostname || locHost == "127.0.0.1" || locHost == "localhost" || locHost == "::1"

	if isUpstream {
		rewritten := &url.URL{
			Scheme:   "https",
			Host:     publicHostFull,
			Path:     loc.Path,
			RawQuery: loc.RawQuery,
			Fragment: loc.Fragment,
		}
		injectCallbackPort(rewritten, publicHostFull, requestPort)
		return rewritten.String()
	}

	injectCallbackPort(loc, publicHostFull, requestPort)
	return loc.String()
}

// injectCallbackPort mutates u's "callback" query parameter in place if it
// points at the public host without an explicit port.
func injectCallbackPort(u *url.URL, publicHostFull, requestPort string) {
	q := u.Query()
	cb := q.Get("callback")
	if cb == "" {
		return
	}
	cbURL, err := url.Parse(cb)
	if err != nil {
		return
	}
	publicHost := publicHostFull
	if i := strings.IndexByte(publicHostFull, ':'); i != -1 {
		publicHost = publicHostFull[:i]
	}
	if cbURL.Hostname() != publicHost || cbURL.Port() != "" {
		return
	}
	cbURL.Host = publicHost + ":" + requestPort
	q.Set("callback", cbURL.String())
	u.RawQuery = q.Encode()
}

// stripCookieDomains removes the Domain attribute from every Set-Cookie
// header so cookies become host-only for the public host.
func stripCookieDomains(header http.Header) {
	values := header.Values("Set-Cookie")
	if len(values) == 0 {
		return
	}
	rewritten := make([]string, len(values))
	for i, v := range values {
		rewritten[i] = stripDomainAttr(v)
	}
	header.Del("Set-Cookie")
	for _, v := range rewritten {
		header.Add("Set-Cookie", v)
	}
}

func stripDomainAttr(cookie string) string {
	parts := strings.Split(cookie, ";")
	out := parts[:0]
	for _, p := range parts {
		if strings.HasPrefix(strings.TrimSpace(p), "Domain=") || strings.HasPrefix(strings.TrimSpace(p), "domain=") {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ";")
}
