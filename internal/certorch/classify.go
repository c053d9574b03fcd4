package certorch

import "strings"

// localMarkers are the literal substrings that classify a hostname as
// "local-like". This is a deliberately loose substring match that also
// matches unintended strings like "mylocal.com", kept exactly this loose
// for compatibility with existing on-disk certificate state. Do not
// tighten this.
var localMarkers = []string{".local", "local.", "localhost", ".console"}

// IsLocalLike reports whether host's lowercased form contains any local
// marker substring.
func IsLocalLike(host string) bool {
	h := strings.ToLower(host)
	for _, m := range localMarkers {
		if strings.Contains(h, m) {
			return true
		}
	}
	return false
}

// TwoLabelWildcard returns "*.<last two labels>" for a hostname with two
// or more labels that is not "localhost", or "" if no wildcard applies.
// This is a naive label split, not a public-suffix-aware one: the
// local-like hosts it's applied to are frequently fake TLDs like
// ".console" that no public suffix list would recognize, so a
// suffix-aware split would misclassify exactly the hosts this exists for.
func TwoLabelWildcard(host string) string {
	h := strings.ToLower(host)
	if h == "localhost" {
		return ""
	}
	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return ""
	}
	base := strings.Join(labels[len(labels)-2:], ".")
	return "*." + base
}
