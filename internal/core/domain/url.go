package domain

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

var (
	// Something with a scheme, a www. prefix or a bare IPv4, optionally
	// followed by a path; never any whitespace.
	urlShape = regexp.MustCompile(`(?i)^([a-z][a-z0-9+.-]*://\S+|www\.\S+\.\S+|(\d{1,3}\.){3}\d{1,3}(:\d+)?([/?#]\S*)?)$`)
	// A schemeless dotted host. Group 2 is the TLD, group 3 the port/path.
	bareHostShape = regexp.MustCompile(`(?i)^[a-z0-9-]+(\.[a-z0-9-]+)*\.([a-z]{2,})((:\d+)?[/?#]\S*|:\d+)?$`)
	schemeRe      = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
)

// bareHostTLDs are the TLDs that make a lone "name.tld" token a URL. File
// extensions that double as TLDs (zip, md, sh, py, rs) are left out so
// "notes.md" stays text.
var bareHostTLDs = map[string]bool{
	"com": true, "net": true, "org": true, "edu": true, "gov": true, "info": true,
	"biz": true, "io": true, "co": true, "ai": true, "app": true, "dev": true,
	"me": true, "us": true, "uk": true, "de": true, "fr": true, "es": true,
	"it": true, "nl": true, "ru": true, "br": true, "in": true, "cn": true,
	"jp": true, "au": true, "ca": true, "ch": true, "eu": true, "ly": true,
	"gl": true, "gd": true, "to": true, "cc": true, "tv": true, "ws": true,
	"xyz": true, "top": true, "tk": true, "ml": true, "ga": true, "cf": true,
	"gq": true, "online": true, "site": true, "store": true, "shop": true,
	"click": true, "link": true, "live": true, "club": true, "country": true,
	"work": true, "rest": true,
}

// URLTarget is a parsed and normalised URL ready for scoring.
type URLTarget struct {
	Raw        string
	Normalized string
	Host       string
	IsIP       bool
}

// DetectInputKind decides whether content should be scored as a URL or as text.
func DetectInputKind(content string) InputKind {
	content = strings.TrimSpace(content)
	if urlShape.MatchString(content) {
		return KindURL
	}
	if m := bareHostShape.FindStringSubmatch(content); m != nil {
		if m[3] != "" || bareHostTLDs[strings.ToLower(m[2])] {
			return KindURL
		}
	}
	return KindText
}

// ParseURLTarget normalises raw and extracts its host. Schemeless input such as
// "www.example.com/login" is treated as https. Only http and https are accepted.
func ParseURLTarget(raw string) (*URLTarget, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, ErrEmptyInput
	}
	if !schemeRe.MatchString(value) {
		value = "https://" + value
	}

	u, err := url.Parse(value)
	if err != nil {
		return nil, ErrMalformedURL
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrMalformedURL
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, " \t") {
		return nil, ErrMalformedURL
	}

	return &URLTarget{
		Raw:        raw,
		Normalized: NormalizeURL(value),
		Host:       NormalizeHost(host),
		IsIP:       net.ParseIP(host) != nil,
	}, nil
}

// NormalizeURL lowercases the URL and drops a trailing slash so equivalent
// inputs share cache keys and blocklist lookups.
func NormalizeURL(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.TrimSuffix(value, "/")
}

// NormalizeHost lowercases a host and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// HostFromValue extracts the host part of a feed entry. Feed entries come as
// full URLs ("http://198.0.2.12/malware.sh"), host:port pairs or bare hosts.
func HostFromValue(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	if schemeRe.MatchString(value) {
		u, err := url.Parse(value)
		if err != nil || u.Hostname() == "" {
			return "", false
		}
		return NormalizeHost(u.Hostname()), true
	}

	// "198.0.2.12:8080" or "evil.example/path"
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ':' || r == '/' || r == '?'
	})
	if len(parts) == 0 || strings.ContainsAny(parts[0], " \t") {
		return "", false
	}
	return NormalizeHost(parts[0]), true
}

// ParentDomains returns host followed by each of its parent domains down to
// the registrable two-label suffix: "a.b.example.com" yields
// ["a.b.example.com", "b.example.com", "example.com"]. IPs are returned as is.
func ParentDomains(host string) []string {
	host = NormalizeHost(host)
	if host == "" {
		return nil
	}
	if net.ParseIP(host) != nil {
		return []string{host}
	}

	labels := strings.Split(host, ".")
	var out []string
	for i := 0; i <= len(labels)-2; i++ {
		out = append(out, strings.Join(labels[i:], "."))
	}
	if len(out) == 0 {
		out = append(out, host)
	}
	return out
}
