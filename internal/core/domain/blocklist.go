package domain

import "time"

// BlockedHost is a host reported as malicious by a public feed.
type BlockedHost struct {
	Host         string    // normalised host or IP (ex: evil.example, 198.0.2.12)
	Source       string    // feed name (URLhaus, OpenPhish, ...)
	ThreatType   string    // feed classification (ex: phishing, malware_download)
	Tags         []string  // feed tags
	FirstSeen    time.Time // when the feed first reported it
	DateIngested time.Time // when we ingested it
}

// BlockedHostFromValue builds a BlockedHost from a raw feed value, which can be
// a URL, a host:port pair or a bare host.
func BlockedHostFromValue(value string, base BlockedHost) (BlockedHost, bool) {
	host, ok := HostFromValue(value)
	if !ok {
		return BlockedHost{}, false
	}
	base.Host = host
	return base, true
}
