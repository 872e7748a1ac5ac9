package sigs

import "strings"

// Small signature DB mapping banner substrings to service name and confidence.
// Matching is done case-insensitively, first hit wins.
var signatures = []struct {
	Substr     string
	Service    string
	Confidence string
}{
	{"ssh-", "ssh", "high"}, // OpenSSH banners include "SSH-"
	{"nginx", "http/nginx", "high"},
	{"apache", "http/apache", "high"},
	{"http/", "http", "medium"}, // e.g. "HTTP/1.1"
	{"220 ", "ftp-or-smtp", "low"},
	{"esmtp", "smtp", "high"},
	{"ftp", "ftp", "medium"},
	{"* ok", "imap", "medium"},
	{"+ok", "pop3", "medium"},
	{"rfb ", "vnc", "high"},
	{"mysql", "mysql", "medium"},
	{"redis", "redis", "medium"},
}

// Detect examines banner text and returns service, confidence and found flag.
func Detect(banner string) (service, confidence string, found bool) {
	if banner == "" {
		return "", "", false
	}
	lb := strings.ToLower(banner)
	// smtp and ftp both greet with "220 "; prefer the more specific hints.
	if strings.HasPrefix(lb, "220 ") {
		switch {
		case strings.Contains(lb, "smtp"):
			return "smtp", "high", true
		case strings.Contains(lb, "ftp"):
			return "ftp", "high", true
		}
	}
	for _, s := range signatures {
		if strings.Contains(lb, s.Substr) {
			return s.Service, s.Confidence, true
		}
	}
	return "", "", false
}
