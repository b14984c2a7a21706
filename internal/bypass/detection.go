// Package bypass recognises bot-protection and login-wall responses so a
// failed fetch can say why it failed.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP exchange the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the address after redirects.
	FinalURL string
}

// Detector returns the name of the protection that produced r, or "".
type Detector func(r Response) string

// DefaultDetectors returns the standard list of detectors, most specific first.
func DefaultDetectors() []Detector {
	return []Detector{
		detectLinkedInWall,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Classify runs r through detectors and returns the first match, or "".
func Classify(r Response, detectors []Detector) string {
	for _, d := range detectors {
		if src := d(r); src != "" {
			return src
		}
	}
	return ""
}

func server(r Response) string {
	return strings.ToLower(r.Header.Get("Server"))
}

func bodyHasAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectLinkedInWall matches LinkedIn's 999 bot response and the sign-in wall.
func detectLinkedInWall(r Response) string {
	if r.StatusCode == 999 {
		return "LinkedIn"
	}
	if r.StatusCode == http.StatusOK {
		return ""
	}
	if strings.Contains(r.FinalURL, "/authwall") || bodyHasAny(r.Body, "authwall", "linkedin.com/uas/login") {
		return "LinkedIn"
	}
	return ""
}

func detectCloudflare(r Response) string {
	if r.StatusCode != http.StatusForbidden && r.StatusCode != http.StatusServiceUnavailable {
		return ""
	}
	if strings.Contains(server(r), "cloudflare") {
		return "Cloudflare"
	}
	if bodyHasAny(r.Body, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return "Cloudflare"
	}
	return ""
}

func detectAkamai(r Response) string {
	if r.StatusCode != http.StatusForbidden {
		return ""
	}
	if strings.Contains(server(r), "akamai") {
		return "Akamai"
	}
	// generic "Reference #" block page
	if bodyHasAny(r.Body, "Reference #") && bodyHasAny(r.Body, "Access Denied") {
		return "Akamai"
	}
	return ""
}

func detectDataDome(r Response) string {
	if r.StatusCode != http.StatusForbidden {
		return ""
	}
	if strings.Contains(server(r), "datadome") ||
		r.Header.Get("X-DataDome") != "" || r.Header.Get("X-DataDome-Response") != "" {
		return "DataDome"
	}
	if bodyHasAny(r.Body, "geo.captcha-delivery.com", "datadome") {
		return "DataDome"
	}
	return ""
}

func detectPerimeterX(r Response) string {
	if r.StatusCode != http.StatusForbidden {
		return ""
	}
	if r.Header.Get("X-Px-Captcha") != "" {
		return "PerimeterX"
	}
	if bodyHasAny(r.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return "PerimeterX"
	}
	return ""
}
