package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names the TLS ClientHello a transport presents.
type Profile string

const (
	ProfileGo      Profile = "go" // standard crypto/tls, the default
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileRandom  Profile = "random"
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// ParseProfile maps a configuration value onto a Profile. An empty value is ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if p == "" || p == ProfileGo {
		return ProfileGo, nil
	}
	if _, ok := helloIDs[p]; !ok {
		return "", fmt.Errorf("fingerprint: unknown profile %q", s)
	}
	return p, nil
}

// Transport returns an http.RoundTripper presenting the ClientHello of p.
// ProfileGo returns a clone of http.DefaultTransport.
func Transport(p Profile) (http.RoundTripper, error) {
	tr, err := newTransport(p, nil)
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// newTransport builds the transport; tlsConf, when set, is the template for
// every uTLS handshake (ServerName is filled in per connection).
func newTransport(p Profile, tlsConf *utls.Config) (*http.Transport, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if p == "" || p == ProfileGo {
		return base, nil
	}

	helloID, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	dialer := &net.Dialer{}
	base.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		conf := &utls.Config{}
		if tlsConf != nil {
			conf = tlsConf.Clone()
		}
		conf.ServerName = host

		uConn := utls.UClient(conn, conf, helloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("fingerprint: %s handshake with %s: %w", p, host, err)
		}
		return uConn, nil
	}
	return base, nil
}
