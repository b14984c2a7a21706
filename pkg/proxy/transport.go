package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Transport is an http.RoundTripper that sends each request through the
// next active proxy of a Pool and reports the result back to it. With every
// proxy benched, requests go out directly.
type Transport struct {
	pool *Pool
	base *http.Transport
}

// NewTransport wraps base, which must be nil (the net/http default) or an
// *http.Transport. base is cloned; its Proxy func is replaced.
func NewTransport(pool *Pool, base http.RoundTripper) (*Transport, error) {
	var tr *http.Transport
	switch b := base.(type) {
	case nil:
		tr = http.DefaultTransport.(*http.Transport).Clone()
	case *http.Transport:
		tr = b.Clone()
	default:
		return nil, fmt.Errorf("proxy: need an *http.Transport, got %T", base)
	}
	tr.Proxy = requestProxy
	return &Transport{pool: pool, base: tr}, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	via := t.pool.Next()
	if via == nil {
		return t.base.RoundTrip(req)
	}

	resp, err := t.base.RoundTrip(req.WithContext(context.WithValue(req.Context(), ctxKey{}, via)))
	t.pool.Report(via, err == nil && !refused(resp.StatusCode))
	return resp, err
}

// refused reports statuses that say the target or the proxy turned the
// request away.
func refused(code int) bool {
	switch code {
	case http.StatusForbidden, http.StatusProxyAuthRequired, http.StatusTooManyRequests, 999:
		return true
	}
	return false
}

type ctxKey struct{}

func requestProxy(req *http.Request) (*url.URL, error) {
	u, _ := req.Context().Value(ctxKey{}).(*url.URL)
	return u, nil
}
