package transport

import "net/http"

// jarRoundTripper replays cookies from a jar on each outgoing request and
// records Set-Cookie responses back into it, so session affinity survives
// callers that use the RoundTripper without an http.Client.
type jarRoundTripper struct {
	next http.RoundTripper
	jar  http.CookieJar
}

// WrapWithCookieJar decorates next with cookie persistence backed by jar.
// A nil jar returns next unchanged.
func WrapWithCookieJar(next http.RoundTripper, jar http.CookieJar) http.RoundTripper {
	if next == nil || jar == nil {
		return next
	}
	return &jarRoundTripper{next: next, jar: jar}
}

func (j *jarRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// the caller's request headers stay untouched
	outgoing := req.Clone(req.Context())
	for _, cookie := range j.jar.Cookies(outgoing.URL) {
		outgoing.AddCookie(cookie)
	}
	resp, err := j.next.RoundTrip(outgoing)
	if err != nil {
		return nil, err
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		j.jar.SetCookies(outgoing.URL, cookies)
	}
	return resp, nil
}
