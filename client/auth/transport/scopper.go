package transport

import "net/http"

// Scopper supplies extra scopes for a given request, letting callers widen
// grants per endpoint without new round trippers.
type Scopper interface {
	Scope(request *http.Request) string
}

type nopScopper struct{}

func (n *nopScopper) Scope(_ *http.Request) string {
	return ""
}
