package transport

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// challenge is one parsed WWW-Authenticate header.
type challenge struct {
	Scheme string
	Params map[string]string
}

// Scopes returns the space-separated scope parameter split into values.
func (c *challenge) Scopes() []string {
	return strings.Fields(c.Params["scope"])
}

// ResourceMetadataURL returns the RFC 9728 discovery URL, empty when absent.
func (c *challenge) ResourceMetadataURL() string {
	return c.Params["resource_metadata"]
}

// IsInsufficientScope reports an RFC 6750 insufficient_scope challenge.
func (c *challenge) IsInsufficientScope() bool {
	return c.Params["error"] == "insufficient_scope"
}

// parseChallenge parses a WWW-Authenticate value. Parameter values may be
// quoted and contain commas, so splitting is quote aware.
func parseChallenge(header string) *challenge {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	scheme := header
	rest := ""
	if idx := strings.IndexByte(header, ' '); idx != -1 {
		scheme = header[:idx]
		rest = strings.TrimSpace(header[idx+1:])
	}
	ret := &challenge{Scheme: scheme, Params: map[string]string{}}
	for _, part := range splitOutsideQuotes(rest, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		ret.Params[strings.ToLower(strings.TrimSpace(name))] = value
	}
	return ret
}

func splitOutsideQuotes(value string, sep byte) []string {
	var parts []string
	start := 0
	inQuotes := false
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				parts = append(parts, value[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, value[start:])
}

// clone deep-copies the request body so a POST can be replayed after a
// challenge without consuming the caller's reader.
func clone(r *http.Request) *http.Request {
	cloned := r.Clone(r.Context())
	if r.Body != nil {
		buf, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewBuffer(buf))
		cloned.Body = io.NopCloser(bytes.NewBuffer(buf))
	}
	return cloned
}

// mergeScopes unions b into a preserving order and dropping duplicates.
func mergeScopes(a, b []string) []string {
	seen := map[string]bool{}
	var ret []string
	for _, scope := range append(append([]string{}, a...), b...) {
		if scope == "" || seen[scope] {
			continue
		}
		seen[scope] = true
		ret = append(ret, scope)
	}
	return ret
}
