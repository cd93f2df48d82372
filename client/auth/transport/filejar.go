package transport

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileJar wraps the standard cookiejar.Jar, keeping its own cookie index so
// the jar contents can be persisted to a JSON file on each update and
// reloaded on startup. Good enough for CLI and single-host services.
type FileJar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
	path  string
	index map[string]persistedCookie
}

type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HttpOnly bool      `json:"httpOnly"`
}

type cookieSnapshot struct {
	Cookies []persistedCookie `json:"cookies"`
}

// NewFileJar creates a cookie jar persisted at path.
func NewFileJar(path string) (*FileJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	ret := &FileJar{inner: inner, path: path, index: map[string]persistedCookie{}}
	_ = ret.load()
	return ret, nil
}

func (j *FileJar) Cookies(u *neturl.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

func (j *FileJar) SetCookies(u *neturl.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.SetCookies(u, cookies)
	for _, c := range cookies {
		domain := strings.TrimPrefix(strings.TrimSpace(c.Domain), ".")
		if domain == "" {
			// host-only cookie, remember the request host without port
			host := u.Host
			if h, _, err := net.SplitHostPort(host); err == nil && h != "" {
				host = h
			}
			domain = host
		}
		path := c.Path
		if strings.TrimSpace(path) == "" {
			path = "/"
		}
		key := domain + "|" + path + "|" + c.Name
		if !c.Expires.IsZero() && time.Now().After(c.Expires) {
			delete(j.index, key)
			continue
		}
		j.index[key] = persistedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
	_ = j.save()
}

func (j *FileJar) save() error {
	snap := cookieSnapshot{}
	for _, c := range j.index {
		snap.Cookies = append(snap.Cookies, c)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}

func (j *FileJar) load() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var snap cookieSnapshot
	if err = json.Unmarshal(data, &snap); err != nil {
		return err
	}
	for _, pc := range snap.Cookies {
		if !pc.Expires.IsZero() && time.Now().After(pc.Expires) {
			continue
		}
		scheme := "https"
		if !pc.Secure {
			scheme = "http"
		}
		u := &neturl.URL{Scheme: scheme, Host: pc.Domain, Path: pc.Path}
		j.inner.SetCookies(u, []*http.Cookie{{
			Name:     pc.Name,
			Value:    pc.Value,
			Path:     pc.Path,
			Expires:  pc.Expires,
			Secure:   pc.Secure,
			HttpOnly: pc.HttpOnly,
		}})
		key := pc.Domain + "|" + pc.Path + "|" + pc.Name
		j.index[key] = pc
	}
	return nil
}
