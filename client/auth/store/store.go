package store

import (
	"crypto"
	"sync"

	"github.com/viant/afs/http"
	"github.com/viant/afs/url"
	"golang.org/x/oauth2"

	"github.com/toolproto/mcpc/client/auth/meta"
)

// TokenKey identifies a cached token by issuer and the space-joined scope set
// it was granted for. Scope escalation yields a new key, never an overwrite.
type TokenKey struct {
	Issuer string
	Scopes string
}

// Store is a pluggable persistence layer for tokens, client configs and
// discovered metadata. The in-memory default is fine for CLI tools; swap in a
// file or database backed one for fleets.
type Store interface {
	LookupClientConfig(issuer string) (*oauth2.Config, bool)
	AddClientConfig(issuer string, client *oauth2.Config) error
	AddAuthorizationServerMetadata(metadata *meta.AuthorizationServerMetadata) error
	LookupAuthorizationServerMetadata(issuer string) (*meta.AuthorizationServerMetadata, bool)
	AddIssuerPublicKeys(issuer string, keys map[string]crypto.PublicKey) error
	LookupIssuerPublicKeys(issuer string) (map[string]crypto.PublicKey, bool)
	AddToken(key TokenKey, token *oauth2.Token) error
	LookupToken(key TokenKey) (*oauth2.Token, bool)
}

type MemoryStoreOption func(*memoryStore)

// WithClientConfig registers a client config under the issuer derived from
// its authorization endpoint.
func WithClientConfig(client *oauth2.Config) MemoryStoreOption {
	return func(m *memoryStore) {
		issuer, _ := url.Base(client.Endpoint.AuthURL, http.SecureScheme)
		m.clients[issuer] = client
	}
}

type memoryStore struct {
	mu               sync.RWMutex
	issuerMetadata   map[string]*meta.AuthorizationServerMetadata
	issuerPublicKeys map[string]map[string]crypto.PublicKey
	clients          map[string]*oauth2.Config
	tokens           map[TokenKey]*oauth2.Token
}

func (m *memoryStore) LookupToken(key TokenKey) (*oauth2.Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if token, ok := m.tokens[key]; ok {
		return token, true
	}
	return nil, false
}

func (m *memoryStore) AddToken(key TokenKey, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = token
	return nil
}

func (m *memoryStore) LookupClientConfig(issuer string) (*oauth2.Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if client, ok := m.clients[issuer]; ok {
		return client, true
	}
	return nil, false
}

func (m *memoryStore) AddClientConfig(issuer string, client *oauth2.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[issuer] = client
	return nil
}

func (m *memoryStore) AddAuthorizationServerMetadata(metadata *meta.AuthorizationServerMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issuerMetadata[metadata.Issuer] = metadata
	return nil
}

func (m *memoryStore) LookupAuthorizationServerMetadata(issuer string) (*meta.AuthorizationServerMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if metadata, ok := m.issuerMetadata[issuer]; ok {
		return metadata, true
	}
	return nil, false
}

func (m *memoryStore) AddIssuerPublicKeys(issuer string, keys map[string]crypto.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issuerPublicKeys[issuer] = keys
	return nil
}

func (m *memoryStore) LookupIssuerPublicKeys(issuer string) (map[string]crypto.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if keys, ok := m.issuerPublicKeys[issuer]; ok {
		return keys, true
	}
	return nil, false
}

func NewMemoryStore(options ...MemoryStoreOption) Store {
	ret := &memoryStore{
		clients:          map[string]*oauth2.Config{},
		issuerMetadata:   map[string]*meta.AuthorizationServerMetadata{},
		issuerPublicKeys: map[string]map[string]crypto.PublicKey{},
		tokens:           map[TokenKey]*oauth2.Token{},
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}
