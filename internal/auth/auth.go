// Package auth provides the Xbox Live token source used to dial
// authenticated backends.
package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sandertv/gophertunnel/minecraft/auth"
	"golang.org/x/oauth2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// requestToken runs the device-code login. Replaced in tests.
var requestToken = auth.RequestLiveToken

// TokenSource returns a refreshing token source backed by the cache file at
// path. Without a usable cache the device-code login runs once and its token
// is cached. Refreshed tokens are written back.
func TokenSource(path string) (oauth2.TokenSource, error) {
	token, err := readToken(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if token, err = requestToken(); err != nil {
			return nil, fmt.Errorf("request live token: %w", err)
		}
		if err := writeToken(path, token); err != nil {
			return nil, err
		}
	}
	return &cachingSource{src: auth.RefreshTokenSource(token), path: path, last: token.AccessToken}, nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token cache %s: %w", path, err)
	}
	return &token, nil
}

func writeToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token cache dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

// cachingSource writes every newly issued token to the cache.
type cachingSource struct {
	src  oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *cachingSource) Token() (*oauth2.Token, error) {
	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		if err := writeToken(s.path, token); err != nil {
			return nil, err
		}
		s.last = token.AccessToken
	}
	return token, nil
}
