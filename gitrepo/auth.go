// Package gitrepo provides authentication helpers for git operations.
package gitrepo

import (
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// TokenAuthProvider authenticates HTTPS remotes with a personal access token.
// Most git hosts (GitHub, GitLab, Gitee, Bitbucket) accept the token as the
// basic-auth password. Non-HTTPS URLs are left unauthenticated.
type TokenAuthProvider struct {
	auth *http.BasicAuth
}

// NewTokenAuthProvider creates a provider for token authentication.
// If username is empty a generic one is used, which the common hosts accept.
func NewTokenAuthProvider(username, token string) *TokenAuthProvider {
	if username == "" {
		username = "token"
	}

	return &TokenAuthProvider{
		auth: &http.BasicAuth{
			Username: username,
			Password: token,
		},
	}
}

// Method returns the authentication method for the given remote URL.
// Returns nil for URL schemes this provider does not handle.
func (p *TokenAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	if p.auth == nil || p.auth.Password == "" {
		return nil, nil
	}

	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return nil, WrapErrorf(err, "invalid remote URL %q", remoteURL)
	}

	if !strings.EqualFold(parsed.Scheme, "https") && !strings.EqualFold(parsed.Scheme, "http") {
		return nil, nil
	}

	return p.auth, nil
}
