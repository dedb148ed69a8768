package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DriveScope limits access to files this application created or was given.
const DriveScope = "https://www.googleapis.com/auth/drive.file"

// ErrStorageNotConnected is returned by Client before any token is known.
var ErrStorageNotConnected = errors.New("auth: google drive is not connected")

// GoogleProvider issues OAuth tokens for the Google Drive media store.
//
// The guests never authorise Drive themselves: the application holds a single
// offline token. It comes from GOOGLE_REFRESH_TOKEN at start-up, or from an
// admin completing the authorization code flow (AuthURL → Exchange), which
// replaces it at runtime.
type GoogleProvider struct {
	config *oauth2.Config

	mu     sync.RWMutex
	source oauth2.TokenSource
}

// NewGoogleProvider builds the OAuth client. refreshToken may be empty.
func NewGoogleProvider(clientID, clientSecret, callbackURL, refreshToken string) *GoogleProvider {
	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{DriveScope},
			Endpoint:     google.Endpoint,
		},
	}
	if refreshToken != "" {
		p.setToken(&oauth2.Token{RefreshToken: refreshToken})
	}
	return p
}

// AuthURL is the consent page the admin is redirected to. Offline access and
// a forced consent prompt make Google return a refresh token every time.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the callback code for a token and starts using it.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) error {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("auth: exchanging Google OAuth code: %w", err)
	}
	if tok.RefreshToken == "" {
		return fmt.Errorf("auth: Google did not return a refresh token")
	}

	p.setToken(tok)
	return nil
}

// setToken installs a token source that caches access tokens and refreshes
// them when they expire. It outlives any single request, so it is bound to
// the background context.
func (p *GoogleProvider) setToken(tok *oauth2.Token) {
	src := p.config.TokenSource(context.Background(), tok)
	p.mu.Lock()
	p.source = src
	p.mu.Unlock()
}

// Connected reports whether a token is available.
func (p *GoogleProvider) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source != nil
}

// Client returns an *http.Client that adds and refreshes the bearer token.
func (p *GoogleProvider) Client(ctx context.Context) (*http.Client, error) {
	p.mu.RLock()
	src := p.source
	p.mu.RUnlock()

	if src == nil {
		return nil, ErrStorageNotConnected
	}
	return oauth2.NewClient(ctx, src), nil
}
