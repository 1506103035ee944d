package orcid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://orcid.org"
	defaultAPIBaseURL = "https://pub.orcid.org/v3.0"
	defaultScope      = "/authenticate"

	// expires_in reported by the ORCID token endpoint when the grant has
	// no shorter horizon: roughly twenty years, in seconds.
	defaultExpiresIn = 631138518

	requestTimeout = 10 * time.Second
)

// Config holds the registered OAuth application settings.
type Config struct {
	BaseURL      string
	APIBaseURL   string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
}

// Client talks to the ORCID OAuth endpoints.
type Client struct {
	cfg  Config
	http *http.Client
}

// TokenResponse is the ORCID token endpoint payload. With the
// /authenticate scope the holder's iD and display name ride along.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Name         string `json:"name"`
	OrcidID      string `json:"orcid"`
}

// ExpiresAt converts the relative expiry into an absolute instant, applying
// the ORCID default horizon when the endpoint omits expires_in.
func (t TokenResponse) ExpiresAt(now time.Time) time.Time {
	seconds := t.ExpiresIn
	if seconds <= 0 {
		seconds = defaultExpiresIn
	}
	return now.Add(time.Duration(seconds) * time.Second)
}

// New validates the configuration and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("redirect uri is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: requestTimeout},
	}, nil
}

// AuthorizeURL builds the browser redirect target for the given state nonce.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", c.cfg.Scope)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	return c.cfg.BaseURL + "/oauth/authorize?" + q.Encode()
}

// Exchange swaps an authorization code for tokens and the holder's iD.
func (c *Client) Exchange(ctx context.Context, code string) (TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return TokenResponse{}, errors.New("authorization code is required")
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenResponse{}, fmt.Errorf("token exchange: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
			if oauthErr.Description != "" {
				return TokenResponse{}, fmt.Errorf("token exchange: %s: %s", oauthErr.Error, oauthErr.Description)
			}
			return TokenResponse{}, fmt.Errorf("token exchange: %s", oauthErr.Error)
		}
		return TokenResponse{}, fmt.Errorf("token exchange: unexpected status %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return TokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" || token.OrcidID == "" {
		return TokenResponse{}, errors.New("token response missing access token or orcid id")
	}

	return token, nil
}

// Person is the subset of an ORCID person record the portal uses. Email
// is the primary visible address, or the first one when none is marked
// primary; EmailVerified carries ORCID's verification flag for it.
type Person struct {
	GivenNames    string
	FamilyName    string
	Bio           string
	Email         string
	EmailVerified bool
}

// FullName joins the name parts the way ORCID displays them.
func (p Person) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.GivenNames) + " " + strings.TrimSpace(p.FamilyName))
}

type personRecord struct {
	Name struct {
		GivenNames struct {
			Value string `json:"value"`
		} `json:"given-names"`
		FamilyName struct {
			Value string `json:"value"`
		} `json:"family-name"`
	} `json:"name"`
	Biography struct {
		Content string `json:"content"`
	} `json:"biography"`
	Emails struct {
		Email []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		} `json:"email"`
	} `json:"emails"`
}

func (r personRecord) person() Person {
	p := Person{
		GivenNames: r.Name.GivenNames.Value,
		FamilyName: r.Name.FamilyName.Value,
		Bio:        r.Biography.Content,
	}
	for _, e := range r.Emails.Email {
		if p.Email == "" || e.Primary {
			p.Email = e.Email
			p.EmailVerified = e.Verified
		}
		if e.Primary {
			break
		}
	}
	return p
}

// Person fetches the public person record for an iD. Only fields the
// holder has made visible to the token's scope come back.
func (c *Client) Person(ctx context.Context, orcidID, accessToken string) (Person, error) {
	if strings.TrimSpace(orcidID) == "" {
		return Person{}, errors.New("orcid id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/"+url.PathEscape(orcidID)+"/person", nil)
	if err != nil {
		return Person{}, err
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Person{}, fmt.Errorf("person fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Person{}, fmt.Errorf("person fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Person{}, fmt.Errorf("person fetch: unexpected status %d", resp.StatusCode)
	}

	var record personRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return Person{}, fmt.Errorf("decode person record: %w", err)
	}
	return record.person(), nil
}
