package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/dates"
	"dailywall/internal/domain"
)

const (
	osuName        = "osu"
	osuDefaultBase = "https://osu.ppy.sh"
	osuTokenPath   = "/oauth/token"
	osuSeasonal    = "/api/v2/seasonal-backgrounds"

	// refresh the token slightly before the server-side expiry
	osuTokenSlack = 60 * time.Second
)

type osuTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type osuSeasonalResponse struct {
	EndsAt      string          `json:"ends_at"`
	Backgrounds []osuBackground `json:"backgrounds"`
}

type osuBackground struct {
	URL  string `json:"url"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

// Osu fetches the osu! seasonal background set. The endpoint is not
// date-parameterized; the requested day is accepted for interface symmetry
// and only stamps the metadata. Freshness is the caller's concern, decided
// through the response dedup store.
type Osu struct {
	logger       *zap.Logger
	client       *http.Client
	baseURL      string
	clientID     string
	clientSecret string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewOsu creates the osu! provider with OAuth client credentials. The token
// is fetched lazily and cached in memory only; it is never persisted.
func NewOsu(logger *zap.Logger, clientID, clientSecret string) *Osu {
	return &Osu{
		logger:       logger,
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      osuDefaultBase,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Name returns the provider name
func (o *Osu) Name() string {
	return osuName
}

// Fetch retrieves the current seasonal background set
func (o *Osu) Fetch(ctx context.Context, day time.Time) (*domain.ProviderResponse, error) {
	token, err := o.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+osuSeasonal, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create seasonal request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seasonal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: seasonal endpoint returned %d", domain.ErrDownloadFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read seasonal response: %w", err)
	}

	var seasonal osuSeasonalResponse
	if err := json.Unmarshal(raw, &seasonal); err != nil {
		return nil, fmt.Errorf("failed to decode seasonal response: %w", err)
	}

	items := make([]domain.FetchItem, 0, len(seasonal.Backgrounds))
	for _, bg := range seasonal.Backgrounds {
		item, err := o.adapt(bg, day)
		if err != nil {
			o.logger.Warn("Skipping unadaptable seasonal background",
				zap.String("url", bg.URL),
				zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	o.logger.Debug("osu! seasonal backgrounds fetched", zap.Int("count", len(items)))
	return &domain.ProviderResponse{Raw: raw, Items: items}, nil
}

// adapt converts one background into a fetch item. The local filename is
// the trailing path segment of the asset URL.
func (o *Osu) adapt(bg osuBackground, day time.Time) (domain.FetchItem, error) {
	parsed, err := url.Parse(bg.URL)
	if err != nil {
		return domain.FetchItem{}, fmt.Errorf("bad asset url: %w", err)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	name := segments[len(segments)-1]
	if name == "" {
		return domain.FetchItem{}, fmt.Errorf("asset url has no path segment: %s", bg.URL)
	}

	meta, err := json.Marshal(domain.ImageMetadata{
		Title:     strings.TrimSuffix(name, urlExt(name)),
		Copyright: bg.User.Username,
		URL:       bg.URL,
		Date:      dates.Key(day),
	})
	if err != nil {
		return domain.FetchItem{}, err
	}

	metaName := strings.TrimSuffix(name, urlExt(name)) + ".json"
	return domain.FetchItem{
		ImageURL:         bg.URL,
		ImageFileName:    name,
		MetadataFileName: metaName,
		Metadata:         meta,
		Day:              dates.StartOfDay(day),
	}, nil
}

// accessToken returns a cached client-credentials token, requesting a new
// one when missing or near expiry
func (o *Osu) accessToken(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.token != "" && time.Now().Before(o.tokenExpiry) {
		return o.token, nil
	}

	form := url.Values{}
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "public")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+osuTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", domain.ErrDownloadFailed, resp.StatusCode)
	}

	var tok osuTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrDownloadFailed)
	}

	o.token = tok.AccessToken
	o.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - osuTokenSlack)
	o.logger.Debug("osu! access token refreshed",
		zap.Time("expiry", o.tokenExpiry))
	return o.token, nil
}

// urlExt returns the extension of a URL path segment including the dot
func urlExt(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx:]
	}
	return ""
}
