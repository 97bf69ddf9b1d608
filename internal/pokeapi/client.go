// Package pokeapi resolves species metadata from the public PokeAPI,
// with a Redis read-through cache in front of it.
package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pokemart/internal/redisclient"
	"pokemart/internal/util"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://pokeapi.co/api/v2"

// Species is the display metadata for one species.
type Species struct {
	ID     int            `json:"pokemonId"`
	Name   string         `json:"pokemonName"`
	Sprite string         `json:"sprite"`
	Types  []string       `json:"types"`
	Stats  map[string]int `json:"stats"`
}

// Client fetches species metadata. Lookups are best effort: callers
// tolerate failures and degrade to bare species numbers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *redisclient.Client
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewClient creates a species client. cache may be nil.
func NewClient(cache *redisclient.Client) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		cache:      cache,
		cacheTTL:   24 * time.Hour,
		logger:     util.GetLogger(),
	}
}

// pokeAPIResponse is the subset of the upstream payload we read.
type pokeAPIResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
		Other        struct {
			OfficialArtwork struct {
				FrontDefault string `json:"front_default"`
			} `json:"official-artwork"`
		} `json:"other"`
	} `json:"sprites"`
	Types []struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int `json:"base_stat"`
		Stat     struct {
			Name string `json:"name"`
		} `json:"stat"`
	} `json:"stats"`
}

// GetSpecies resolves one species, serving from cache when possible.
func (c *Client) GetSpecies(ctx context.Context, id int) (*Species, error) {
	key := fmt.Sprintf("species:%d", id)

	if c.cache != nil {
		if raw, err := c.cache.CacheGet(ctx, key); err == nil {
			var species Species
			if err := json.Unmarshal(raw, &species); err == nil {
				return &species, nil
			}
		} else if !errors.Is(err, redisclient.ErrCacheMiss) {
			c.logger.Warn("Species cache read failed", zap.Error(err))
		}
	}

	species, err := c.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(species); err == nil {
			if err := c.cache.CacheSet(ctx, key, raw, c.cacheTTL); err != nil {
				c.logger.Warn("Species cache write failed", zap.Error(err))
			}
		}
	}

	return species, nil
}

func (c *Client) fetch(ctx context.Context, id int) (*Species, error) {
	url := fmt.Sprintf("%s/pokemon/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pokeapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pokeapi returned status %d for species %d", resp.StatusCode, id)
	}

	var payload pokeAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode pokeapi response: %w", err)
	}

	species := &Species{
		ID:    payload.ID,
		Name:  payload.Name,
		Stats: make(map[string]int, len(payload.Stats)),
	}
	species.Sprite = payload.Sprites.Other.OfficialArtwork.FrontDefault
	if species.Sprite == "" {
		species.Sprite = payload.Sprites.FrontDefault
	}
	for _, t := range payload.Types {
		species.Types = append(species.Types, t.Type.Name)
	}
	for _, st := range payload.Stats {
		species.Stats[st.Stat.Name] = st.BaseStat
	}

	return species, nil
}
