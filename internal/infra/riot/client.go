package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lol-trivia-service/internal/domain"
)

const (
	defaultAccountRegion = "americas"
	defaultPlatform      = "na1"
	defaultMatchCount    = 20
	rankedSoloQueue      = "RANKED_SOLO_5x5"
	matchFetchLimit      = 4
)

var platforms = map[string]string{
	"NA1": "na1", "EUW1": "euw1", "KR": "kr", "EUN1": "eun1",
	"JP1": "jp1", "BR1": "br1", "OC1": "oc1", "RU": "ru",
	"TR1": "tr1", "LA1": "la1", "LA2": "la2",
}

// PlatformForTag maps a riot id tag line to the platform routing value, falling back to na1.
func PlatformForTag(tagLine string) string {
	if p, ok := platforms[strings.ToUpper(tagLine)]; ok {
		return p
	}
	return defaultPlatform
}

// Client fetches account, mastery, ranked and match data from the Riot API.
type Client struct {
	apiKey        string
	http          *http.Client
	baseURL       string
	accountRegion string
	matchCount    int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL sends every request to base instead of the regional riotgames.com hosts.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

func WithMatchCount(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.matchCount = n
		}
	}
}

func WithAccountRegion(region string) Option {
	return func(c *Client) {
		if region != "" {
			c.accountRegion = region
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:        apiKey,
		http:          &http.Client{Timeout: 10 * time.Second},
		accountRegion: defaultAccountRegion,
		matchCount:    defaultMatchCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type masteryEntry struct {
	ChampionID     int `json:"championId"`
	ChampionPoints int `json:"championPoints"`
}

type leagueEntry struct {
	QueueType string `json:"queueType"`
	Tier      string `json:"tier"`
}

type match struct {
	Info struct {
		Participants []participant `json:"participants"`
	} `json:"info"`
}

type participant struct {
	PUUID        string `json:"puuid"`
	ChampionID   int    `json:"championId"`
	ChampionName string `json:"championName"`
	Kills        int    `json:"kills"`
	Deaths       int    `json:"deaths"`
	Win          bool   `json:"win"`
}

// FetchPlayerStats resolves riotID and aggregates its recent matches into a stats snapshot.
func (c *Client) FetchPlayerStats(ctx context.Context, riotID string) (domain.PlayerStats, error) {
	gameName, tagLine, ok := domain.SplitRiotID(riotID)
	if !ok {
		return domain.PlayerStats{}, domain.ErrInvalidRiotID
	}
	platform := PlatformForTag(tagLine)

	var acc account
	accountPath := "/riot/account/v1/accounts/by-riot-id/" + url.PathEscape(gameName) + "/" + url.PathEscape(tagLine)
	if err := c.get(ctx, c.accountRegion, accountPath, &acc); err != nil {
		return domain.PlayerStats{}, fmt.Errorf("account %s: %w", riotID, err)
	}

	var masteries []masteryEntry
	if err := c.get(ctx, platform, "/lol/champion-mastery/v4/champion-masteries/by-puuid/"+url.PathEscape(acc.PUUID), &masteries); err != nil {
		return domain.PlayerStats{}, fmt.Errorf("masteries %s: %w", riotID, err)
	}

	var leagues []leagueEntry
	if err := c.get(ctx, platform, "/lol/league/v4/entries/by-puuid/"+url.PathEscape(acc.PUUID), &leagues); err != nil {
		return domain.PlayerStats{}, fmt.Errorf("ranked entries %s: %w", riotID, err)
	}

	games, err := c.recentGames(ctx, acc.PUUID)
	if err != nil {
		return domain.PlayerStats{}, fmt.Errorf("matches %s: %w", riotID, err)
	}

	stats := domain.PlayerStats{
		RiotID:        riotID,
		GameName:      gameName,
		TagLine:       tagLine,
		PUUID:         acc.PUUID,
		Region:        platform,
		GamesAnalyzed: len(games),
	}
	for _, l := range leagues {
		if l.QueueType == rankedSoloQueue {
			stats.Rank = strings.ToUpper(l.Tier)
		}
	}
	names := make(map[int]string)
	if len(games) > 0 {
		kills, deaths, wins := 0, 0, 0
		for _, g := range games {
			kills = max(kills, g.Kills)
			deaths = max(deaths, g.Deaths)
			if g.Win {
				wins++
			}
			if g.ChampionName != "" {
				names[g.ChampionID] = g.ChampionName
			}
		}
		winrate := float64(wins) / float64(len(games)) * 100
		stats.MostKills, stats.MostDeaths, stats.Winrate = &kills, &deaths, &winrate
	}
	for _, m := range masteries {
		stats.Masteries = append(stats.Masteries, domain.ChampionMastery{
			RiotID:       riotID,
			ChampionID:   m.ChampionID,
			ChampionName: championName(m.ChampionID, names),
			Points:       m.ChampionPoints,
		})
	}
	return stats, nil
}

// recentGames returns the player's own participant record from each of the last matchCount matches.
func (c *Client) recentGames(ctx context.Context, puuid string) ([]participant, error) {
	var ids []string
	path := "/lol/match/v5/matches/by-puuid/" + url.PathEscape(puuid) + "/ids?start=0&count=" + strconv.Itoa(c.matchCount)
	if err := c.get(ctx, c.accountRegion, path, &ids); err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		games = make([]participant, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(matchFetchLimit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			var m match
			if err := c.get(gctx, c.accountRegion, "/lol/match/v5/matches/"+url.PathEscape(id), &m); err != nil {
				return err
			}
			for _, p := range m.Info.Participants {
				if p.PUUID == puuid {
					mu.Lock()
					games = append(games, p)
					mu.Unlock()
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return games, nil
}

func (c *Client) get(ctx context.Context, region, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host(region)+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrStatsUnavailable
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s", domain.ErrProviderRequest, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) host(region string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + region + ".api.riotgames.com"
}
