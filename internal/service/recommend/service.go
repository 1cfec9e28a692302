package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/pulse-ai/pulse/internal/config"
	"github.com/pulse-ai/pulse/internal/model/recommendation"
)

const (
	defaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
	defaultSpotifyAPIURL   = "https://api.spotify.com/v1"
	defaultTMDBAPIURL      = "https://api.themoviedb.org/3"
	tmdbPosterBase         = "https://image.tmdb.org/t/p/w500"
	tmdbMovieBase          = "https://www.themoviedb.org/movie/"
)

// Options overrides provider endpoints.
type Options struct {
	SpotifyTokenURL string
	SpotifyAPIURL   string
	TMDBAPIURL      string
	HTTPClient      *http.Client
}

// Service fetches music and film suggestions for an emotion. Each provider is
// optional and best-effort: failures yield an empty list for that provider.
type Service struct {
	cfg        config.RecommendConfig
	spotify    *http.Client
	tmdb       *http.Client
	spotifyAPI string
	tmdbAPI    string
	logger     *zap.Logger
}

// NewService configures the providers that have credentials.
func NewService(cfg config.RecommendConfig, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	s := &Service{
		cfg:        cfg,
		tmdb:       base,
		spotifyAPI: strings.TrimRight(orDefault(opts.SpotifyAPIURL, defaultSpotifyAPIURL), "/"),
		tmdbAPI:    strings.TrimRight(orDefault(opts.TMDBAPIURL, defaultTMDBAPIURL), "/"),
		logger:     logger.Named("recommend"),
	}

	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			TokenURL:     orDefault(opts.SpotifyTokenURL, defaultSpotifyTokenURL),
		}
		s.spotify = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	}
	return s
}

// Enabled reports whether at least one provider is configured.
func (s *Service) Enabled() bool {
	return s != nil && (s.spotify != nil || s.cfg.TMDBAPIKey != "")
}

// ForEmotion fetches both providers concurrently.
func (s *Service) ForEmotion(ctx context.Context, emotion string) recommendation.Set {
	set := recommendation.Set{Spotify: []recommendation.Track{}, TMDB: []recommendation.Movie{}}
	if !s.Enabled() {
		return set
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	spotifyGenres, tmdbGenres := GenresFor(emotion)

	g, gctx := errgroup.WithContext(ctx)
	if s.spotify != nil {
		g.Go(func() error {
			tracks, err := s.searchTracks(gctx, spotifyGenres)
			if err != nil {
				s.logger.Warn("spotify lookup failed", zap.String("emotion", emotion), zap.Error(err))
				return nil
			}
			set.Spotify = tracks
			return nil
		})
	}
	if s.cfg.TMDBAPIKey != "" {
		g.Go(func() error {
			movies, err := s.discoverMovies(gctx, tmdbGenres)
			if err != nil {
				s.logger.Warn("tmdb lookup failed", zap.String("emotion", emotion), zap.Error(err))
				return nil
			}
			set.TMDB = movies
			return nil
		})
	}
	_ = g.Wait()

	return set
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []struct {
			Name         string `json:"name"`
			PreviewURL   string `json:"preview_url"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"items"`
	} `json:"tracks"`
}

func (s *Service) searchTracks(ctx context.Context, genres []string) ([]recommendation.Track, error) {
	tracks := make([]recommendation.Track, 0, s.cfg.Limit)
	for _, genre := range genres {
		if len(tracks) >= s.cfg.Limit {
			break
		}

		q := url.Values{}
		q.Set("q", fmt.Sprintf("genre:%q", genre))
		q.Set("type", "track")
		q.Set("limit", strconv.Itoa(s.cfg.Limit-len(tracks)))
		if s.cfg.SpotifyMarket != "" {
			q.Set("market", s.cfg.SpotifyMarket)
		}

		var payload spotifySearchResponse
		if err := getJSON(ctx, s.spotify, s.spotifyAPI+"/search?"+q.Encode(), &payload); err != nil {
			return nil, err
		}

		for _, item := range payload.Tracks.Items {
			names := make([]string, 0, len(item.Artists))
			for _, a := range item.Artists {
				names = append(names, a.Name)
			}
			track := recommendation.Track{
				Name:        item.Name,
				Artists:     strings.Join(names, ", "),
				PreviewURL:  item.PreviewURL,
				ExternalURL: item.ExternalURLs.Spotify,
			}
			if len(item.Album.Images) > 0 {
				track.Image = item.Album.Images[0].URL
			}
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

type tmdbDiscoverResponse struct {
	Results []struct {
		ID         int    `json:"id"`
		Title      string `json:"title"`
		Overview   string `json:"overview"`
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

func (s *Service) discoverMovies(ctx context.Context, genres []int) ([]recommendation.Movie, error) {
	ids := make([]string, 0, len(genres))
	for _, id := range genres {
		ids = append(ids, strconv.Itoa(id))
	}

	q := url.Values{}
	q.Set("api_key", s.cfg.TMDBAPIKey)
	q.Set("with_genres", strings.Join(ids, "|"))
	q.Set("sort_by", "popularity.desc")
	q.Set("page", "1")
	if s.cfg.TMDBRegion != "" {
		q.Set("region", s.cfg.TMDBRegion)
	}

	var payload tmdbDiscoverResponse
	if err := getJSON(ctx, s.tmdb, s.tmdbAPI+"/discover/movie?"+q.Encode(), &payload); err != nil {
		return nil, err
	}

	movies := make([]recommendation.Movie, 0, s.cfg.Limit)
	for _, r := range payload.Results {
		if len(movies) == s.cfg.Limit {
			break
		}
		movie := recommendation.Movie{
			Title:    r.Title,
			Overview: r.Overview,
			TMDBURL:  tmdbMovieBase + strconv.Itoa(r.ID),
		}
		if r.PosterPath != "" {
			movie.Poster = tmdbPosterBase + r.PosterPath
		}
		movies = append(movies, movie)
	}
	return movies, nil
}

func getJSON(ctx context.Context, client *http.Client, target string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
