package recommend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulse-ai/pulse/internal/config"
)

func TestGenresForFallsBackToNeutral(t *testing.T) {
	spotify, tmdb := GenresFor("Calm")
	if spotify[0] != "ambient" || tmdb[0] != genreDocumentary {
		t.Fatalf("unexpected calm genres %v %v", spotify, tmdb)
	}
	spotify, tmdb = GenresFor("bewildered")
	if spotify[0] != "indie" || tmdb[1] != genreAdventure {
		t.Fatalf("unexpected fallback genres %v %v", spotify, tmdb)
	}
}

func TestForEmotionDisabledReturnsEmptySet(t *testing.T) {
	svc := NewService(config.RecommendConfig{}, Options{}, nil)
	if svc.Enabled() {
		t.Fatal("expected service without credentials to be disabled")
	}
	set := svc.ForEmotion(context.Background(), "sad")
	if !set.Empty() {
		t.Fatalf("expected empty set, got %+v", set)
	}
}

func TestForEmotionQueriesBothProviders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/spotify/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.Contains(r.URL.Query().Get("q"), "acoustic") && !strings.Contains(r.URL.Query().Get("q"), "singer-songwriter") {
			t.Errorf("unexpected query %q", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(`{"tracks":{"items":[{"name":"Song","preview_url":"p","external_urls":{"spotify":"https://open.spotify.com/t/1"},"artists":[{"name":"A"},{"name":"B"}],"album":{"images":[{"url":"img"}]}}]}}`))
	})
	mux.HandleFunc("/tmdb/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "tmdb-key" || q.Get("with_genres") != "18|10749" || q.Get("region") != "IN" {
			t.Errorf("unexpected tmdb query %v", q)
		}
		_, _ = w.Write([]byte(`{"results":[{"id":7,"title":"Film","overview":"o","poster_path":"/p.jpg"},{"id":8,"title":"No Poster"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.RecommendConfig{
		SpotifyClientID:     "id",
		SpotifyClientSecret: "secret",
		TMDBAPIKey:          "tmdb-key",
		TMDBRegion:          "IN",
		Limit:               2,
	}
	svc := NewService(cfg, Options{
		SpotifyTokenURL: srv.URL + "/token",
		SpotifyAPIURL:   srv.URL + "/spotify",
		TMDBAPIURL:      srv.URL + "/tmdb",
	}, nil)

	set := svc.ForEmotion(context.Background(), "sad")

	if len(set.Spotify) != 2 {
		t.Fatalf("expected two tracks across genres, got %d", len(set.Spotify))
	}
	track := set.Spotify[0]
	if track.Name != "Song" || track.Artists != "A, B" || track.Image != "img" || track.ExternalURL == "" {
		t.Fatalf("unexpected track %+v", track)
	}

	if len(set.TMDB) != 2 {
		t.Fatalf("expected two movies, got %d", len(set.TMDB))
	}
	if set.TMDB[0].Poster != tmdbPosterBase+"/p.jpg" || set.TMDB[0].TMDBURL != tmdbMovieBase+"7" {
		t.Fatalf("unexpected movie %+v", set.TMDB[0])
	}
	if set.TMDB[1].Poster != "" {
		t.Fatalf("expected empty poster, got %q", set.TMDB[1].Poster)
	}
}

func TestForEmotionProviderFailureIsIsolated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tmdb/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := NewService(config.RecommendConfig{TMDBAPIKey: "k"}, Options{TMDBAPIURL: srv.URL + "/tmdb"}, nil)
	set := svc.ForEmotion(context.Background(), "happy")
	if !set.Empty() {
		t.Fatalf("expected empty set after provider failure, got %+v", set)
	}
}
