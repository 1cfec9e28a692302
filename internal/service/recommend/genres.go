package recommend

import "strings"

var spotifyGenres = map[string][]string{
	"happy":   {"pop", "dance"},
	"calm":    {"ambient", "chill"},
	"sad":     {"acoustic", "singer-songwriter"},
	"anxious": {"ambient", "meditation"},
	"angry":   {"rock", "metal"},
	"tired":   {"chill", "sleep"},
	"neutral": {"indie", "alternative"},
}

// TMDB movie genre ids.
const (
	genreAction      = 28
	genreAdventure   = 12
	genreComedy      = 35
	genreCrime       = 80
	genreDocumentary = 99
	genreDrama       = 18
	genreFamily      = 10751
	genreMystery     = 9648
	genreRomance     = 10749
	genreThriller    = 53
)

var tmdbGenres = map[string][]int{
	"happy":   {genreComedy, genreFamily},
	"calm":    {genreDocumentary, genreDrama},
	"sad":     {genreDrama, genreRomance},
	"anxious": {genreThriller, genreMystery},
	"angry":   {genreAction, genreCrime},
	"tired":   {genreFamily, genreComedy},
	"neutral": {genreDrama, genreAdventure},
}

// GenresFor returns the Spotify and TMDB genres mapped to an emotion label.
// Unknown labels use the neutral mapping.
func GenresFor(emotion string) ([]string, []int) {
	key := strings.ToLower(strings.TrimSpace(emotion))
	spotify, ok := spotifyGenres[key]
	if !ok {
		spotify = spotifyGenres["neutral"]
	}
	tmdb, ok := tmdbGenres[key]
	if !ok {
		tmdb = tmdbGenres["neutral"]
	}
	return spotify, tmdb
}
