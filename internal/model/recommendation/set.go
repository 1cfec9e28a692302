package recommendation

// Track is a music suggestion.
type Track struct {
	Name        string `json:"name"`
	Artists     string `json:"artists"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Movie is a film suggestion.
type Movie struct {
	Title    string `json:"title"`
	Overview string `json:"overview,omitempty"`
	Poster   string `json:"poster,omitempty"`
	TMDBURL  string `json:"tmdb_url,omitempty"`
}

// Set groups suggestions by provider.
type Set struct {
	Spotify []Track `json:"spotify"`
	TMDB    []Movie `json:"tmdb"`
}

// Empty reports whether the set carries no suggestions.
func (s *Set) Empty() bool {
	return s == nil || (len(s.Spotify) == 0 && len(s.TMDB) == 0)
}
