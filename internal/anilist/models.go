package anilist

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Title holds the localized names AniList returns for a media entry.
type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// Media is one anime entry.
type Media struct {
	ID           int      `json:"id"`
	Title        Title    `json:"title"`
	Format       string   `json:"format"`
	Status       string   `json:"status"`
	Episodes     int      `json:"episodes"`
	Season       string   `json:"season"`
	SeasonYear   int      `json:"seasonYear"`
	AverageScore int      `json:"averageScore"`
	Genres       []string `json:"genres"`
	Description  string   `json:"description"`
	SiteURL      string   `json:"siteUrl"`
	CoverImage   struct {
		Large string `json:"large"`
	} `json:"coverImage"`
}

// DisplayTitle prefers the English title and falls back to romaji, then native.
func (m Media) DisplayTitle() string {
	switch {
	case m.Title.English != "":
		return m.Title.English
	case m.Title.Romaji != "":
		return m.Title.Romaji
	case m.Title.Native != "":
		return m.Title.Native
	default:
		return fmt.Sprintf("#%d", m.ID)
	}
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// PlainDescription strips the HTML markup AniList embeds in descriptions and
// truncates to limit runes. A limit of 0 disables truncation.
func (m Media) PlainDescription(limit int) string {
	s := htmlTag.ReplaceAllString(m.Description, "")
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type searchData struct {
	Page struct {
		Media []Media `json:"media"`
	} `json:"Page"`
}

type mediaData struct {
	Media *Media `json:"Media"`
}

const mediaFields = `
  id
  title { romaji english native }
  format
  status
  episodes
  season
  seasonYear
  averageScore
  genres
  description(asHtml: false)
  siteUrl
  coverImage { large }
`

const searchQuery = `query ($search: String, $perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(search: $search, type: ANIME, sort: SEARCH_MATCH) {` + mediaFields + `    }
  }
}`

const mediaQuery = `query ($id: Int) {
  Media(id: $id, type: ANIME) {` + mediaFields + `  }
}`
