package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/garyellow/guildbot-go/internal/config"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
)

// CustomIDDelimiter separates the kind and payload segments of a custom ID.
//
// Format: "kind.segment1.segment2..."
//   - Example: "anime.info.0" or "page.1290385720398.next"
//   - Max 100 bytes per Discord API limit
//   - No escaping: segments must not contain the delimiter
const CustomIDDelimiter = "."

// PaginationKind is the reserved kind owned by the pagination registry.
const PaginationKind = "page"

// CustomID is a parsed component custom ID.
type CustomID struct {
	Kind     string
	Segments []string
}

// ParseCustomID splits raw into its kind and payload segments.
func ParseCustomID(raw string) (CustomID, error) {
	if raw == "" {
		return CustomID{}, apperrors.NewValidationError("custom_id", "empty")
	}
	if len(raw) > config.DiscordMaxCustomIDLength {
		return CustomID{}, apperrors.NewValidationError("custom_id", fmt.Sprintf("longer than %d bytes", config.DiscordMaxCustomIDLength))
	}

	parts := strings.Split(raw, CustomIDDelimiter)
	if parts[0] == "" {
		return CustomID{}, apperrors.NewValidationError("custom_id", "missing kind")
	}
	return CustomID{Kind: parts[0], Segments: parts[1:]}, nil
}

// NewCustomID builds a custom ID string from kind and segments.
func NewCustomID(kind string, segments ...string) (string, error) {
	if kind == "" {
		return "", apperrors.NewValidationError("custom_id", "missing kind")
	}
	if strings.Contains(kind, CustomIDDelimiter) {
		return "", apperrors.NewValidationError("custom_id", fmt.Sprintf("kind %q contains %q", kind, CustomIDDelimiter))
	}
	for _, s := range segments {
		if strings.Contains(s, CustomIDDelimiter) {
			return "", apperrors.NewValidationError("custom_id", fmt.Sprintf("segment %q contains %q", s, CustomIDDelimiter))
		}
	}

	id := CustomID{Kind: kind, Segments: segments}.String()
	if len(id) > config.DiscordMaxCustomIDLength {
		return "", apperrors.NewValidationError("custom_id", fmt.Sprintf("%d bytes exceeds %d", len(id), config.DiscordMaxCustomIDLength))
	}
	return id, nil
}

// MustCustomID is like NewCustomID but panics on error.
// Use it for IDs built from constants.
func MustCustomID(kind string, segments ...string) string {
	id, err := NewCustomID(kind, segments...)
	if err != nil {
		panic(err)
	}
	return id
}

// String joins the kind and segments.
func (c CustomID) String() string {
	if len(c.Segments) == 0 {
		return c.Kind
	}
	return c.Kind + CustomIDDelimiter + strings.Join(c.Segments, CustomIDDelimiter)
}

// Segment returns segment i, or "" if out of range.
func (c CustomID) Segment(i int) string {
	if i < 0 || i >= len(c.Segments) {
		return ""
	}
	return c.Segments[i]
}

// Index returns the last segment parsed as a non-negative integer.
// Select menus on paginated messages carry the page index this way.
func (c CustomID) Index() (int, bool) {
	if len(c.Segments) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(c.Segments[len(c.Segments)-1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
