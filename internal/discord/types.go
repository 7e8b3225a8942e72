package discord

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// Common client errors.
var (
	ErrRoleNotFound = errors.New("role not found")
	ErrMissingToken = errors.New("discord token cannot be empty")
	ErrMissingGuild = errors.New("discord guild id cannot be empty")
)

// Role is a guild role.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is the account behind a guild member.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

// Member is a guild member as returned by the members endpoints.
type Member struct {
	User  User     `json:"user"`
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID string) bool {
	return slices.Contains(m.Roles, roleID)
}

// DisplayName returns the nickname, global name or username, in that order.
func (m Member) DisplayName() string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User.GlobalName != "":
		return m.User.GlobalName
	default:
		return m.User.Username
	}
}

// Mention returns the chat mention syntax for the member.
func (m Member) Mention() string {
	return Mention(m.User.ID)
}

// Mention returns the chat mention syntax for a user ID.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// Embed is a rich message embed.
type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
}

// Message is an outgoing channel message.
type Message struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// ColorBrandRed is the embed color used for removal notices.
const ColorBrandRed = 0xED4245

// APIError is a non-2xx response from the API.
type APIError struct {
	Status     int     `json:"-"`
	Code       int     `json:"code"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discord api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("discord api: %d %s (code %d)", e.Status, e.Message, e.Code)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}
