// Package discordtest provides an in-memory Discord REST server for tests.
package discordtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/rshade/guildsweep/internal/discord"
)

// Kick records one member removal.
type Kick struct {
	UserID string
	Reason string
}

// DirectMessage records one message sent to a user.
type DirectMessage struct {
	UserID  string
	Message discord.Message
}

// Server is a fake guild behind an httptest server. Its URL is usable as the
// client's API base URL.
type Server struct {
	*httptest.Server

	token   string
	guildID string

	mu            sync.Mutex
	roles         []discord.Role
	members       []discord.Member
	kicks         []Kick
	dms           []DirectMessage
	failKick      map[string]int
	failDM        map[string]bool
	failLookup    map[string]int
	failListCount int
	listRequests  int
	onKick        func(userID string)
}

// NewServer starts a fake guild accepting the given bot token.
func NewServer(token, guildID string) *Server {
	s := &Server{
		token:      token,
		guildID:    guildID,
		failKick:   make(map[string]int),
		failDM:     make(map[string]bool),
		failLookup: make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authenticate)

	r.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Use(s.requireGuild)
		r.Get("/roles", s.handleRoles)
		r.Get("/members", s.handleListMembers)
		r.Get("/members/{userID}", s.handleGetMember)
		r.Delete("/members/{userID}", s.handleKick)
	})
	r.Post("/users/@me/channels", s.handleCreateDM)
	r.Post("/channels/{channelID}/messages", s.handleCreateMessage)
	return r
}

// AddRole adds a role to the guild.
func (s *Server) AddRole(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = append(s.roles, discord.Role{ID: id, Name: name})
}

// AddMember adds a member to the guild.
func (s *Server) AddMember(m discord.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, m)
}

// GrantRole gives an existing member a role.
func (s *Server) GrantRole(userID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(userID); i >= 0 && !s.members[i].HasRole(roleID) {
		s.members[i].Roles = append(s.members[i].Roles, roleID)
	}
}

// FailKick makes kicks of userID fail with status.
func (s *Server) FailKick(userID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKick[userID] = status
}

// FailDM makes direct messages to userID fail.
func (s *Server) FailDM(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDM[userID] = true
}

// FailLookup makes single-member lookups of userID fail with status.
func (s *Server) FailLookup(userID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLookup[userID] = status
}

// FailMemberList makes the next n member list requests return 500.
func (s *Server) FailMemberList(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failListCount = n
}

// OnKick registers a hook called after each successful kick.
func (s *Server) OnKick(fn func(userID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onKick = fn
}

// Kicks returns the recorded kicks in order.
func (s *Server) Kicks() []Kick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.kicks)
}

// DirectMessages returns the recorded direct messages in order.
func (s *Server) DirectMessages() []DirectMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.dms)
}

// Members returns the current guild members.
func (s *Server) Members() []discord.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

// ListRequests returns how many member list requests were served, failures included.
func (s *Server) ListRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listRequests
}

func (s *Server) indexOf(userID string) int {
	return slices.IndexFunc(s.members, func(m discord.Member) bool { return m.User.ID == userID })
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bot "+s.token {
			writeError(w, http.StatusUnauthorized, 0, "401: Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireGuild(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "guildID") != s.guildID {
			writeError(w, http.StatusNotFound, 10004, "Unknown Guild")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoles(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	roles := slices.Clone(s.roles)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listRequests++
	if s.failListCount > 0 {
		s.failListCount--
		writeError(w, http.StatusInternalServerError, 0, "Internal Server Error")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 1
	}

	start := 0
	if after := r.URL.Query().Get("after"); after != "" {
		start = s.indexOf(after) + 1
	}
	end := min(start+limit, len(s.members))
	page := make([]discord.Member, 0, max(end-start, 0))
	if start < end {
		page = append(page, s.members[start:end]...)
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.failLookup[userID]; ok {
		writeError(w, status, 0, http.StatusText(status))
		return
	}
	i := s.indexOf(userID)
	if i < 0 {
		writeError(w, http.StatusNotFound, 10007, "Unknown Member")
		return
	}
	writeJSON(w, http.StatusOK, s.members[i])
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	reason, _ := url.PathUnescape(r.Header.Get("X-Audit-Log-Reason"))

	s.mu.Lock()
	if status, ok := s.failKick[userID]; ok {
		s.mu.Unlock()
		writeError(w, status, 50013, "Missing Permissions")
		return
	}
	i := s.indexOf(userID)
	if i < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, 10007, "Unknown Member")
		return
	}
	s.members = slices.Delete(s.members, i, i+1)
	s.kicks = append(s.kicks, Kick{UserID: userID, Reason: reason})
	hook := s.onKick
	s.mu.Unlock()

	if hook != nil {
		hook(userID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateDM(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RecipientID string `json:"recipient_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RecipientID == "" {
		writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
		return
	}

	s.mu.Lock()
	fail := s.failDM[body.RecipientID]
	s.mu.Unlock()
	if fail {
		writeError(w, http.StatusForbidden, 50007, "Cannot send messages to this user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": "dm-" + body.RecipientID, "type": "1"})
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := strings.CutPrefix(chi.URLParam(r, "channelID"), "dm-")
	if !ok {
		writeError(w, http.StatusNotFound, 10003, "Unknown Channel")
		return
	}

	var msg discord.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
		return
	}

	s.mu.Lock()
	s.dms = append(s.dms, DirectMessage{UserID: userID, Message: msg})
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"id": strconv.Itoa(len(msg.Embeds))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{"code": code, "message": message})
}

// NewMember builds a member with the given roles.
func NewMember(userID, username string, roles ...string) discord.Member {
	if roles == nil {
		roles = []string{}
	}
	return discord.Member{
		User:  discord.User{ID: userID, Username: username},
		Roles: roles,
	}
}
