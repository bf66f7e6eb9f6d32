// Package testutil provides an in-process fake of the slice of the GitHub
// REST and OAuth surface this service talks to.
//
// FakeGitHub is an httptest.Server backed by a chi router. Point both the
// OAuth web URL and the REST API URL at FakeGitHub.URL(); every request is
// recorded so tests can assert on exactly which calls were (or weren't) made.
package testutil

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// InstallationID is the ID the fake reports for the org installation.
	InstallationID = 4242
	// InstallationToken is the token the fake issues for that installation.
	InstallationToken = "ghs_fakeinstallationtoken"
)

// FakeGitHub simulates GitHub for tests. The exported fields are safe to set
// before the first request; use the helper methods afterwards.
type FakeGitHub struct {
	server *httptest.Server

	mu sync.Mutex

	// ClientID and ClientSecret are the OAuth app credentials the fake accepts.
	ClientID     string
	ClientSecret string
	// AppKey, when set, is used to verify app JWTs on /app and /orgs routes.
	AppKey *rsa.PublicKey
	// Org is the organization that has the app installed.
	Org string

	codes       map[string]string // authorization code → login
	userTokens  map[string]string // user access token → login
	revoked     map[string]bool   // user access token → grant deleted
	repos       map[string]bool   // "owner/name"
	invitations map[string][]fakeInvitation
	perms       map[string]string // "owner/name/login" → permission
	failures    map[string]int    // "METHOD /path" → status code
	calls       []string
	nextID      int64
	tokenPerms  map[string]string
}

type fakeInvitation struct {
	ID          int64  `json:"id"`
	Invitee     *login `json:"invitee,omitempty"`
	Permissions string `json:"permissions"`
	HTMLURL     string `json:"html_url"`
}

type login struct {
	Login string `json:"login"`
}

// NewFakeGitHub starts a fake server. Close it with t.Cleanup(fake.Close).
func NewFakeGitHub(clientID, clientSecret, org string) *FakeGitHub {
	f := &FakeGitHub{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Org:          org,
		codes:        make(map[string]string),
		userTokens:   make(map[string]string),
		revoked:      make(map[string]bool),
		repos:        make(map[string]bool),
		invitations:  make(map[string][]fakeInvitation),
		perms:        make(map[string]string),
		failures:     make(map[string]int),
		nextID:       1000,
	}
	f.server = httptest.NewServer(f.routes())
	return f
}

// URL is the base URL for both the OAuth pages and the REST API.
func (f *FakeGitHub) URL() string { return f.server.URL }

// Close shuts the server down.
func (f *FakeGitHub) Close() { f.server.Close() }

// AddUser registers an authorization code that GitHub would hand to login.
func (f *FakeGitHub) AddUser(code, userLogin string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = userLogin
}

// AddRepo marks owner/name as existing.
func (f *FakeGitHub) AddRepo(owner, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[owner+"/"+name] = true
}

// HasRepo reports whether owner/name exists.
func (f *FakeGitHub) HasRepo(owner, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[owner+"/"+name]
}

// AddInvitation adds a pending invitation for invitee and returns its URL.
func (f *FakeGitHub) AddInvitation(owner, name, invitee, permission string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invite(owner, name, invitee, permission).HTMLURL
}

// SetPermission sets invitee's collaborator permission on owner/name.
func (f *FakeGitHub) SetPermission(owner, name, userLogin, permission string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms[owner+"/"+name+"/"+userLogin] = permission
}

// InvitationCount returns the number of pending invitations on owner/name.
func (f *FakeGitHub) InvitationCount(owner, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invitations[owner+"/"+name])
}

// InvitationPermission returns the permission of invitee's pending
// invitation on owner/name, and false if there is none.
func (f *FakeGitHub) InvitationPermission(owner, name, invitee string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations[owner+"/"+name] {
		if inv.Invitee != nil && inv.Invitee.Login == invitee {
			return inv.Permissions, true
		}
	}
	return "", false
}

// FailWith makes "METHOD /path" answer with status until cleared with 0.
func (f *FakeGitHub) FailWith(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, method+" "+path)
		return
	}
	f.failures[method+" "+path] = status
}

// Count returns how many times "METHOD /path" was requested.
func (f *FakeGitHub) Count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method+" "+path {
			n++
		}
	}
	return n
}

// Calls returns every recorded "METHOD /path", in order.
func (f *FakeGitHub) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// TokenPermissions returns the permissions requested for the last
// installation token.
func (f *FakeGitHub) TokenPermissions() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenPerms
}

// Revoked reports whether the grant behind a user token was deleted.
func (f *FakeGitHub) Revoked(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[token]
}

// invite must be called with f.mu held.
func (f *FakeGitHub) invite(owner, name, invitee, permission string) fakeInvitation {
	f.nextID++
	inv := fakeInvitation{
		ID:          f.nextID,
		Invitee:     &login{Login: invitee},
		Permissions: permission,
		HTMLURL:     fmt.Sprintf("https://github.com/%s/%s/invitations/%d", owner, name, f.nextID),
	}
	key := owner + "/" + name
	f.invitations[key] = append(f.invitations[key], inv)
	return inv
}

func (f *FakeGitHub) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)

	r.Post("/login/oauth/access_token", f.handleAccessToken)
	r.Get("/user", f.handleUser)
	r.Delete("/applications/{clientID}/grant", f.handleDeleteGrant)

	r.Group(func(r chi.Router) {
		r.Use(f.requireAppJWT)
		r.Get("/orgs/{org}/installation", f.handleOrgInstallation)
		r.Post("/app/installations/{id}/access_tokens", f.handleCreateToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(f.requireInstallationToken)
		r.Get("/repos/{owner}/{repo}", f.handleGetRepo)
		r.Post("/repos/{owner}/{repo}/generate", f.handleGenerate)
		r.Get("/repos/{owner}/{repo}/invitations", f.handleListInvitations)
		r.Get("/repos/{owner}/{repo}/collaborators/{user}/permission", f.handlePermission)
		r.Put("/repos/{owner}/{repo}/collaborators/{user}", f.handleAddCollaborator)
	})

	return r
}

func (f *FakeGitHub) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.calls = append(f.calls, key)
		status, fail := f.failures[key]
		f.mu.Unlock()

		if fail {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeGitHub) requireAppJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		if f.AppKey != nil {
			_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return f.AppKey, nil },
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
			)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "A JSON web token could not be decoded"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeGitHub) requireInstallationToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+InstallationToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeGitHub) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("client_id") != f.ClientID || r.PostForm.Get("client_secret") != f.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect_client_credentials"})
		return
	}

	f.mu.Lock()
	userLogin, ok := f.codes[r.PostForm.Get("code")]
	if ok {
		delete(f.codes, r.PostForm.Get("code")) // codes are single use
	}
	token := "gho_" + userLogin
	if ok {
		f.userTokens[token] = userLogin
	}
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_verification_code"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
		"scope":        "read:user",
	})
}

func (f *FakeGitHub) handleUser(w http.ResponseWriter, r *http.Request) {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	userLogin, ok := f.userTokens[token]
	dead := f.revoked[token]
	f.mu.Unlock()

	if !ok || dead {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": int64(len(userLogin)) + 1, "login": userLogin})
}

func (f *FakeGitHub) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != f.ClientID || pass != f.ClientSecret || chi.URLParam(r, "clientID") != f.ClientID {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request"})
		return
	}

	f.mu.Lock()
	_, known := f.userTokens[body.AccessToken]
	if known {
		f.revoked[body.AccessToken] = true
	}
	f.mu.Unlock()

	if !known {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeGitHub) handleOrgInstallation(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "org") != f.Org {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": InstallationID, "account": map[string]string{"login": f.Org}})
}

func (f *FakeGitHub) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "id") != strconv.Itoa(InstallationID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	var body struct {
		Permissions map[string]string `json:"permissions"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.tokenPerms = body.Permissions
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":       InstallationToken,
		"expires_at":  time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"permissions": body.Permissions,
	})
}

func (f *FakeGitHub) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	owner, name := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	if !f.HasRepo(owner, name) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, repoJSON(owner, name))
}

func (f *FakeGitHub) handleGenerate(w http.ResponseWriter, r *http.Request) {
	tOwner, tName := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	if !f.HasRepo(tOwner, tName) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	var body struct {
		Owner   string `json:"owner"`
		Name    string `json:"name"`
		Private bool   `json:"private"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Validation Failed"})
		return
	}

	f.mu.Lock()
	exists := f.repos[body.Owner+"/"+body.Name]
	if !exists {
		f.repos[body.Owner+"/"+body.Name] = true
	}
	f.mu.Unlock()

	if exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Name already exists on this account"})
		return
	}

	repo := repoJSON(body.Owner, body.Name)
	repo["private"] = body.Private
	writeJSON(w, http.StatusCreated, repo)
}

func (f *FakeGitHub) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	owner, name := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	if !f.HasRepo(owner, name) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	f.mu.Lock()
	invs := append([]fakeInvitation{}, f.invitations[owner+"/"+name]...)
	f.mu.Unlock()

	// Paginate with per_page/page so callers have to follow Link headers.
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 30
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	start := min((page-1)*perPage, len(invs))
	end := min(start+perPage, len(invs))
	if end < len(invs) {
		next := *r.URL
		q := next.Query()
		q.Set("page", strconv.Itoa(page+1))
		q.Set("per_page", strconv.Itoa(perPage))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<%s%s>; rel="next"`, f.server.URL, next.RequestURI()))
	}

	writeJSON(w, http.StatusOK, invs[start:end])
}

func (f *FakeGitHub) handlePermission(w http.ResponseWriter, r *http.Request) {
	owner, name, user := chi.URLParam(r, "owner"), chi.URLParam(r, "repo"), chi.URLParam(r, "user")

	f.mu.Lock()
	perm, ok := f.perms[owner+"/"+name+"/"+user]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permission": perm, "user": login{Login: user}})
}

func (f *FakeGitHub) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
	owner, name, user := chi.URLParam(r, "owner"), chi.URLParam(r, "repo"), chi.URLParam(r, "user")
	if !f.HasRepo(owner, name) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	var body struct {
		Permission string `json:"permission"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	if perm, ok := f.perms[owner+"/"+name+"/"+user]; ok && perm != "none" {
		// Existing collaborators get 204 and no invitation.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, f.invite(owner, name, user, body.Permission))
}

func repoJSON(owner, name string) map[string]any {
	return map[string]any{
		"id":        int64(len(owner+name)) * 7,
		"name":      name,
		"full_name": owner + "/" + name,
		"private":   true,
		"html_url":  "https://github.com/" + owner + "/" + name,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
