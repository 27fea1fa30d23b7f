package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const jiraScope = "read:jira-work manage:jira-project"

type jiraConfig struct {
	authURL      string
	clientID     string
	clientSecret string
	redirectURL  string
	apiBaseURL   string
	apiPrefix    string
	apiVersion   string
}

func (cfg jiraConfig) configured() bool {
	return cfg.authURL != "" && cfg.clientID != "" && cfg.clientSecret != "" && cfg.redirectURL != ""
}

type stateCacheEntry struct {
	userID    int
	expiresAt time.Time
}

// stateCache binds OAuth state values to the user that started the flow, so
// the unauthenticated callback can be attributed. Entries are one-shot and
// expire on their own.
type stateCache struct {
	mu      sync.RWMutex
	entries map[string]stateCacheEntry
}

func newStateCache() *stateCache {
	c := &stateCache{
		entries: make(map[string]stateCacheEntry),
	}
	go func(c *stateCache) {
		ticker := time.NewTicker(time.Minute)
		for {
			<-ticker.C
			func() {
				c.mu.Lock()
				defer c.mu.Unlock()
				for k, v := range c.entries {
					if time.Now().After(v.expiresAt) {
						delete(c.entries, k)
					}
				}
			}()
		}
	}(c)
	return c
}

func (c *stateCache) set(state string, userID int, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[state] = stateCacheEntry{
		userID:    userID,
		expiresAt: time.Now().Add(d),
	}
}

// take consumes the state and returns the bound user, once.
func (c *stateCache) take(state string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[state]
	if !ok {
		return 0, false
	}
	delete(c.entries, state)
	if time.Now().After(e.expiresAt) {
		return 0, false
	}
	return e.userID, true
}

func randomState() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (app *application) jiraAuthHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	if !app.config.jira.configured() {
		writeError(w, errors.New("jira integration is not configured"), http.StatusServiceUnavailable)
		return
	}
	state, err := randomState()
	if err != nil {
		serverError(w, err)
		return
	}
	app.jiraStates.set(state, u.ID, 10*time.Minute)

	q := url.Values{}
	q.Set("audience", "api.atlassian.com")
	q.Set("client_id", app.config.jira.clientID)
	q.Set("scope", jiraScope)
	q.Set("redirect_uri", app.config.jira.redirectURL)
	q.Set("state", state)
	q.Set("response_type", "code")
	q.Set("prompt", "consent")

	http.Redirect(w, r, app.config.jira.authURL+"/authorize?"+q.Encode(), http.StatusFound)
}

func (app *application) jiraCallbackHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.jiraStates.take(r.URL.Query().Get("state"))
	if !ok {
		writeError(w, errors.New("invalid or expired state"), http.StatusUnauthorized)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, errors.New("authorization code not found"), http.StatusBadRequest)
		return
	}

	token, err := app.jiraExchangeCode(code)
	if err != nil {
		serverError(w, err)
		return
	}
	err = app.storage.saveJiraToken(userID, token)
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// jiraExchangeCode trades the authorization code for an access token.
func (app *application) jiraExchangeCode(code string) (string, error) {
	payload := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     app.config.jira.clientID,
		"client_secret": app.config.jira.clientSecret,
		"code":          code,
		"redirect_uri":  app.config.jira.redirectURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, app.config.jira.authURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := app.jiraClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d", res.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err = json.NewDecoder(res.Body).Decode(&out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("token exchange returned no access token")
	}
	return out.AccessToken, nil
}

// jiraProjectsHandler relays the fixed Jira project listing with the stored
// bearer token.
func (app *application) jiraProjectsHandler(w http.ResponseWriter, r *http.Request) {
	u := getUserFromRequest(r)
	token, err := app.storage.getJiraToken(u.ID)
	if err != nil {
		serverError(w, err)
		return
	}
	if token == "" {
		writeError(w, errors.New("jira account is not connected"), http.StatusBadRequest)
		return
	}

	cfg := app.config.jira
	projectsURL := cfg.apiBaseURL + cfg.apiPrefix + cfg.apiVersion + "/project"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, projectsURL, nil)
	if err != nil {
		serverError(w, err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	res, err := app.jiraClient.Do(req)
	if err != nil {
		writeError(w, errors.New("failed to reach jira"), http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		writeError(w, fmt.Errorf("jira returned status %d", res.StatusCode), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, res.Body)
}
