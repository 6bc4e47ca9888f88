// Package apitest runs an in-process fake of the NichePulse remote service.
//
// It implements the envelope contract and the identity, keyword-list, unlock
// and checkout endpoints so the client layer can be exercised end to end
// without the real backend. It is a test double: fixtures are deterministic
// and all state is in memory.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// User is the fake service's account record. The JSON shape matches what the
// production service returns.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	MembershipLevel string `json:"membership_level"`
	Credits         int    `json:"credits"`
	ReferralCode    string `json:"referral_code"`
}

type keywordRecord struct {
	ID             string    `json:"id"`
	Term           string    `json:"term"`
	IsLocked       bool      `json:"is_locked"`
	Highlight      string    `json:"highlight,omitempty"`
	Growth         float64   `json:"growth"`
	Volume         int       `json:"volume"`
	ProfitEstimate float64   `json:"profit_estimate"`
	Category       string    `json:"category"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Server is the fake remote service.
type Server struct {
	// URL is the base URL test clients point at.
	URL string

	hs     *httptest.Server
	secret []byte

	mu        sync.Mutex
	users     map[string]*User            // by ID
	byEmail   map[string]string           // email -> ID
	codes     map[string]string           // one-time login code -> user ID
	emailCode map[string]string           // email -> emailed verification code
	keywords  []keywordRecord             // full records; locked state is the default view
	unlocked  map[string]map[string]bool  // user ID -> keyword ID -> revealed
	requests  map[string]int              // path -> hit count

	// RotateTokens makes every authenticated 2xx response carry a fresh
	// bearer token in the Authorization response header, exercising the
	// client's opportunistic token reconciliation.
	RotateTokens bool

	limiter *rate.Limiter
}

// New starts a fake service with a deterministic keyword catalog: 30 items,
// every third one locked.
func New() *Server {
	s := &Server{
		secret:    []byte("apitest-signing-secret"),
		users:     make(map[string]*User),
		byEmail:   make(map[string]string),
		codes:     make(map[string]string),
		emailCode: make(map[string]string),
		unlocked:  make(map[string]map[string]bool),
		requests:  make(map[string]int),
	}
	s.seedKeywords(30)

	r := mux.NewRouter()
	r.Use(s.countRequests)
	r.Use(s.rateLimit)

	r.HandleFunc("/auth/oauth/begin", s.handleOAuthBegin).Methods(http.MethodPost)
	r.HandleFunc("/auth/exchange", s.handleExchange).Methods(http.MethodPost)
	r.HandleFunc("/auth/email/send", s.handleEmailSend).Methods(http.MethodPost)
	r.HandleFunc("/auth/email/verify", s.handleEmailVerify).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", s.requireAuth(s.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/keywords", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/keywords/live", s.handleLive).Methods(http.MethodGet)
	r.HandleFunc("/keywords/{id}/unlock", s.requireAuth(s.handleUnlock)).Methods(http.MethodPost)
	r.HandleFunc("/billing/checkout", s.requireAuth(s.handleCheckout)).Methods(http.MethodPost)

	s.hs = httptest.NewServer(r)
	s.URL = s.hs.URL
	return s
}

// Close shuts the fake service down.
func (s *Server) Close() {
	s.hs.Close()
}

// =============================================================================
// Fixtures & test hooks
// =============================================================================

// CreateUser seeds an account and returns it.
func (s *Server) CreateUser(email string, credits int) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{
		ID:              uuid.New().String(),
		Email:           email,
		MembershipLevel: "free",
		Credits:         credits,
		ReferralCode:    strings.SplitN(email, "@", 2)[0],
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	s.unlocked[u.ID] = make(map[string]bool)
	return u
}

// CodeFor mints a one-time login code for the user.
func (s *Server) CodeFor(u *User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := uuid.New().String()[:8]
	s.codes[code] = u.ID
	return code
}

// TokenFor mints a bearer token for the user directly.
func (s *Server) TokenFor(u *User) string {
	token, err := s.mintToken(u.ID)
	if err != nil {
		panic(fmt.Sprintf("apitest: mint token: %v", err))
	}
	return token
}

// EmailCodeFor returns the verification code last emailed to the address.
func (s *Server) EmailCodeFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emailCode[email]
}

// Credits returns the user's current balance.
func (s *Server) Credits(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u.Credits
	}
	return 0
}

// Requests returns how many calls the path has received. Tests use this to
// prove a cache HIT made no network call.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// KeywordIDs returns the catalog IDs in order; locked reports each item's
// default locked state.
func (s *Server) KeywordIDs() (ids []string, locked []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keywords {
		ids = append(ids, k.ID)
		locked = append(locked, k.IsLocked)
	}
	return ids, locked
}

// SetRateLimit applies a request rate limit to the whole server.
func (s *Server) SetRateLimit(limit rate.Limit, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = rate.NewLimiter(limit, burst)
}

func (s *Server) seedKeywords(n int) {
	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		k := keywordRecord{
			ID:             fmt.Sprintf("kw-%03d", i),
			Term:           fmt.Sprintf("niche term %d", i),
			IsLocked:       i%3 == 0,
			Growth:         float64(50 + i*7%400),
			Volume:         1000 + i*137,
			ProfitEstimate: float64(100 + i*13),
			Category:       []string{"health", "finance", "hobby"}[i%3],
			UpdatedAt:      base.Add(time.Duration(i) * time.Hour),
		}
		if k.IsLocked {
			k.Highlight = fmt.Sprintf("growing %d%% in %s", 50+i*7%400, k.Category)
		}
		s.keywords = append(s.keywords, k)
	}
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		limiter := s.limiter
		s.mu.Unlock()
		if limiter != nil && !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next func(w http.ResponseWriter, r *http.Request, u *User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.verifyToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		s.mu.Lock()
		u, ok := s.users[userID]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		if s.RotateTokens {
			if rotated, err := s.mintToken(u.ID); err == nil {
				w.Header().Set("Authorization", "Bearer "+rotated)
			}
		}
		next(w, r, u)
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleOAuthBegin(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]string{
		"url": s.URL + "/oauth/authorize?state=" + uuid.New().String(),
	})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	userID, ok := s.codes[req.Code]
	if ok {
		delete(s.codes, req.Code) // one-time use
	}
	u := s.users[userID]
	s.mu.Unlock()

	if !ok || u == nil {
		writeError(w, http.StatusBadRequest, "invalid or expired code")
		return
	}
	s.writeLogin(w, u)
}

func (s *Server) handleEmailSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	if _, ok := s.byEmail[req.Email]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "no account for that email")
		return
	}
	s.emailCode[req.Email] = uuid.New().String()[:6]
	s.mu.Unlock()

	writeMessage(w, "verification code sent")
}

func (s *Server) handleEmailVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	want, ok := s.emailCode[req.Email]
	var u *User
	if ok && want != "" && want == req.Code {
		delete(s.emailCode, req.Email)
		u = s.users[s.byEmail[req.Email]]
	}
	s.mu.Unlock()

	if u == nil {
		writeError(w, http.StatusBadRequest, "invalid verification code")
		return
	}
	s.writeLogin(w, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, u *User) {
	s.mu.Lock()
	copied := *u
	s.mu.Unlock()
	writeData(w, copied)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	viewer := s.viewerFor(r)
	s.mu.Lock()
	items := s.presentKeywords(viewer)
	total := len(items)
	s.mu.Unlock()

	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	writeData(w, map[string]interface{}{
		"items": items[offset:end],
		"total": total,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewerFor(r)
	s.mu.Lock()
	items := s.presentKeywords(viewer)
	s.mu.Unlock()

	if len(items) > 10 {
		items = items[:10]
	}
	writeData(w, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request, u *User) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	var record *keywordRecord
	for i := range s.keywords {
		if s.keywords[i].ID == id {
			record = &s.keywords[i]
			break
		}
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "keyword not found")
		return
	}
	if !record.IsLocked || s.unlocked[u.ID][id] {
		writeError(w, http.StatusConflict, "keyword is already unlocked")
		return
	}
	if u.Credits < 1 {
		writeError(w, http.StatusPaymentRequired, "insufficient credits")
		return
	}

	// Spend exactly one credit and reveal.
	u.Credits--
	s.unlocked[u.ID][id] = true

	revealed := *record
	revealed.IsLocked = false
	revealed.Highlight = ""
	writeData(w, revealed)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, u *User) {
	var req struct {
		PriceID string `json:"price_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "price_id is required")
		return
	}
	writeData(w, map[string]string{
		"url": s.URL + "/checkout/" + uuid.New().String(),
	})
}

// =============================================================================
// Helpers
// =============================================================================

// presentKeywords renders the catalog as the viewer sees it: locked items
// keep only their teaser fields unless the viewer has revealed them.
func (s *Server) presentKeywords(viewer string) []keywordRecord {
	out := make([]keywordRecord, 0, len(s.keywords))
	for _, k := range s.keywords {
		if k.IsLocked && (viewer == "" || !s.unlocked[viewer][k.ID]) {
			out = append(out, keywordRecord{
				ID:        k.ID,
				IsLocked:  true,
				Highlight: k.Highlight,
				Category:  k.Category,
				UpdatedAt: k.UpdatedAt,
			})
			continue
		}
		k.IsLocked = false
		k.Highlight = ""
		out = append(out, k)
	}
	return out
}

// viewerFor resolves the optional bearer token on a public endpoint.
func (s *Server) viewerFor(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	userID, err := s.verifyToken(parts[1])
	if err != nil {
		return ""
	}
	return userID
}

func (s *Server) writeLogin(w http.ResponseWriter, u *User) {
	token, err := s.mintToken(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}
	s.mu.Lock()
	copied := *u
	s.mu.Unlock()
	writeData(w, map[string]interface{}{
		"token": token,
		"user":  copied,
	})
}

func (s *Server) mintToken(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("missing subject")
	}
	return claims.Subject, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeEnvelope(w http.ResponseWriter, status int, env map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusOK, map[string]interface{}{
		"code": 200,
		"data": data,
	})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusOK, map[string]interface{}{
		"code":    200,
		"message": message,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, map[string]interface{}{
		"code":    status,
		"message": message,
	})
}
