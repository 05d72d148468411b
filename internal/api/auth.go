package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

var errNotGuildMember = errors.New("not a member of the configured guild")

// ClaimsFrom returns the authenticated user of a write request, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Auth handlers
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.config.OAuthEnabled() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "login is not configured"})
		return
	}
	state := generateRandomString(32)
	url := a.oauthConfig.AuthCodeURL(state)

	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": url,
		"state":    state,
	})
}

func (a *API) authenticateUser(ctx context.Context, code string) (string, error) {
	// Exchange code for token
	token, err := a.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	// Get user info
	user, err := a.getDiscordUser(ctx, token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if a.config.DiscordGuildID != "" {
		member, err := a.userInGuild(ctx, token.AccessToken, a.config.DiscordGuildID)
		if err != nil {
			return "", fmt.Errorf("failed to get guilds: %w", err)
		}
		if !member {
			return "", errNotGuildMember
		}
	}

	return a.issueToken(user.ID, getUsername(user))
}

func (a *API) issueToken(userID, username string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := jwtToken.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return tokenString, nil
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	tokenString, err := a.authenticateUser(r.Context(), code)
	if err != nil {
		a.log.Warn("login failed", "error", err)
		// Redirect to the page with error
		errorType := "authentication_failed"
		switch {
		case errors.Is(err, errNotGuildMember):
			errorType = "not_guild_member"
		case strings.Contains(err.Error(), "token exchange"):
			errorType = "token_exchange_failed"
		case strings.Contains(err.Error(), "failed to get user"):
			errorType = "failed_to_get_user"
		}
		http.Redirect(w, r, "/?login_error="+errorType, http.StatusSeeOther)
		return
	}

	// Token travels in the URL fragment so it never reaches server logs
	http.Redirect(w, r, "/#token="+tokenString, http.StatusSeeOther)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// Middleware
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return a.jwtSecret, nil
		})

		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
