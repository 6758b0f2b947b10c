package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

type contextKey string

const userContextKey = contextKey("userID")

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// authMiddleware rejects requests without a valid access token. The token
// is read from the Authorization header, or from the 'token' query
// parameter for EventSource connections that cannot set headers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			s.errorJSON(w, errors.New("authorization token is required"), http.StatusUnauthorized)
			return
		}

		claims, err := s.tokens.Validate(tokenString)
		if err != nil {
			s.errorJSON(w, errors.New("invalid or expired token"), http.StatusUnauthorized)
			return
		}

		// Tokens outlive deleted accounts.
		if _, err := s.db.GetUserByID(s.db.GetDB(), claims.UserID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.errorJSON(w, errors.New("invalid or expired token"), http.StatusUnauthorized)
				return
			}
			s.serverError(w, r, "load token user", err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireApproved lets through approved users and admins only.
func (s *Server) requireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := s.userID(r)
		profile, err := s.db.GetProfile(s.db.GetDB(), userID)
		if err != nil {
			s.serverError(w, r, "load caller profile", err)
			return
		}
		if profile.ApprovalStatus == database.ApprovalApproved {
			next.ServeHTTP(w, r)
			return
		}
		isAdmin, err := s.authz.IsAdmin(userID)
		if err != nil {
			s.serverError(w, r, "check admin role", err)
			return
		}
		if !isAdmin {
			s.errorJSON(w, errors.New("your account is awaiting approval"), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one access log line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// userID returns the authenticated caller. Only valid behind authMiddleware.
func (s *Server) userID(r *http.Request) string {
	id, _ := r.Context().Value(userContextKey).(string)
	return id
}
