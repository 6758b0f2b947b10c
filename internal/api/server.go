package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/auth"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/config"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/notify"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/realtime"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/reminder"
)

// Mailer sends the invitation and credential recovery mails.
type Mailer interface {
	SendInvite(recipient, code, inviterName string) error
	SendRecovery(recipient, token string) error
}

// ReminderRunner performs one reminder dispatch pass.
type ReminderRunner interface {
	Run(ctx context.Context) (reminder.Summary, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	config    *config.Config
	db        *database.Service
	broker    *realtime.Broker
	mailer    Mailer
	notifier  *notify.Notifier
	reminders ReminderRunner
	authz     *auth.Authorizer
	tokens    *auth.TokenIssuer
	oauth     *oauth2.Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewServer wires the handlers to their collaborators. Google login is only
// configured when its client credentials are set.
func NewServer(cfg *config.Config, db *database.Service, broker *realtime.Broker, mailer Mailer,
	notifier *notify.Notifier, reminders ReminderRunner, log zerolog.Logger) *Server {
	s := &Server{
		config:    cfg,
		db:        db,
		broker:    broker,
		mailer:    mailer,
		notifier:  notifier,
		reminders: reminders,
		authz:     auth.NewAuthorizer(db, db.GetDB()),
		tokens:    auth.NewTokenIssuer(cfg.JwtSecret, cfg.TokenTTL),
		log:       log.With().Str("component", "api").Logger(),
		now:       time.Now,
	}
	if cfg.GoogleLoginEnabled() {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleOauthClientID,
			ClientSecret: cfg.GoogleOauthClientSecret,
			RedirectURL:  cfg.GoogleOauthRedirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return s
}

// envelope wraps JSON responses, e.g. envelope{"session": s}.
type envelope map[string]interface{}

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("bad request: body must not be empty")

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}, headers ...http.Header) {
	js, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Internal Server Error: Failed to marshal JSON", http.StatusInternalServerError)
		return
	}

	if len(headers) > 0 {
		for key, value := range headers[0] {
			w.Header()[key] = value
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)
}

// errorJSON writes {"error": "..."}. The status defaults to 500.
func (s *Server) errorJSON(w http.ResponseWriter, err error, status ...int) {
	statusCode := http.StatusInternalServerError
	if len(status) > 0 {
		statusCode = status[0]
	}
	s.writeJSON(w, statusCode, envelope{"error": err.Error()})
}

// serverError logs err with the failing step and answers with a generic
// message. Internal details never reach the caller.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, step string, err error) {
	s.log.Error().Err(err).
		Str("step", step).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	s.errorJSON(w, errors.New("internal server error"), http.StatusInternalServerError)
}

// readJSON decodes the request body into dst. An empty body is reported
// as an error.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("bad request: could not decode JSON: %w", err)
	}
	return nil
}

// today returns the current calendar date in the configured time zone.
func (s *Server) today() string {
	return s.now().In(s.config.Location).Format("2006-01-02")
}
