package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes builds the HTTP handler for the whole API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, envelope{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.config.FrontendURL},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		// Identity
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/recover", s.handleRecover)
		r.Get("/auth/google/login", s.handleGoogleLogin)
		r.Get("/auth/google/callback", s.handleGoogleCallback)
		r.Get("/invites/{code}", s.handleCheckInvite)

		// Called by an external scheduler; guarded by REMINDER_SECRET.
		r.Post("/functions/send-reminders", s.handleSendReminders)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.HandleFunc("/functions/admin-users", s.handleAdminUsers)

			r.Get("/notifications/stream", s.handleSSE)
			r.Get("/notifications", s.handleListNotifications)
			r.Post("/notifications/read-all", s.handleMarkAllNotificationsRead)
			r.Post("/notifications/{notificationID}/read", s.handleMarkNotificationRead)
			r.Delete("/notifications/{notificationID}", s.handleDeleteNotification)

			r.Get("/users/me", s.handleGetMyProfile)
			r.Patch("/users/me", s.handleUpdateMyProfile)
			r.Delete("/users/me", s.handleDeleteMyAccount)
			r.Put("/users/me/avatar", s.handleUpdateMyAvatar)
			r.Put("/users/me/password", s.handleChangePassword)

			r.Get("/profiles", s.handleListProfiles)
			r.Get("/profiles/{userID}", s.handleGetProfile)

			r.Get("/admin/invites", s.handleListInvites)
			r.Post("/admin/users/{userID}/approve", s.handleApproveUser)
			r.Post("/admin/users/{userID}/reject", s.handleRejectUser)

			r.Group(func(r chi.Router) {
				r.Use(s.requireApproved)

				r.Get("/sessions", s.handleListSessions)
				r.Post("/sessions", s.handleCreateSession)
				r.Get("/sessions/{sessionID}", s.handleGetSession)
				r.Patch("/sessions/{sessionID}", s.handleUpdateSession)
				r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
				r.Post("/sessions/{sessionID}/cancel", s.handleCancelSession)
				r.Post("/sessions/{sessionID}/recurrence", s.handleGenerateRecurrence)
				r.Delete("/sessions/{sessionID}/instances", s.handleDeleteFutureInstances)

				r.Get("/sessions/{sessionID}/bookings", s.handleListSessionBookings)
				r.Post("/sessions/{sessionID}/bookings", s.handleBookSession)
				r.Delete("/sessions/{sessionID}/bookings", s.handleCancelBooking)
				r.Get("/bookings/me", s.handleListMyBookings)

				r.Get("/sessions/{sessionID}/comments", s.handleListComments)
				r.Post("/sessions/{sessionID}/comments", s.handleCreateComment)
				r.Patch("/comments/{commentID}", s.handleUpdateComment)
				r.Delete("/comments/{commentID}", s.handleDeleteComment)
			})
		})
	})

	return r
}
