package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
)

const maxCommentLength = 2000

func validateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n == 0 || n > maxCommentLength {
		return "", errors.New("comment must be between 1 and 2000 characters")
	}
	return content, nil
}

// handleListComments returns the comments of a session, oldest first.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	comments, err := s.db.ListComments(s.db.GetDB(), sess.ID)
	if err != nil {
		s.serverError(w, r, "list comments", err)
		return
	}
	out := make([]CommentResponse, len(comments))
	for i, c := range comments {
		out[i] = toCommentResponse(c)
	}
	s.writeJSON(w, http.StatusOK, envelope{"comments": out})
}

// handleCreateComment posts a comment on a session.
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	content, err := validateComment(payload.Content)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	var comment *database.Comment
	err = s.db.Write(func(tx *sql.Tx) error {
		var err error
		comment, err = s.db.CreateComment(tx, sess.ID, s.userID(r), content)
		return err
	})
	if err != nil {
		s.serverError(w, r, "create comment", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, envelope{"comment": toCommentResponse(comment)})
}

func (s *Server) loadComment(w http.ResponseWriter, r *http.Request) (*database.Comment, bool) {
	c, err := s.db.GetComment(s.db.GetDB(), chi.URLParam(r, "commentID"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.errorJSON(w, errors.New("comment not found"), http.StatusNotFound)
			return nil, false
		}
		s.serverError(w, r, "load comment", err)
		return nil, false
	}
	return c, true
}

// handleUpdateComment edits a comment. Only its author may do this.
func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadComment(w, r)
	if !ok {
		return
	}
	if !s.authz.CanEditComment(s.userID(r), c) {
		s.errorJSON(w, errors.New("only the author can edit a comment"), http.StatusForbidden)
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := s.readJSON(w, r, &payload); err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}
	content, err := validateComment(payload.Content)
	if err != nil {
		s.errorJSON(w, err, http.StatusBadRequest)
		return
	}

	err = s.db.Write(func(tx *sql.Tx) error {
		return s.db.UpdateComment(tx, c.ID, content)
	})
	if err != nil {
		s.serverError(w, r, "update comment", err)
		return
	}
	updated, err := s.db.GetComment(s.db.GetDB(), c.ID)
	if err != nil {
		s.serverError(w, r, "reload comment", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"comment": toCommentResponse(updated)})
}

// handleDeleteComment removes a comment. The author, the session organizer
// and admins may delete.
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadComment(w, r)
	if !ok {
		return
	}
	sess, err := s.db.GetSessionByID(s.db.GetDB(), c.SessionID)
	if err != nil {
		s.serverError(w, r, "load comment session", err)
		return
	}
	allowed, err := s.authz.CanDeleteComment(s.userID(r), c, sess)
	if err != nil {
		s.serverError(w, r, "check comment permission", err)
		return
	}
	if !allowed {
		s.errorJSON(w, errors.New("you cannot delete this comment"), http.StatusForbidden)
		return
	}

	err = s.db.Write(func(tx *sql.Tx) error {
		return s.db.DeleteComment(tx, c.ID)
	})
	if err != nil {
		s.serverError(w, r, "delete comment", err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"success": true})
}
