package api

import (
	"database/sql"
	"time"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/recurrence"
)

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}

func roleNames(roles []database.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// ProfileResponse is a user's profile. Email is null when the caller may
// not see it.
type ProfileResponse struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"displayName"`
	Email           *string    `json:"email"`
	AvatarURL       *string    `json:"avatarUrl"`
	ApprovalStatus  string     `json:"approvalStatus"`
	ApprovalActorID *string    `json:"approvedBy"`
	ApprovalAt      *time.Time `json:"approvedAt"`
	Roles           []string   `json:"roles,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toProfileResponse(p *database.Profile, showEmail bool) ProfileResponse {
	resp := ProfileResponse{
		ID:              p.ID,
		DisplayName:     p.DisplayName,
		AvatarURL:       nullableString(p.AvatarURL),
		ApprovalStatus:  string(p.ApprovalStatus),
		ApprovalActorID: nullableString(p.ApprovalActorID),
		ApprovalAt:      nullableTime(p.ApprovalAt),
		CreatedAt:       p.CreatedAt,
	}
	if showEmail {
		email := p.Email
		resp.Email = &email
	}
	if p.Roles != nil {
		resp.Roles = roleNames(p.Roles)
	}
	return resp
}

type RecurrenceResponse struct {
	Type    string  `json:"type"`
	Days    []int   `json:"days"`
	EndDate *string `json:"endDate"`
}

type SessionResponse struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Sport           string             `json:"sport"`
	Location        string             `json:"location"`
	Date            string             `json:"date"`
	StartTime       string             `json:"startTime"`
	EndTime         string             `json:"endTime"`
	Capacity        int                `json:"capacity"`
	BookingCount    int                `json:"bookingCount"`
	CreatorID       string             `json:"creatorId"`
	Cancelled       bool               `json:"cancelled"`
	Recurrence      RecurrenceResponse `json:"recurrence"`
	ParentSessionID *string            `json:"parentSessionId"`
	IsInstance      bool               `json:"isInstance"`
	BookedByMe      bool               `json:"bookedByMe"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func toSessionResponse(sess *database.Session, bookedByMe bool) SessionResponse {
	days := sess.RecurrenceDays
	if days == nil {
		days = []int{}
	}
	return SessionResponse{
		ID:           sess.ID,
		Title:        sess.Title,
		Description:  sess.Description,
		Sport:        sess.Sport,
		Location:     sess.Location,
		Date:         sess.Date,
		StartTime:    sess.StartTime,
		EndTime:      sess.EndTime,
		Capacity:     sess.Capacity,
		BookingCount: sess.BookingCount,
		CreatorID:    sess.CreatorID,
		Cancelled:    sess.Cancelled,
		Recurrence: RecurrenceResponse{
			Type:    sess.RecurrenceType,
			Days:    days,
			EndDate: nullableString(sess.RecurrenceEndDate),
		},
		ParentSessionID: nullableString(sess.ParentSessionID),
		IsInstance:      sess.IsInstance,
		BookedByMe:      bookedByMe,
		CreatedAt:       sess.CreatedAt,
	}
}

func toSessionResponseList(sessions []*database.Session, booked map[string]bool) []SessionResponse {
	out := make([]SessionResponse, len(sessions))
	for i, sess := range sessions {
		out[i] = toSessionResponse(sess, booked[sess.ID])
	}
	return out
}

type BookingResponse struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName,omitempty"`
	ReminderSent bool      `json:"reminderSent"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toBookingResponse(b *database.Booking, userName string) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		SessionID:    b.SessionID,
		UserID:       b.UserID,
		UserName:     userName,
		ReminderSent: b.ReminderSent,
		CreatedAt:    b.CreatedAt,
	}
}

type CommentResponse struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toCommentResponse(c *database.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		SessionID:  c.SessionID,
		UserID:     c.UserID,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

type NotificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID *string   `json:"sessionId"`
	ActorID   *string   `json:"actorId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotificationResponse(n *database.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		SessionID: nullableString(n.SessionID),
		ActorID:   nullableString(n.ActorID),
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

type InviteResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	Used      bool      `json:"used"`
	InvitedBy *string   `json:"invitedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func toInviteResponse(inv *database.Invite) InviteResponse {
	return InviteResponse{
		ID:        inv.ID,
		Email:     inv.Email,
		Code:      inv.Code,
		Used:      inv.Used,
		InvitedBy: nullableString(inv.InvitedBy),
		CreatedAt: inv.CreatedAt,
	}
}

// recurrencePayload is the recurrence block accepted on session creation
// and by the generate endpoint.
type recurrencePayload struct {
	Type    string `json:"type"`
	Days    []int  `json:"days"`
	EndDate string `json:"endDate"`
}

// rule converts the payload into a recurrence.Rule. Validation against the
// parent date happens in the rule itself.
func (p recurrencePayload) rule() (recurrence.Rule, error) {
	typ, ok := recurrence.ParseType(p.Type)
	if !ok {
		return recurrence.Rule{}, recurrence.ErrUnknownType
	}
	days, err := recurrence.Weekdays(p.Days)
	if err != nil {
		return recurrence.Rule{}, err
	}
	end, err := recurrence.ParseDate(p.EndDate)
	if err != nil {
		return recurrence.Rule{}, err
	}
	return recurrence.Rule{Type: typ, Days: days, EndDate: end}, nil
}
