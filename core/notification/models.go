package notification

import "time"

type Type string

const (
	TypeEditRequestCreated  Type = "ATTENDANCE_EDIT_REQUEST_CREATED"
	TypeEditRequestReviewed Type = "ATTENDANCE_EDIT_REQUEST_REVIEWED"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipient_id"`
	Type        Type                   `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IsRead      bool                   `json:"is_read"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Preference holds the delivery channels a user opted into.
type Preference struct {
	UserID    string    `json:"user_id"`
	Email     bool      `json:"email"`
	InApp     bool      `json:"in_app"`
	UpdatedAt time.Time `json:"updated_at"`
}

func DefaultPreference(userID string) Preference {
	return Preference{UserID: userID, Email: true, InApp: true}
}

type UpdatePreference struct {
	Email *bool `json:"email"`
	InApp *bool `json:"in_app"`
}

// Intent describes a notification to deliver.
// Recipients are the union of RecipientIDs and the active users holding one of RecipientRoles.
type Intent struct {
	RecipientIDs   []string
	RecipientRoles []string
	Type           Type
	Title          string
	Message        string
	Metadata       map[string]interface{}
}

type QueryFilter struct {
	UnreadOnly bool `query:"unread"`
}
