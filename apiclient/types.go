package apiclient

import (
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-jobportal-client/users"
)

// AuthPayload is returned by login and register.
type AuthPayload struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         *users.User `json:"user"`
}

// UnmarshalJSON accepts the older "token" key for the access token.
func (a *AuthPayload) UnmarshalJSON(data []byte) error {
	type plain AuthPayload
	var p struct {
		plain
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = AuthPayload(p.plain)
	if a.AccessToken == "" {
		a.AccessToken = p.Token
	}
	return nil
}

// TokenPair is returned by the refresh endpoint. RefreshToken is empty when
// the backend does not rotate it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type RegisterRequest struct {
	Email     string         `json:"email"`
	Password  string         `json:"password"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Role      users.RoleType `json:"role"`
	Phone     string         `json:"phone,omitempty"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

type ProfileUpdate struct {
	FirstName    *string `json:"firstName,omitempty"`
	LastName     *string `json:"lastName,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

type Document struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type JobType string

const (
	JobFullTime   JobType = "FULL_TIME"
	JobPartTime   JobType = "PART_TIME"
	JobContract   JobType = "CONTRACT"
	JobInternship JobType = "INTERNSHIP"
)

type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Type        JobType   `json:"type"`
	Salary      string    `json:"salary,omitempty"`
	Description string    `json:"description"`
	EmployerID  string    `json:"employerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type JobQuery struct {
	Search   string
	Location string
	Type     JobType
	Page     int
	Limit    int
}

type JobPage struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationReviewed ApplicationStatus = "REVIEWED"
	ApplicationAccepted ApplicationStatus = "ACCEPTED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

type Application struct {
	ID          string            `json:"id"`
	JobID       string            `json:"jobId"`
	CandidateID string            `json:"candidateId,omitempty"`
	Status      ApplicationStatus `json:"status"`
	CoverLetter string            `json:"coverLetter,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

type Notification struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Type      string          `json:"type,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type SupportRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// RealtimeConfig is the pub/sub key and cluster fetched at runtime.
type RealtimeConfig struct {
	Key     string `json:"key"`
	Cluster string `json:"cluster"`
}

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformOther   Platform = "other"
)
