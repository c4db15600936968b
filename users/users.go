package users

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/jrsteele09/go-jobportal-client/internal/utils"
)

// RoleType is the portal role of a user
type RoleType string

const (
	RoleAdmin     RoleType = "ADMIN"     // Back office staff
	RoleEmployer  RoleType = "EMPLOYER"  // Posts jobs and reviews applications
	RoleCandidate RoleType = "CANDIDATE" // Browses and applies for jobs
)

// ParseRole maps a server supplied role onto a known RoleType. Anything
// unknown or missing resolves to RoleCandidate.
func ParseRole(s string) RoleType {
	switch r := RoleType(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleEmployer, RoleCandidate:
		return r
	}
	return RoleCandidate
}

// Valid reports whether r is one of the known roles.
func (r RoleType) Valid() bool {
	return r == RoleAdmin || r == RoleEmployer || r == RoleCandidate
}

// SelfRegistrable reports whether a user may pick this role when signing up.
func (r RoleType) SelfRegistrable() bool {
	return r == RoleEmployer || r == RoleCandidate
}

type StatusType string

const (
	StatusActive   StatusType = "ACTIVE"
	StatusInactive StatusType = "INACTIVE"
	StatusBanned   StatusType = "BANNED"
)

type User struct {
	ID           string     `json:"id"`                     // Server assigned identifier, never changed locally
	Email        string     `json:"email"`                  // User's email address
	FirstName    string     `json:"firstName"`              // First name of the user
	LastName     string     `json:"lastName"`               // Last name of the user
	Role         RoleType   `json:"role"`                   // Portal role
	Status       StatusType `json:"status,omitempty"`       // Account status
	Phone        *string    `json:"phone,omitempty"`        // Optional phone number
	ProfileImage *string    `json:"profileImage,omitempty"` // Optional avatar URL
}

// UnmarshalJSON normalises the role so a decoded User never carries an
// unknown role.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Role = ParseRole(string(p.Role))
	*u = User(p)
	return nil
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsEmployer() bool {
	return u.Role == RoleEmployer
}

func (u *User) IsCandidate() bool {
	return u.Role == RoleCandidate
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Phone != nil {
		c.Phone = utils.Ptr(*u.Phone)
	}
	if u.ProfileImage != nil {
		c.ProfileImage = utils.Ptr(*u.ProfileImage)
	}
	return &c
}

// Patch is a partial user as returned by profile endpoints. Nil fields were
// absent from the payload.
type Patch struct {
	ID           *string     `json:"id,omitempty"`
	Email        *string     `json:"email,omitempty"`
	FirstName    *string     `json:"firstName,omitempty"`
	LastName     *string     `json:"lastName,omitempty"`
	Role         *string     `json:"role,omitempty"`
	Status       *StatusType `json:"status,omitempty"`
	Phone        *string     `json:"phone,omitempty"`
	ProfileImage *string     `json:"profileImage,omitempty"`
}

// Merge applies p on top of u and returns the result; u is not modified.
// The ID is never replaced once set and the role only changes when the
// patch carries a known role.
func Merge(u *User, p Patch) *User {
	merged := u.Clone()
	if merged == nil {
		merged = &User{Role: RoleCandidate}
	}
	if merged.ID == "" && p.ID != nil {
		merged.ID = *p.ID
	}
	if p.Email != nil {
		merged.Email = *p.Email
	}
	if p.FirstName != nil {
		merged.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		merged.LastName = *p.LastName
	}
	if p.Role != nil {
		if r := RoleType(strings.ToUpper(*p.Role)); r.Valid() {
			merged.Role = r
		}
	}
	if !merged.Role.Valid() {
		merged.Role = RoleCandidate
	}
	if p.Status != nil {
		merged.Status = *p.Status
	}
	if p.Phone != nil {
		merged.Phone = utils.Ptr(*p.Phone)
	}
	if p.ProfileImage != nil {
		merged.ProfileImage = utils.Ptr(*p.ProfileImage)
	}
	return merged
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
