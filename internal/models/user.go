package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the closed set of account kinds.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleDoctor
	RoleUser
)

// ParseRole maps the wire name to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "doctor":
		return RoleDoctor, nil
	case "user":
		return RoleUser, nil
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleDoctor:
		return "doctor"
	case RoleUser:
		return "user"
	case RoleUnknown:
		return ""
	}
	return ""
}

// Label is the human-facing name shown next to a participant.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleDoctor:
		return "Doctor"
	case RoleUser:
		return "Patient"
	case RoleUnknown:
		return "Unknown"
	}
	return "Unknown"
}

// CanChatWith reports whether an account of role r may message a peer.
// assigned tells whether the user/doctor pair has an assignment.
func (r Role) CanChatWith(peer Role, assigned bool) bool {
	switch r {
	case RoleAdmin:
		return peer != RoleUnknown
	case RoleDoctor:
		return peer == RoleUser && assigned
	case RoleUser:
		return peer == RoleDoctor && assigned
	case RoleUnknown:
		return false
	}
	return false
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*r = RoleUnknown
		return nil
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User represents an application account.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	Role           Role      `json:"role"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// PublicUser is the safe representation returned via APIs.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
}

func (u *User) ToPublicUser() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// LoginUserRequest captures login input.
type LoginUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginResponse is the success payload of POST /auth/login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  *PublicUser `json:"user"`
}
