package model

import (
	"context"
	"time"
)

// UserStatus is the account status flag.
type UserStatus int16

const (
	// UserStatusDisabled marks an account that cannot log in.
	UserStatusDisabled UserStatus = 0
	// UserStatusActive marks an account that can log in.
	UserStatusActive UserStatus = 1
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, user User) (User, error)
	UpdateLoginInfo(ctx context.Context, id int64, at time.Time, ip string) error
	UpdateAvatar(ctx context.Context, id int64, avatar string) error
}

// User represents a stored account with its password hash.
type User struct {
	ID            int64
	Username      string
	PasswordHash  string
	Email         string
	Phone         string
	RealName      string
	Avatar        string
	Status        UserStatus
	LastLoginTime *time.Time
	LastLoginIP   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the account may authenticate.
func (u User) Active() bool {
	return u.Status == UserStatusActive
}

// Profile returns the public view of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Phone:         u.Phone,
		RealName:      u.RealName,
		Avatar:        u.Avatar,
		Status:        u.Status,
		LastLoginTime: u.LastLoginTime,
		LastLoginIP:   u.LastLoginIP,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Profile is the user without authentication material.
type Profile struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	RealName      string     `json:"real_name"`
	Avatar        string     `json:"avatar"`
	Status        UserStatus `json:"status"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
