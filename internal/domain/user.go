package domain

import (
	"time"
)

// UserRole 是系统用户的角色，与地勤岗位（Role）无关
type UserRole string

const (
	UserRolePlanner UserRole = "排班员"
	UserRoleAdmin   UserRole = "管理员"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
