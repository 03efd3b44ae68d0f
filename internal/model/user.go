package model

import (
	"time"
)

type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	FirstName    string    `gorm:"size:50;not null" json:"first_name"`
	LastName     string    `gorm:"size:50;not null" json:"last_name"`
	PasswordHash *string   `gorm:"size:255" json:"-"` // Google 登录用户可为空
	GoogleID     *string   `gorm:"column:google_id;size:64;uniqueIndex" json:"-"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
