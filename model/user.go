package model

import "gorm.io/gorm"

// User struct
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"password"`
	Role     string `json:"role"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`

	Otp_enabled bool `gorm:"default:false;"`
	Otp_secret  string
}
