package models

import "time"

// User is a storefront customer identified by a verified phone number.
type User struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PhoneNumber       string    `gorm:"column:phone_number;type:varchar(20);not null;uniqueIndex:users_phone_number_key"`
	FirstName         *string   `gorm:"column:first_name;type:varchar(100)"`
	LastName          *string   `gorm:"column:last_name;type:varchar(100)"`
	IsProfileComplete bool      `gorm:"column:is_profile_complete;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// VerificationCode is a one-time login code sent to a phone number. Only the hash is stored.
type VerificationCode struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PhoneNumber string    `gorm:"column:phone_number;type:varchar(20);not null;index"`
	CodeHash    string    `gorm:"column:code_hash;not null"`
	IsUsed      bool      `gorm:"column:is_used;not null;default:false"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
