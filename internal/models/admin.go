// internal/models/admin.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Admin struct {
	BaseModel
	Username     string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

func (a *Admin) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hashedPassword)
	return nil
}

func (a *Admin) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
}

type AuditLog struct {
	BaseModel
	Event      string `json:"event" gorm:"size:64;not null;index"`
	LicenseKey string `json:"license_key,omitempty" gorm:"size:64;index"`
	Domain     string `json:"domain,omitempty" gorm:"size:255"`
	Reason     string `json:"reason,omitempty" gorm:"size:64"`
	Details    JSONB  `json:"details,omitempty" gorm:"type:jsonb"`
	IPAddress  string `json:"ip_address,omitempty" gorm:"size:45"`
}
