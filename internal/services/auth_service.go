// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/licensehub/license-server/internal/config"
	"github.com/licensehub/license-server/internal/database"
	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/utils"
)

type AuthService struct {
	db    *gorm.DB
	cfg   *config.Config
	audit AuditSink
	now   func() time.Time
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Admin       *models.Admin `json:"admin"`
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int           `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg *config.Config, audit AuditSink) *AuthService {
	if audit == nil {
		audit = MultiAuditSink{}
	}
	return &AuthService{
		db:    db,
		cfg:   cfg,
		audit: audit,
		now:   time.Now,
	}
}

// Login checks the admin's password and issues an access token. Unknown users
// and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var admin models.Admin
	if err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.loginFailed(ctx, req.Username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := admin.CheckPassword(req.Password); err != nil {
		s.loginFailed(ctx, req.Username)
		return nil, ErrInvalidCredentials
	}

	ttl := s.cfg.AccessTokenTTL()
	token, err := utils.GenerateJWT(admin.ID, admin.Username, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := s.now().UTC()
	admin.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&admin).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	s.audit.Record(ctx, AuditEvent{
		Event:  EventLoginSuccess,
		Fields: map[string]interface{}{"username": admin.Username},
		At:     now,
	})

	return &AuthResponse{
		Admin:       &admin,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username string) {
	s.audit.Record(ctx, AuditEvent{
		Event:  EventLoginFailed,
		Reason: "invalid_credentials",
		Fields: map[string]interface{}{"username": username},
		At:     s.now(),
	})
}

// CreateAdmin seeds an admin account. Without force it refuses once any
// admin exists.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string, force bool) (*models.Admin, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	return database.SeedAdmin(s.db.WithContext(ctx), username, password, force)
}
