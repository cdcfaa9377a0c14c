package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/google/uuid"
)

type AuthService struct {
	Users    *UserStore
	Tokens   *TokenManager
	Sessions *SessionStore
	Logger   *logger.Logger
}

func NewAuthService(users *UserStore, tokens *TokenManager, sessions *SessionStore, log *logger.Logger) *AuthService {
	return &AuthService{Users: users, Tokens: tokens, Sessions: sessions, Logger: log}
}

// Register creates a pescador account and signs it in. Other roles are
// assigned out of band.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenPair, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return nil, apperrors.BadRequest("email, password and full_name are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, apperrors.BadRequest("email is not a valid email address")
	}

	existing, err := s.Users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("An account with this email already exists")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("%s", err.Error())
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     req.FullName,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Role:         models.RolePescador,
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.Logger.Info("AUTH", fmt.Sprintf("Registered user %s", user.ID))
	return s.issuePair(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperrors.BadRequest("email and password are required")
	}

	user, err := s.Users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.Logger.LogSecurity("LOGIN_FAILED", "unknown email")
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	ok, err := CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad password for user %s", user.ID))
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	return s.issuePair(ctx, user)
}

// Refresh rotates a refresh token: the old one is spent and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.BadRequest("refresh_token is required")
	}

	userID, err := s.Sessions.ConsumeRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		s.Logger.LogSecurity("REFRESH_REJECTED", "unknown or reused refresh token")
		return nil, apperrors.Unauthorized("Invalid or expired refresh token")
	}

	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.Unauthorized("Invalid or expired refresh token")
	}

	return s.issuePair(ctx, user)
}

// Logout revokes the presented access token and, if given, its refresh session.
func (s *AuthService) Logout(ctx context.Context, claims *Claims, refreshToken string) error {
	if claims != nil && claims.ExpiresAt != nil {
		if err := s.Sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := s.Sessions.DeleteRefresh(ctx, refreshToken); err != nil {
			return err
		}
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("User not found")
	}
	return user, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	access, _, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Sessions.CreateRefresh(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.Tokens.AccessTTL().Seconds()),
		User:         user,
	}, nil
}
