// Package auth registers users, checks passwords and issues the signed tokens
// every other endpoint trusts.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"folio/internal/apperr"
	"folio/internal/models"
	"folio/internal/repository"
)

const minPasswordLen = 8

type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type Service struct {
	Repo   repository.UserRepository
	JWT    JWT
	Logger *zap.Logger
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func (s *Service) Register(ctx context.Context, email, name, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperr.E(apperr.InvalidInput, "a valid email is required")
	}
	if name == "" {
		return nil, apperr.E(apperr.InvalidInput, "name is required")
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Errorf(apperr.InvalidInput, "password must be at least %d characters", minPasswordLen)
	}

	existing, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load user", err)
	}
	if existing != nil {
		return nil, apperr.E(apperr.Conflict, "email already registered")
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "hash password", err)
	}
	u := &models.User{Email: email, Name: name, PasswordHash: string(hash)}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.E(apperr.Conflict, "email already registered")
		}
		return nil, apperr.Wrap(apperr.Internal, "create user", err)
	}
	s.logger().Info("user registered", zap.Uint64("user_id", u.ID))
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load user", err)
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.E(apperr.Unauthenticated, "invalid email or password")
	}
	return s.issue(u)
}

func (s *Service) issue(u *models.User) (*Session, error) {
	tok, exp, err := s.JWT.Sign(Claims{UserID: u.ID, Email: u.Email})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "sign token", err)
	}
	return &Session{User: u, Token: tok, ExpiresAt: exp}, nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
