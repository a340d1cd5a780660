package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/earlyreg-backend/internal/config"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/repository"
	"github.com/stemsi/earlyreg-backend/internal/rules"
)

// Common auth errors.
var (
	ErrInvalidStudentID     = errors.New("student id must be 8 digits starting with 69")
	ErrStudentNotFound      = errors.New("student id not found")
	ErrAgeRequirement       = errors.New("student must be at least 15 years old")
	ErrSessionAlreadyActive = errors.New("another session is already active")
	ErrSessionInvalidated   = errors.New("session invalidated")
)

// TokenType distinguishes token audiences. Only students log in today.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	StudentID string    `json:"student_id"`
}

// SessionStore keeps the single active session per student.
// *repository.SessionRepository implements it.
type SessionStore interface {
	Create(ctx context.Context, studentID, jti string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, studentID string) (string, error)
	Delete(ctx context.Context, studentID string) error
}

// StudentDirectory looks students up by id. *store.Store implements it.
type StudentDirectory interface {
	GetStudent(id string) (model.Student, bool)
}

// AuthService handles student login, JWT, and session management.
type AuthService struct {
	cfg      *config.Config
	sessions SessionStore
	students StudentDirectory
	clock    rules.Clock
}

// NewAuthService creates a new AuthService. A nil clock means the system clock.
func NewAuthService(cfg *config.Config, sessions SessionStore, students StudentDirectory, clock rules.Clock) *AuthService {
	if clock == nil {
		clock = rules.SystemClock{}
	}
	return &AuthService{cfg: cfg, sessions: sessions, students: students, clock: clock}
}

// Authenticate checks the id format, that the student exists and is old
// enough, then issues a JWT and registers the session.
// A second login while a session is active is rejected.
func (s *AuthService) Authenticate(ctx context.Context, studentID string) (string, model.Student, error) {
	studentID = strings.TrimSpace(studentID)
	if !model.ValidStudentID(studentID) {
		return "", model.Student{}, ErrInvalidStudentID
	}

	student, ok := s.students.GetStudent(studentID)
	if !ok {
		return "", model.Student{}, ErrStudentNotFound
	}
	if !student.MeetsAgeRequirement(s.clock.Now()) {
		return "", model.Student{}, ErrAgeRequirement
	}

	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   student.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeStudent,
		StudentID: student.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", model.Student{}, fmt.Errorf("sign token: %w", err)
	}

	// Session lives as long as the JWT.
	created, err := s.sessions.Create(ctx, student.ID, jti, s.cfg.JWTExpiry)
	if err != nil {
		return "", model.Student{}, fmt.Errorf("store session: %w", err)
	}
	if !created {
		return "", model.Student{}, ErrSessionAlreadyActive
	}

	return signed, student, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateStudentSession checks that the token's JTI matches the active session.
func (s *AuthService) ValidateStudentSession(ctx context.Context, studentID, jti string) error {
	stored, err := s.sessions.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// Logout removes a student's session, allowing a new login.
func (s *AuthService) Logout(ctx context.Context, studentID string) error {
	return s.sessions.Delete(ctx, studentID)
}
