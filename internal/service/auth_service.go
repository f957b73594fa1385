package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidAccessCode    = errors.New("invalid access code")
	ErrAccessCodeRedeemed   = errors.New("access code already redeemed")
	ErrSessionAlreadyActive = errors.New("another session is already active")
)

// TokenType distinguishes candidate vs admin tokens.
type TokenType string

const (
	TokenTypeCandidate TokenType = "candidate"
	TokenTypeAdmin     TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType  TokenType `json:"token_type"`
	UserID     int       `json:"user_id"`
	DomainID   string    `json:"domain_id,omitempty"`   // Candidate only
	AccessCode string    `json:"access_code,omitempty"` // Candidate only, label part
}

// AuthService handles authentication, JWT, and single-device sessions.
type AuthService struct {
	cfg        *config.Config
	rdb        *redis.Client
	candidates *repository.CandidateRepository
	codes      *repository.AccessCodeRepository
	admins     *repository.AdminRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	cfg *config.Config,
	rdb *redis.Client,
	candidates *repository.CandidateRepository,
	codes *repository.AccessCodeRepository,
	admins *repository.AdminRepository,
) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, candidates: candidates, codes: codes, admins: admins}
}

// HashPassword hashes a secret with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext secret against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// LoginCandidate redeems an access code and issues a candidate token. The
// code format is LABEL-SECRET; the label locates the row, the full code is
// checked against its bcrypt hash, and redemption is atomic so a shared code
// admits exactly one candidate.
func (s *AuthService) LoginCandidate(ctx context.Context, req *model.CandidateLoginRequest) (*model.Candidate, string, error) {
	label, _, found := strings.Cut(req.AccessCode, "-")
	if !found || label == "" {
		return nil, "", ErrInvalidAccessCode
	}

	code, err := s.codes.GetByLabel(ctx, label)
	if err != nil {
		return nil, "", ErrInvalidAccessCode
	}
	if code.RedeemedAt != nil {
		return nil, "", ErrAccessCodeRedeemed
	}
	if code.ExpiresAt != nil && code.ExpiresAt.Before(time.Now()) {
		return nil, "", ErrInvalidAccessCode
	}
	if err := bcrypt.CompareHashAndPassword([]byte(code.CodeHash), []byte(req.AccessCode)); err != nil {
		return nil, "", ErrInvalidAccessCode
	}
	if err := s.codes.Redeem(ctx, code.ID); err != nil {
		if errors.Is(err, repository.ErrCodeAlreadyRedeemed) {
			return nil, "", ErrAccessCodeRedeemed
		}
		return nil, "", fmt.Errorf("redeem access code: %w", err)
	}

	candidate := &model.Candidate{Name: req.Name, Email: req.Email}
	if err := s.candidates.UpsertByEmail(ctx, candidate); err != nil {
		return nil, "", fmt.Errorf("upsert candidate: %w", err)
	}

	token, err := s.generateCandidateToken(ctx, candidate.ID, code.DomainID, code.Label)
	if err != nil {
		return nil, "", err
	}
	return candidate, token, nil
}

// GetCandidate fetches a candidate profile by ID.
func (s *AuthService) GetCandidate(ctx context.Context, candidateID int) (*model.Candidate, error) {
	return s.candidates.GetByID(ctx, candidateID)
}

// GetAdmin fetches an admin profile by ID.
func (s *AuthService) GetAdmin(ctx context.Context, adminID int) (*model.Admin, error) {
	return s.admins.GetByID(ctx, adminID)
}

// LoginAdmin verifies admin credentials and issues an admin token.
func (s *AuthService) LoginAdmin(ctx context.Context, req *model.AdminLoginRequest) (*model.Admin, string, error) {
	admin, err := s.admins.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := s.CheckPassword(admin.PasswordHash, req.Password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.generateAdminToken(admin.ID)
	if err != nil {
		return nil, "", err
	}
	return admin, token, nil
}

// generateCandidateToken creates a JWT for a candidate and registers the
// session in Redis. A second login while a session is live is rejected.
func (s *AuthService) generateCandidateToken(ctx context.Context, candidateID int, domainID uuid.UUID, codeLabel string) (string, error) {
	sessionKey := config.CacheKey.CandidateSessionKey(candidateID)

	existing, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("check session: %w", err)
	}
	if existing != "" {
		return "", ErrSessionAlreadyActive
	}

	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(candidateID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:  TokenTypeCandidate,
		UserID:     candidateID,
		DomainID:   domainID.String(),
		AccessCode: codeLabel,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	// Store session in Redis with same expiry as the JWT.
	if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return signed, nil
}

func (s *AuthService) generateAdminToken(adminID int) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(adminID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeAdmin,
		UserID:    adminID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
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

// ValidateCandidateSession checks that the token's JTI matches the active
// session in Redis.
func (s *AuthService) ValidateCandidateSession(ctx context.Context, candidateID int, jti string) error {
	sessionKey := config.CacheKey.CandidateSessionKey(candidateID)
	stored, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errors.New("no active session")
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return errors.New("session invalidated")
	}
	return nil
}

// ResetCandidateSession removes a candidate's login session from Redis,
// allowing a new login.
func (s *AuthService) ResetCandidateSession(ctx context.Context, candidateID int) error {
	sessionKey := config.CacheKey.CandidateSessionKey(candidateID)
	return s.rdb.Del(ctx, sessionKey).Err()
}
