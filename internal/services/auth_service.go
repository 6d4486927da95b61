package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/prudhvinik1/cipherchat/internal/repositories"
	"github.com/prudhvinik1/cipherchat/internal/utils"
	"github.com/sirupsen/logrus"
)

// MaxSessionsPerAddress bounds how many live sessions one wallet holds. A
// login beyond it evicts the oldest.
const MaxSessionsPerAddress = 10

var (
	ErrInvalidCredentials = errors.New("invalid address or signature")
	ErrNoChallenge        = errors.New("no pending challenge for address")
	ErrInvalidToken       = errors.New("invalid token")
)

type AuthService struct {
	challengeRepo repositories.ChallengeRepository
	sessionRepo   repositories.SessionRepository
	jwtSecret     string
	jwtExpiry     time.Duration
	challengeTTL  time.Duration
	chainID       uint64
}

type LoginRequest struct {
	Address   common.Address
	Signature string
}

type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
	Address   common.Address
}

type TokenClaims struct {
	Address   common.Address
	SessionID string
}

func NewAuthService(
	challengeRepo repositories.ChallengeRepository,
	sessionRepo repositories.SessionRepository,
	jwtSecret string,
	jwtExpiry time.Duration,
	challengeTTL time.Duration,
	chainID uint64,
) *AuthService {
	return &AuthService{
		challengeRepo: challengeRepo,
		sessionRepo:   sessionRepo,
		jwtSecret:     jwtSecret,
		jwtExpiry:     jwtExpiry,
		challengeTTL:  challengeTTL,
		chainID:       chainID,
	}
}

// Challenge issues a fresh one-time message for address to sign.
func (s *AuthService) Challenge(ctx context.Context, address common.Address) (*models.Challenge, error) {
	nonce := uuid.New().String()
	challenge := &models.Challenge{
		Address: address,
		Nonce:   nonce,
		Message: ChallengeMessage(address, s.chainID, nonce),
	}

	if err := s.challengeRepo.Put(ctx, challenge, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return challenge, nil
}

// ChallengeMessage is the exact text a wallet signs during login.
func ChallengeMessage(address common.Address, chainID uint64, nonce string) string {
	return fmt.Sprintf("Sign in to cipherchat\nAddress: %s\nChain ID: %d\nNonce: %s", address.Hex(), chainID, nonce)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	// Challenges are single use: taken before verification so a bad
	// signature cannot be retried against the same nonce.
	challenge, err := s.challengeRepo.Take(ctx, req.Address)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNoChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	signer, err := utils.RecoverAddress(challenge.Message, req.Signature)
	if err != nil || signer != req.Address {
		logrus.WithFields(logrus.Fields{
			"address": req.Address.Hex(),
			"signer":  signer.Hex(),
		}).Warn("Rejected login signature")
		return nil, ErrInvalidCredentials
	}

	s.pruneSessions(ctx, req.Address)

	sessionID := uuid.New().String()
	expiresAt := time.Now().Add(s.jwtExpiry)
	session := &models.Session{
		ID:        sessionID,
		Address:   req.Address,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.generateToken(req.Address, sessionID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Address:   req.Address,
	}, nil
}

// pruneSessions drops the oldest sessions of address so that the one about
// to be created keeps it within MaxSessionsPerAddress. Failures only cost
// the cap, never the login.
func (s *AuthService) pruneSessions(ctx context.Context, address common.Address) {
	sessions, err := s.sessionRepo.ListByAddress(ctx, address)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"address": address.Hex(),
			"error":   err.Error(),
		}).Warn("Failed to list sessions")
		return
	}
	if len(sessions) < MaxSessionsPerAddress {
		return
	}

	slices.SortFunc(sessions, func(a, b *models.Session) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, session := range sessions[:len(sessions)-MaxSessionsPerAddress+1] {
		if err := s.sessionRepo.Delete(ctx, session.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logrus.WithFields(logrus.Fields{
				"session_id": session.ID,
				"error":      err.Error(),
			}).Warn("Failed to evict session")
		}
	}
}

func (s *AuthService) generateToken(address common.Address, sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": address.Hex(),
		"jti": sessionID,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || !common.IsHexAddress(sub) {
		return nil, ErrInvalidToken
	}

	sessionID, ok := claims["jti"].(string)
	if !ok || sessionID == "" {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		Address:   common.HexToAddress(sub),
		SessionID: sessionID,
	}, nil
}

// Authenticate verifies the token and that its session has not been logged out.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.Address != claims.Address {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return err
	}

	err = s.sessionRepo.Delete(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		// Already logged out or expired.
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, tokenString string) error {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteAllForAddress(ctx, claims.Address); err != nil {
		return fmt.Errorf("failed to logout all sessions: %w", err)
	}
	return nil
}
