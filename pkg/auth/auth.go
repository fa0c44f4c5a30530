package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid OTP")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrMPINFormat         = errors.New("MPIN must be exactly 4 digits")
	ErrMPINAlreadySet     = errors.New("MPIN already set for this user")
	ErrMPINNotSet         = errors.New("MPIN not set for this user, login with OTP to set MPIN")
)

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Options configures a Service.
type Options struct {
	Secret    string
	TTL       time.Duration
	StaticOTP string
	Cost      int // bcrypt cost, bcrypt.DefaultCost when zero
}

// Service verifies borrowers and staff and issues bearer tokens.
type Service struct {
	storage store.Storage
	log     logrus.FieldLogger
	secret  []byte
	ttl     time.Duration
	otp     string
	cost    int
	now     func() time.Time
}

// NewService creates an auth Service. A nil logger discards log output.
func NewService(s store.Storage, logger logrus.FieldLogger, opts Options) *Service {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	return &Service{
		storage: s,
		log:     logger,
		secret:  []byte(opts.Secret),
		ttl:     opts.TTL,
		otp:     opts.StaticOTP,
		cost:    opts.Cost,
		now:     time.Now,
	}
}

// LoginResult is returned by every step of the login flow.
type LoginResult struct {
	Message           string      `json:"message"`
	UserID            uuid.UUID   `json:"user_id"`
	Role              models.Role `json:"role"`
	RequiresMPINSetup bool        `json:"requires_mpin_setup"`
	Token             string      `json:"token,omitempty"`
	ExpiresAt         *time.Time  `json:"expires_at,omitempty"`
}

// Login looks up the user by mobile number. It never issues a token; the
// caller continues with VerifyOTP or MPINLogin.
func (s *Service) Login(ctx context.Context, mobile string) (*LoginResult, error) {
	user, err := s.storage.GetUserByUserName(ctx, mobile)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &LoginResult{
		Message:           "Login successful.",
		UserID:            user.ID,
		Role:              user.Role,
		RequiresMPINSetup: user.MPINHash == "",
	}, nil
}

// VerifyOTP checks the one-time code. Users without an MPIN are told to create
// one; everyone else receives a token.
func (s *Service) VerifyOTP(ctx context.Context, mobile, otp string) (*LoginResult, error) {
	user, err := s.userByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if otp == "" || otp != s.otp {
		return nil, ErrInvalidOTP
	}
	if user.MPINHash == "" {
		return &LoginResult{
			Message:           "OTP verified. Please create MPIN.",
			UserID:            user.ID,
			Role:              user.Role,
			RequiresMPINSetup: true,
		}, nil
	}
	return s.loggedIn(user, "Login successful.")
}

// CreateMPIN sets the first MPIN of a user who has just verified the OTP.
func (s *Service) CreateMPIN(ctx context.Context, mobile, otp, mpin string) (*LoginResult, error) {
	user, err := s.userByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if otp == "" || otp != s.otp {
		return nil, ErrInvalidOTP
	}
	if user.MPINHash != "" {
		return nil, ErrMPINAlreadySet
	}
	if err := s.setMPIN(ctx, user, mpin); err != nil {
		return nil, err
	}
	return s.loggedIn(user, "MPIN created successfully. Login successful.")
}

// MPINLogin authenticates with mobile number and MPIN.
func (s *Service) MPINLogin(ctx context.Context, mobile, mpin string) (*LoginResult, error) {
	user, err := s.userByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if user.MPINHash == "" {
		return nil, ErrMPINNotSet
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.MPINHash), []byte(mpin)); err != nil {
		s.log.WithField("user_id", user.ID).Warn("MPIN login rejected")
		return nil, ErrInvalidCredentials
	}
	return s.loggedIn(user, "MPIN login successful.")
}

// ChangeMPIN replaces the MPIN of an authenticated user.
func (s *Service) ChangeMPIN(ctx context.Context, userID uuid.UUID, mpin string) error {
	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	return s.setMPIN(ctx, user, mpin)
}

// ValidMPIN reports whether mpin is exactly four digits.
func ValidMPIN(mpin string) bool {
	if len(mpin) != 4 {
		return false
	}
	for _, r := range mpin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) setMPIN(ctx context.Context, user *models.User, mpin string) error {
	if !ValidMPIN(mpin) {
		return ErrMPINFormat
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(mpin), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash MPIN: %w", err)
	}
	user.MPINHash = string(hash)
	if err := s.storage.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to store MPIN: %w", err)
	}
	s.log.WithField("user_id", user.ID).Info("MPIN updated")
	return nil
}

func (s *Service) userByMobile(ctx context.Context, mobile string) (*models.User, error) {
	user, err := s.storage.GetUserByUserName(ctx, mobile)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *Service) loggedIn(user *models.User, message string) (*LoginResult, error) {
	token, expires, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user logged in")
	return &LoginResult{
		Message:   message,
		UserID:    user.ID,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: &expires,
	}, nil
}

// IssueToken signs an HS256 token for user.
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl).UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken verifies a bearer token and returns the identity it carries.
func (s *Service) ParseToken(tokenString string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
	return &Identity{UserID: id, Role: claims.Role}, nil
}
