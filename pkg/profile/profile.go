package profile

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/store"
	"github.com/sirupsen/logrus"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrAvatarNotFound = errors.New("avatar not found")
	ErrInvalidImage   = errors.New("invalid base64 image format")
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile is the view of a user shown on the profile screen.
type Profile struct {
	UserID        uuid.UUID   `json:"user_id"`
	Name          string      `json:"name"`
	FirstName     string      `json:"first_name"`
	LastName      string      `json:"last_name"`
	Phone         string      `json:"phone"`
	Address       string      `json:"address,omitempty"`
	Role          models.Role `json:"role"`
	AccountNumber string      `json:"account_number"`
	AccountStatus string      `json:"account_status"`
	MemberSince   models.Date `json:"member_since"`
	AvatarURL     string      `json:"avatar_url,omitempty"`
}

// UpdateProfileRequest carries the editable profile fields. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

// Service reads and edits user profiles and avatars.
type Service struct {
	storage  store.Storage
	log      logrus.FieldLogger
	maxBytes int64
	now      func() time.Time
}

// NewService creates a profile Service. Avatars larger than maxBytes are
// rejected; zero disables the limit.
func NewService(s store.Storage, logger logrus.FieldLogger, maxBytes int64) *Service {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Service{
		storage:  s,
		log:      logger,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AccountNumber is the display number of a user account.
func AccountNumber(u *models.User) string {
	if u.Role == models.RoleClient {
		return models.Reference("LA", u.ID)
	}
	return models.Reference("COL", u.ID)
}

func (s *Service) user(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Get returns the profile of userID.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		UserID:        u.ID,
		Name:          u.FullName,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.UserName,
		Address:       u.Address,
		Role:          u.Role,
		AccountNumber: AccountNumber(u),
		AccountStatus: "active",
		MemberSince:   models.Date(u.CreatedAt),
	}

	img, err := s.storage.GetImage(ctx, userID)
	switch {
	case err == nil:
		p.AvatarURL = "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to get avatar: %w", err)
	}
	return p, nil
}

// Update applies req to userID. Address changes only apply to clients.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*Profile, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			return nil, fmt.Errorf("%w: phone cannot be empty", ErrInvalidProfile)
		}
		u.UserName = phone
	}
	if req.Address != nil && u.Role == models.RoleClient {
		u.Address = strings.TrimSpace(*req.Address)
	}
	u.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)

	if err := s.storage.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.log.WithField("user_id", u.ID).Info("profile updated")
	return s.Get(ctx, userID)
}

// UpdateAvatar stores a base64 image, with or without a data URI prefix.
func (s *Service) UpdateAvatar(ctx context.Context, userID uuid.UUID, encoded string) error {
	data, err := decodeImage(encoded)
	if err != nil {
		return err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, s.maxBytes)
	}
	if _, err := s.user(ctx, userID); err != nil {
		return err
	}

	img := &models.Image{
		UserID:      userID,
		Data:        data,
		ContentType: http.DetectContentType(data),
		UpdatedAt:   s.now(),
	}
	if err := s.storage.SaveImage(ctx, img); err != nil {
		return fmt.Errorf("failed to save avatar: %w", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "bytes": len(data)}).Info("avatar updated")
	return nil
}

// Avatar returns the stored avatar of userID.
func (s *Service) Avatar(ctx context.Context, userID uuid.UUID) (*models.Image, error) {
	img, err := s.storage.GetImage(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAvatarNotFound
		}
		return nil, fmt.Errorf("failed to get avatar: %w", err)
	}
	return img, nil
}

func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidImage
	}
	return data, nil
}
