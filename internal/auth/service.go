package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"campus-errands.com/campus-errands/internal/constants"
	apperrors "campus-errands.com/campus-errands/internal/errors"
	model "campus-errands.com/campus-errands/internal/models"
	repository "campus-errands.com/campus-errands/internal/repositories"
)

// Service is the identity provider: sign-up, credential checks and token
// issuance. Everything downstream resolves the caller through the token.
type Service struct {
	users  *repository.UserRepository
	tokens *TokenService
}

func NewService(users *repository.UserRepository, tokens *TokenService) *Service {
	return &Service{users: users, tokens: tokens}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Campuses    []string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.Validation("a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, apperrors.Validation("password must be at least 8 characters")
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		return nil, apperrors.Validation("displayName is required")
	}

	campuses, err := normalizeCampuses(in.Campuses)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.Validation("email is already registered")
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Campuses:     encodeCampuses(campuses),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The pre-check above races with concurrent registrations; the unique
		// index is the real arbiter.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Validation("email is already registered")
		}
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return "", nil, apperrors.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return "", nil, err
	}

	if err := s.users.UpdateLastActive(ctx, user.ID, time.Now().UTC()); err != nil {
		// Login still succeeds; the activity timestamp is advisory.
		return token, user, nil
	}
	return token, user, nil
}

// ProfilePatch enumerates the profile fields a user may change after
// registration. Email and the rating accumulators stay immutable here.
type ProfilePatch struct {
	DisplayName *string
	PhotoURL    *string
	Campuses    []string
}

// UpdateProfile lets a user edit their own profile. Anyone else gets
// Forbidden regardless of what they tried to change.
func (s *Service) UpdateProfile(ctx context.Context, userID, callerID string, patch ProfilePatch) (*model.User, error) {
	if userID != callerID {
		return nil, apperrors.ErrForbidden
	}

	updates := make(map[string]interface{})

	if patch.DisplayName != nil {
		displayName := strings.TrimSpace(*patch.DisplayName)
		if displayName == "" {
			return nil, apperrors.Validation("displayName is required")
		}
		updates["display_name"] = displayName
	}
	if patch.PhotoURL != nil {
		if *patch.PhotoURL == "" {
			updates["photo_url"] = nil
		} else {
			updates["photo_url"] = *patch.PhotoURL
		}
	}
	if patch.Campuses != nil {
		campuses, err := normalizeCampuses(patch.Campuses)
		if err != nil {
			return nil, err
		}
		updates["campuses"] = encodeCampuses(campuses)
	}

	if len(updates) > 0 {
		if err := s.users.UpdateProfile(ctx, userID, updates); err != nil {
			return nil, err
		}
	}
	return s.users.FindByID(ctx, userID)
}

func normalizeCampuses(raw []string) ([]string, error) {
	campuses := make([]string, 0, len(raw))
	for _, c := range raw {
		normalized := strings.ToLower(strings.TrimSpace(c))
		if !constants.ValidCampus(normalized) {
			return nil, apperrors.Validation("unknown campus: " + c)
		}
		campuses = append(campuses, normalized)
	}
	return campuses, nil
}

func encodeCampuses(campuses []string) datatypes.JSON {
	encoded, _ := json.Marshal(campuses)
	return datatypes.JSON(encoded)
}
