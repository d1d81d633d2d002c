package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/presh-ai/training-portal/domain"
)

// enrollmentDescription is the text logged with the one-time enrollment
// activity, parameterized with the provider's display name.
const enrollmentDescription = "Joined AI Solution Designer Program via %s OAuth"

// ProvisioningService performs the idempotent get-or-create of user records
// keyed by email.
type ProvisioningService struct {
	users domain.UserRepository
}

// NewProvisioningService creates a new ProvisioningService.
func NewProvisioningService(users domain.UserRepository) *ProvisioningService {
	return &ProvisioningService{users: users}
}

// GetOrCreate returns the user record for email, creating it on first login.
// Creation persists the user together with its enrollment activity; on a
// concurrent-create race the loser re-reads and returns the winner's record.
// Existing records are returned unchanged: name and role are never re-synced
// from the identity provider.
func (s *ProvisioningService) GetOrCreate(
	ctx context.Context,
	email, displayName, providerName string,
) (*domain.User, bool, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, fmt.Errorf("user lookup failed: %w", err)
	}

	if displayName == "" {
		displayName = email
	}

	user = &domain.User{
		Name:             displayName,
		Email:            email,
		Role:             domain.DefaultRole,
		CurrentTrack:     0,
		CurrentModule:    0,
		CompletedModules: []string{},
		Certifications:   []string{},
	}
	activity := &domain.LearningActivity{
		ActivityType: domain.ActivityTypeEnrollment,
		Description:  fmt.Sprintf(enrollmentDescription, providerDisplayName(providerName)),
	}

	err = s.users.CreateUserWithEnrollment(ctx, user, activity)
	if errors.Is(err, domain.ErrEmailTaken) {
		// Lost the race: another request created the record first.
		winner, readErr := s.users.GetUserByEmail(ctx, email)
		if readErr != nil {
			return nil, false, fmt.Errorf("re-read after create conflict failed: %w", readErr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("user provisioning failed: %w", err)
	}

	return user, true, nil
}

// providerDisplayName capitalizes the provider identifier for activity text
// ("google" becomes "Google").
func providerDisplayName(name string) string {
	if name == "" {
		return "OIDC"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
