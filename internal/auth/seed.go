package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the bootstrap password.
const seedPasswordBytes = 16

// SeedSystemAdmin creates the first system administrator on an empty
// database. The generated password is logged once and must be changed
// immediately. Returns the generated password, or "" if seeding was
// skipped because accounts already exist or no email is configured.
func SeedSystemAdmin(ctx context.Context, credentials *CredentialStore, resolver *Resolver, email, name string, logger *slog.Logger) (string, error) {
	if email == "" {
		return "", nil
	}

	count, err := credentials.count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping system admin seed")
		return "", nil
	}

	password, err := randomHex(seedPasswordBytes)
	if err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	if name == "" {
		name = "System Administrator"
	}

	admin, err := credentials.Create(ctx, RegisterInput{
		Name:                 name,
		Email:                email,
		Password:             password,
		PasswordConfirmation: password,
	})
	if err != nil {
		return "", fmt.Errorf("creating seed system admin: %w", err)
	}

	if err := resolver.AssignRole(ctx, admin.ID, RoleSystemAdmin); err != nil {
		return "", fmt.Errorf("assigning system admin role: %w", err)
	}

	logger.Warn("seed system admin account created",
		"email", admin.Email,
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
