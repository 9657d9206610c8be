package store

import (
	"context"
	"errors"
	"fmt"

	"medchat/internal/models"
)

// DemoAccount is a development login created by Seed.
type DemoAccount struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// DemoAccounts are the logins the development server starts with. The
// doctor is assigned to the first patient only.
var DemoAccounts = []DemoAccount{
	{Username: "admin", Email: "admin@medchat.local", Password: "admin123", Role: models.RoleAdmin},
	{Username: "dr_grey", Email: "grey@medchat.local", Password: "doctor123", Role: models.RoleDoctor},
	{Username: "patient_ann", Email: "ann@medchat.local", Password: "patient123", Role: models.RoleUser},
	{Username: "patient_bob", Email: "bob@medchat.local", Password: "patient123", Role: models.RoleUser},
}

// Seed creates the demo accounts that do not exist yet and assigns
// dr_grey to patient_ann. hash turns a password into its stored form.
func Seed(ctx context.Context, users UserStore, assignments AssignmentStore, hash func(string) (string, error)) error {
	ids := map[string]int64{}
	for _, acc := range DemoAccounts {
		existing, err := users.GetUserByUsername(ctx, acc.Username)
		if err == nil {
			ids[acc.Username] = existing.ID
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return fmt.Errorf("Seed: %w", err)
		}

		hashed, err := hash(acc.Password)
		if err != nil {
			return fmt.Errorf("Seed: hashing password for %s: %w", acc.Username, err)
		}
		u := &models.User{Username: acc.Username, Email: acc.Email, Role: acc.Role, HashedPassword: hashed}
		if err := users.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("Seed: creating %s: %w", acc.Username, err)
		}
		ids[acc.Username] = u.ID
	}

	if err := assignments.Assign(ctx, ids["dr_grey"], ids["patient_ann"]); err != nil {
		return fmt.Errorf("Seed: %w", err)
	}
	return nil
}
