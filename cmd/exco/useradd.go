package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

func useraddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user account",
		RunE:  runUseradd,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("username", "u", "", "Login name (required)")
	f.StringP("password", "p", "", "Password (required)")
	f.String("first-name", "", "First name")
	f.String("last-name", "", "Last name")
	f.String("email", "", "Email address")
	f.StringP("role", "r", string(model.UserRoleStudent), "Role (student, teacher, admin)")

	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runUseradd(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	role := model.UserRole(v.GetString("role"))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	db, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(v.GetString("password")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Username:     v.GetString("username"),
		FirstName:    v.GetString("first-name"),
		LastName:     v.GetString("last-name"),
		Email:        v.GetString("email"),
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := db.CreateUser(ctx, u); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return fmt.Errorf("username %q is already taken", u.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	slog.Info("user created", "id", u.ID, "username", u.Username, "role", u.Role)
	return nil
}
