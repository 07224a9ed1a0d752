package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func resetOTPAttemptsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-otp-attempts [phone]",
		Short: "Reset OTP rate limit counters",
		Long: `Reset the OTP send counter for one user, identified by phone number,
or for every user that has one when no phone is given.

Examples:
  campaignctl reset-otp-attempts 9876543210
  campaignctl reset-otp-attempts`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone := ""
			if len(args) == 1 {
				phone = strings.TrimSpace(args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			users := services.NewUserService(db, services.NewPasswordHasher(a.cfg.Argon2), a.logger)
			n, err := users.ResetOTPAttempts(ctx, phone)
			if errors.Is(err, services.ErrUserNotFound) {
				return fmt.Errorf("no user with phone number %s", phone)
			}
			if err != nil {
				return err
			}

			if phone != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "OTP attempts reset for %s\n", phone)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "OTP attempts reset for %d users\n", n)
			}
			a.logger.Info("otp attempts reset", zap.String("phone", phone), zap.Int64("users", n))
			return nil
		},
	}
}

func createAdminCmd(a *app) *cobra.Command {
	var phone, password, name, email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			phone = strings.TrimSpace(phone)
			if err := validator.New().Var(phone, "required,len=10,numeric"); err != nil {
				return errors.New("phone must be a 10-digit number")
			}
			if len(password) < 6 {
				return errors.New("password must be at least 6 characters")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			users := services.NewUserService(db, services.NewPasswordHasher(a.cfg.Argon2), a.logger)
			u, err := users.Create(ctx, services.NewUser{
				PhoneNumber: phone,
				Name:        name,
				Email:       email,
				Password:    password,
				Role:        models.RoleAdmin,
				IsVerified:  true,
			})
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Admin created: %s (%s)\n", u.ID, u.PhoneNumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "10-digit phone number")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.Flags().StringVar(&name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.MarkFlagRequired("phone")
	cmd.MarkFlagRequired("password")

	return cmd
}
