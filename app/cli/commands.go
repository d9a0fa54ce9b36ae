package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cvitapilot/cvitapilot/config"
	"github.com/cvitapilot/cvitapilot/internal/cvstate"
	"github.com/cvitapilot/cvitapilot/internal/logger"
	"github.com/cvitapilot/cvitapilot/internal/models"
	pgrepo "github.com/cvitapilot/cvitapilot/internal/repositories/postgres"
	"github.com/cvitapilot/cvitapilot/internal/render"
	"github.com/cvitapilot/cvitapilot/internal/services"
)

// postgres opens the relational store shared by every command.
func postgres() (*config.Config, *logrus.Logger, error) {
	cfg := config.Load()
	log := logger.New()
	if err := config.InitPostgres(cfg.PostgresURI); err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	return cfg, log, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the relational schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := postgres()
			if err != nil {
				return err
			}
			if err := config.Migrate(config.PostgresDB); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete unverified accounts past their grace period and expired tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := postgres()
			if err != nil {
				return err
			}
			svc := services.NewCleanupService(
				pgrepo.NewUserRepo(config.PostgresDB),
				pgrepo.NewTokenRepo(config.PostgresDB),
				cfg.UnverifiedAccountTTL,
				log,
			)
			rep, err := svc.Run(cmd.Context(), time.Now(), dryRun)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(rep)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only count what would be deleted")
	return cmd
}

func renderCmd() *cobra.Command {
	var (
		cvID  string
		out   string
		paper string
		html  bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a stored CV to PDF (or print HTML) on disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := postgres()
			if err != nil {
				return err
			}
			opts := models.ExportOptions{PaperSize: paper}.Normalized()

			cv, err := pgrepo.NewCVRepo(config.PostgresDB).Get(cmd.Context(), cvID)
			if err != nil {
				return fmt.Errorf("load cv %s: %w", cvID, err)
			}
			tpl, err := render.NewHTMLRenderer()
			if err != nil {
				return err
			}
			page, err := tpl.RenderBytes(cvstate.Selected(cv), render.Options{Paper: opts.PaperSize, AutoPrint: html})
			if err != nil {
				return err
			}
			if out == "" {
				out = render.FileName(cv)
				if html {
					out = out[:len(out)-len(".pdf")] + ".html"
				}
			}
			if html {
				return os.WriteFile(out, page, 0o644)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			pdf, err := render.NewChromedpRenderer(cfg.ChromePath).RenderPDF(ctx, page, opts.PaperSize)
			if err != nil {
				return fmt.Errorf("render pdf (retry with --html for the print page): %w", err)
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&cvID, "cv", "", "CV id")
	cmd.Flags().StringVar(&out, "out", "", "output file (defaults to First_Last_CV.pdf)")
	cmd.Flags().StringVar(&paper, "paper", models.PaperA4, "paper size: A4 or Letter")
	cmd.Flags().BoolVar(&html, "html", false, "write the print-ready HTML instead of a PDF")
	_ = cmd.MarkFlagRequired("cv")
	return cmd
}

func promoteCmd() *cobra.Command {
	var (
		email  string
		revoke bool
	)
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant (or with --revoke, remove) the admin role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := postgres()
			if err != nil {
				return err
			}
			if email == "" {
				return errors.New("--email is required")
			}
			role := models.RoleAdmin
			if revoke {
				role = models.RoleUser
			}
			// only the user repository is touched by SetRole
			svc := services.NewUserService(services.UserDeps{
				Users:  pgrepo.NewUserRepo(config.PostgresDB),
				Logger: log,
			})
			u, err := svc.SetRole(cmd.Context(), email, role)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("role updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "demote to a regular user")
	return cmd
}
