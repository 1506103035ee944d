package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vellum/infra/seeds"
	"vellum/pkg/db"
	"vellum/services/bundle"
	"vellum/services/portal"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vellumctl",
		Short:         "Operator utility for the vellum submission portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newUsersCommand())
	cmd.AddCommand(newReceiptCommand())
	cmd.AddCommand(newBundleCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func dsnFromEnv() (string, error) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return "", fmt.Errorf("DB_DSN must be set")
	}
	return dsn, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}
			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Ensure bootstrap accounts exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}

			doc, err := seeds.Load()
			if file != "" {
				doc, err = seeds.LoadPath(file)
			}
			if err != nil {
				return err
			}

			orm, err := db.OpenORM(ctx, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.CloseORM(orm) }()

			if err := portal.Seed(ctx, orm, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users\n", len(doc.Users))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Seed document to apply instead of the embedded defaults")
	return cmd
}

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Account management operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newUsersCreateCommand())
	cmd.AddCommand(newUsersVerifyCommand())
	return cmd
}

func newUsersCreateCommand() *cobra.Command {
	var (
		email    string
		fullName string
		role     string
		password string
		verified bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}
			orm, err := db.OpenORM(ctx, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.CloseORM(orm) }()

			user, err := portal.CreateUser(ctx, orm, email, fullName, role, password, verified)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) as %s\n", user.Email, user.ID, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	cmd.Flags().StringVar(&fullName, "name", "", "Account holder's full name")
	cmd.Flags().StringVar(&role, "role", portal.RoleAuthor, "Account role (author, editor, admin)")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().BoolVar(&verified, "verified", false, "Mark the email as already verified")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersVerifyCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Mark an account's email as verified",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dsn, err := dsnFromEnv()
			if err != nil {
				return err
			}
			orm, err := db.OpenORM(ctx, dsn)
			if err != nil {
				return err
			}
			defer func() { _ = db.CloseORM(orm) }()

			user, err := portal.VerifyUserEmail(ctx, orm, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %s\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newReceiptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Receipt operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newReceiptVerifyCommand())
	return cmd
}

func newReceiptVerifyCommand() *cobra.Command {
	var (
		receiptFile   string
		signature     string
		signatureFile string
		publicKey     string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a receipt's detached signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(receiptFile)
			if err != nil {
				return fmt.Errorf("read receipt: %w", err)
			}

			sig := signature
			if sig == "" && signatureFile != "" {
				raw, err := os.ReadFile(signatureFile)
				if err != nil {
					return fmt.Errorf("read signature: %w", err)
				}
				sig = string(raw)
			}
			if sig == "" {
				return fmt.Errorf("--signature or --signature-file is required")
			}

			verifier, err := bundle.NewVerifier(publicKey)
			if err != nil {
				return err
			}
			if err := verifier.Verify(payload, sig, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "receipt signature ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&receiptFile, "file", "", "Path to the receipt text")
	cmd.Flags().StringVar(&signature, "signature", "", "Base64 signature from the receipt response")
	cmd.Flags().StringVar(&signatureFile, "signature-file", "", "File containing the base64 signature")
	cmd.Flags().StringVar(&publicKey, "key", "", "Base64 Ed25519 portal public key")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newBundleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Export bundle operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newBundleVerifyCommand())
	return cmd
}

func newBundleVerifyCommand() *cobra.Command {
	var (
		bundleFile string
		publicKey  string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an export bundle's manifest signature and digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(bundleFile)
			if err != nil {
				return fmt.Errorf("open bundle: %w", err)
			}
			defer f.Close()

			verifier, err := bundle.NewVerifier(publicKey)
			if err != nil {
				return err
			}
			manifest, err := bundle.Verify(f, verifier)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bundle ok: submission %s, %d artifacts, created %s\n",
				manifest.SubmissionID, len(manifest.Artifacts), manifest.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&bundleFile, "file", "", "Path to the bundle tar.zst")
	cmd.Flags().StringVar(&publicKey, "key", "", "Base64 Ed25519 portal public key")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
