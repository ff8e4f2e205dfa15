package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/ethicsdesk/ethicsdesk/internal/adapter/ldap"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/postgres"
	"github.com/ethicsdesk/ethicsdesk/internal/config"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/service"
)

// runAdmin dispatches admin subcommands (create-user, create-key, list-users,
// directory-search).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "create-key":
		return runAdminCreateKey(args[1:])
	case "list-users":
		return runAdminListUsers(args[1:])
	case "directory-search":
		return runAdminDirectorySearch(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: ethicsdesk admin <command> [options]

Commands:
  create-user       Register a portal user
  create-key        Mint an API key for a user (plaintext printed once)
  list-users        List all registered users
  directory-search  Query the institutional directory
  help              Show this help message

Examples:
  ethicsdesk admin create-user --email sec@example.org --name "Committee Secretary" --role secretary
  ethicsdesk admin create-key --email sec@example.org --name dashboard
  ethicsdesk admin list-users
  ethicsdesk admin directory-search --query "de vries"
`)
}

func loadAdminDeps() (*service.UserService, *service.AuthService, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	userSvc := service.NewUserService(store, nil)
	authSvc := service.NewAuthService(store, apiKeyBcryptCost)

	cleanup := func() { pool.Close() }
	return userSvc, authSvc, cfg, cleanup, nil
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "user email address (required)")
	name := fs.String("name", "", "user display name (required)")
	role := fs.String("role", string(user.RoleApplicant), "role: applicant, supervisor, committee, secretary, admin")
	chamber := fs.String("chamber", "", "committee chamber")
	directoryID := fs.String("directory-id", "", "institutional directory id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	userSvc, _, _, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	u, err := userSvc.Create(context.Background(), &user.CreateRequest{
		DirectoryID: *directoryID,
		Email:       *email,
		Name:        *name,
		Role:        user.Role(*role),
		Chamber:     *chamber,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (%s, %s)\n", u.ID, u.Email, u.Role)
	return nil
}

func runAdminCreateKey(args []string) error {
	fs := flag.NewFlagSet("create-key", flag.ContinueOnError)
	email := fs.String("email", "", "key owner's email address (required)")
	name := fs.String("name", "", "key name, e.g. \"dashboard\" (required)")
	scopes := fs.String("scopes", "", "comma-separated scopes (empty grants all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	userSvc, authSvc, _, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	owner, err := userSvc.GetByEmail(ctx, *email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	req := user.CreateKeyRequest{Name: *name}
	if *scopes != "" {
		req.Scopes = strings.Split(*scopes, ",")
	}
	resp, err := authSvc.CreateAPIKey(ctx, owner.ID, req)
	if err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	fmt.Fprintf(os.Stderr, "API key created for %s.\nThis is the only time the key is shown:\n\n", owner.Email)
	fmt.Println(resp.PlainKey)
	return nil
}

func runAdminListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	userSvc, _, _, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	users, err := userSvc.List(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tCHAMBER\tENABLED")
	for i := range users {
		u := &users[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", u.ID, u.Email, u.Name, u.Role, u.Chamber, u.Enabled)
	}
	return w.Flush()
}

func runAdminDirectorySearch(args []string) error {
	fs := flag.NewFlagSet("directory-search", flag.ContinueOnError)
	query := fs.String("query", "", "free-text name or email query (required)")
	limit := fs.Int("limit", 10, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" {
		return fmt.Errorf("--query is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LDAP.URL == "" {
		return fmt.Errorf("no ldap url configured")
	}

	// The server reads the bind password from config; for ad-hoc queries
	// prompt instead of requiring it in a file.
	if cfg.LDAP.BindDN != "" && cfg.LDAP.BindPassword == "" {
		pw, err := promptPassword(fmt.Sprintf("Bind password for %s: ", cfg.LDAP.BindDN))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		cfg.LDAP.BindPassword = pw
	}

	entries, err := ldap.New(cfg.LDAP).Search(context.Background(), *query, *limit)
	if err != nil {
		return fmt.Errorf("directory search: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Email, e.Name)
	}
	return w.Flush()
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
