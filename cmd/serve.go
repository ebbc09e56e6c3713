package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groupsyncservice/auth"
	"groupsyncservice/internal/audit"
	"groupsyncservice/internal/batch"
	"groupsyncservice/internal/directory"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the group sync HTTP API server",
	Long: `Start the HTTP API server for batch submission and history.

Endpoints:
  POST /v1/api/login        Authenticate an operator, returns a JWT
  POST /v1/api/batches      Submit a membership batch (runs asynchronously)
  GET  /v1/api/sessions/:id Fetch one batch session with its records
  GET  /v1/api/sessions     List sessions for a date (?date=YYYY-MM-DD)
  GET  /v1/api/statistics   Aggregate statistics (?from=&to=, YYYY-MM-DD)
  GET  /health              Health check (always public)

Protected endpoints accept either an x-api-key header matching --api-key
or an Authorization: Bearer token obtained from /v1/api/login.

Environment Variables:
  - GROUPSYNC_BIND_USER / GROUPSYNC_BIND_PASSWORD: directory credential
  - GROUPSYNC_API_KEY: API key for endpoint protection
  - GROUPSYNC_JWT_SECRET: secret for signing session tokens
  - GROUPSYNC_ADMIN_PASSWORD: bootstrap password for the admin account`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().String("api-key", "", "API key for endpoint protection")
	serveCmd.Flags().String("jwt-secret", "", "secret for signing session tokens")
	serveCmd.Flags().Int("session-timeout-hours", 8, "JWT validity in hours")
	serveCmd.Flags().String("output-dir", ".", "directory for CSV audit logs")
	serveCmd.Flags().String("serve-data-dir", defaultDataDir(), "directory for users and session history")
	serveCmd.Flags().String("serve-bind-user", "", "directory bind username")
	serveCmd.Flags().String("serve-bind-password", "", "directory bind password")
	serveCmd.Flags().Int("serve-ldap-port", 389, "directory server port")
}

// apiServer carries the dependencies shared by all HTTP handlers.
type apiServer struct {
	sessions *audit.SessionLogger
	writer   *audit.Writer
	users    *auth.UserStore
	client   directory.Client
	cred     directory.Credential
	batchCfg batch.Config

	apiKey              string
	jwtSecret           string
	sessionTimeoutHours int
}

func runServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	dataDir, _ := cmd.Flags().GetString("serve-data-dir")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	ldapPort, _ := cmd.Flags().GetInt("serve-ldap-port")
	timeoutHours, _ := cmd.Flags().GetInt("session-timeout-hours")

	cred := directory.Credential{
		Username: stringFlagOrEnv(cmd, "serve-bind-user"),
		Password: stringFlagOrEnv(cmd, "serve-bind-password"),
	}
	if cred.Username == "" {
		cred.Username = viper.GetString("bind-user")
		cred.Password = viper.GetString("bind-password")
	}

	apiKey := stringFlagOrEnv(cmd, "api-key")
	jwtSecret := stringFlagOrEnv(cmd, "jwt-secret")
	if jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "WARNING: jwt-secret not set, operator login is disabled")
	}

	sessions, err := audit.NewSessionLogger(dataDir, 90)
	if err != nil {
		return err
	}
	writer, err := audit.NewWriter(outputDir)
	if err != nil {
		return err
	}
	users, err := auth.NewUserStore(dataDir)
	if err != nil {
		return err
	}
	if err := bootstrapAdmin(users); err != nil {
		return err
	}

	srv := &apiServer{
		sessions: sessions,
		writer:   writer,
		users:    users,
		client:   directory.NewLDAPClient(ldapPort, 10*time.Second),
		cred:     cred,
		batchCfg: batch.Config{
			MaxRetries:         viper.GetInt("max-retries"),
			RetryDelaySeconds:  viper.GetInt("retry-delay"),
			ExponentialBackoff: viper.GetBool("exponential-backoff"),
			RetryablePatterns:  batch.DefaultRetryablePatterns,
			ComputerName:       hostName(),
		},
		apiKey:              apiKey,
		jwtSecret:           jwtSecret,
		sessionTimeoutHours: timeoutHours,
	}
	if srv.batchCfg.MaxRetries == 0 {
		srv.batchCfg.MaxRetries = 3
	}
	if srv.batchCfg.RetryDelaySeconds == 0 {
		srv.batchCfg.RetryDelaySeconds = 5
	}

	e := newEcho(srv)

	go func() {
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal(err)
		}
	}()

	fmt.Printf("Group sync API listening on :%d\n", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(ctx)
}

// newEcho builds the echo instance and registers all routes.
func newEcho(srv *apiServer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "x-api-key"},
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health check endpoint (without authentication)
	e.GET("/health", srv.healthHandler)

	api := e.Group("/v1/api")
	api.POST("/login", srv.loginHandler)

	protected := api.Group("", srv.authMiddleware())
	protected.POST("/batches", srv.submitBatchHandler)
	protected.GET("/sessions/:id", srv.getSessionHandler)
	protected.GET("/sessions", srv.listSessionsHandler)
	protected.GET("/statistics", srv.statisticsHandler)

	// Operator account management is restricted to admins.
	protected.POST("/users", srv.createUserHandler, srv.requireAdmin)
	protected.GET("/users", srv.listUsersHandler, srv.requireAdmin)

	return e
}

// bootstrapAdmin creates the initial admin account when the store is empty
// and GROUPSYNC_ADMIN_PASSWORD is set.
func bootstrapAdmin(users *auth.UserStore) error {
	count, err := users.CountUsers()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	password := os.Getenv("GROUPSYNC_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "WARNING: no users exist and GROUPSYNC_ADMIN_PASSWORD is not set, login will fail")
		return nil
	}
	if _, err := users.CreateUser("admin", password, auth.RoleAdmin); err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Created initial admin account")
	return nil
}
