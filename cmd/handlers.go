package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"groupsyncservice/auth"
	"groupsyncservice/internal/batch"
	"groupsyncservice/internal/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

type batchRequest struct {
	Requests []domain.MembershipRequest `json:"requests"`
	TestMode bool                       `json:"test_mode"`
}

type batchResponse struct {
	SessionID string `json:"session_id"`
	Accepted  int    `json:"accepted"`
	TestMode  bool   `json:"test_mode"`
}

func (s *apiServer) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// loginHandler authenticates an operator account and issues a JWT.
func (s *apiServer) loginHandler(c echo.Context) error {
	if s.jwtSecret == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Login is disabled: no JWT secret configured")
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	}

	user, err := s.users.Authenticate(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		return echo.NewHTTPError(http.StatusForbidden, "Account is locked")
	case err != nil:
		// Generic message so responses do not reveal which accounts exist.
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid username or password")
	}

	token, err := auth.GenerateToken(*user, s.jwtSecret, s.sessionTimeoutHours)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		Role:      user.Role,
		ExpiresIn: s.sessionTimeoutHours * 3600,
	})
}

// submitBatchHandler accepts a membership batch and runs it asynchronously.
// The response carries the session ID for polling GET /v1/api/sessions/:id.
func (s *apiServer) submitBatchHandler(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if len(req.Requests) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "At least one membership request is required")
	}
	for i, r := range req.Requests {
		if err := r.Validate(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Request %d: %s", i, err.Error()))
		}
	}
	if s.cred.Username == "" || s.cred.Password == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "No directory credential configured")
	}

	cfg := s.batchCfg
	cfg.TestMode = req.TestMode
	cfg.ProcessedBy = requestUsername(c)

	processor, err := batch.New(s.client, s.cred, cfg)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	session, err := s.sessions.StartSession(cfg.ProcessedBy, cfg.ComputerName, "api", len(req.Requests), cfg.TestMode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	processor.OnRecord = func(record domain.OperationRecord) {
		if !record.IsSummary() {
			_ = s.sessions.RecordOperation(session.ID, record)
		}
	}

	go s.runBatchSession(session.ID, processor, req.Requests)

	return c.JSON(http.StatusAccepted, batchResponse{
		SessionID: session.ID,
		Accepted:  len(req.Requests),
		TestMode:  req.TestMode,
	})
}

// runBatchSession executes a submitted batch in the background, completing
// the session and persisting the CSV audit log when done.
func (s *apiServer) runBatchSession(sessionID string, processor *batch.Processor, requests []domain.MembershipRequest) {
	result, err := processor.Run(context.Background(), requests)
	if err != nil {
		_ = s.sessions.FailSession(sessionID, err.Error())
		return
	}
	_ = s.sessions.CompleteSession(sessionID, result.Summary)
	if _, warn, err := s.writer.Persist(result.Records); err != nil {
		_ = s.sessions.FailSession(sessionID, err.Error())
	} else if warn != nil {
		fmt.Printf("Warning: %v\n", warn)
	}
}

// getSessionHandler returns one batch session including its records.
func (s *apiServer) getSessionHandler(c echo.Context) error {
	session, err := s.sessions.GetSession(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	return c.JSON(http.StatusOK, session)
}

// listSessionsHandler returns the daily summary for a date, defaulting to today.
func (s *apiServer) listSessionsHandler(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	summary, err := s.sessions.GetDailySummary(date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

// statisticsHandler returns aggregate statistics over a date range,
// defaulting to the last 30 days.
func (s *apiServer) statisticsHandler(c echo.Context) error {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		to = parsed
	}

	stats, err := s.sessions.GetStatistics(from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// userView is the account representation returned by the API; it never
// carries the password hash.
type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Locked   bool   `json:"locked"`
}

// createUserHandler creates a new operator account. Admin only.
func (s *apiServer) createUserHandler(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Role == "" {
		req.Role = auth.RoleOperator
	}
	if req.Role != auth.RoleAdmin && req.Role != auth.RoleOperator {
		return echo.NewHTTPError(http.StatusBadRequest, "Role must be admin or operator")
	}
	if err := auth.ValidatePassword(req.Password, 8); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := s.users.CreateUser(req.Username, req.Password, req.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, userView{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
}

// listUsersHandler lists all operator accounts. Admin only.
func (s *apiServer) listUsersHandler(c echo.Context) error {
	users, err := s.users.ListUsers()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views := make([]userView, 0, len(users))
	for _, user := range users {
		views = append(views, userView{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
			Locked:   user.Locked,
		})
	}
	return c.JSON(http.StatusOK, views)
}
