package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mathdrill/internal/database"
	"mathdrill/internal/exercise"
	"mathdrill/internal/models"
	"mathdrill/internal/repository"
	"mathdrill/internal/security"
	"mathdrill/internal/service"
)

const testPassword = "correct-horse"

type testServer struct {
	mux          *http.ServeMux
	csrf         *security.CSRFGenerator
	authService  *service.AuthService
	practiceRepo *repository.PracticeRepository
	exerciseRepo *repository.ExerciseRepository
	userRepo     *repository.UserRepository
}

func newTestServer(t *testing.T, limiter *security.RateLimiter) *testServer {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(""))

	templates, err := LoadTemplates("../templates")
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	practiceRepo := repository.NewPracticeRepository(db)
	exerciseRepo := repository.NewExerciseRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	authService := service.NewAuthService(db, userRepo, progressRepo, activityRepo, nil, time.Hour)
	accountService := service.NewAccountService(db, userRepo, progressRepo, activityRepo)
	practiceService := service.NewPracticeService(db, practiceRepo, exerciseRepo, progressRepo, activityRepo, exercise.NewSeededGenerator(7))

	csrf := security.NewCSRFGenerator("test-secret")
	m := NewMiddleware(authService, csrf, limiter)
	auth := NewAuthHandler(authService, templates, nil, "")
	account := NewAccountHandler(accountService, practiceService, m, templates)
	practice := NewPracticeHandler(practiceService, m, templates)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", auth.Home)
	mux.HandleFunc("GET /login", auth.ShowLogin)
	mux.HandleFunc("POST /login", m.RateLimit(auth.Login))
	mux.HandleFunc("GET /register", auth.ShowRegister)
	mux.HandleFunc("POST /register", m.RateLimit(auth.Register))
	mux.HandleFunc("POST /logout", m.RequireAuth(m.CSRFProtect(auth.Logout)))
	mux.HandleFunc("GET /dashboard", m.RequireAuth(account.Dashboard))
	mux.HandleFunc("GET /profile", m.RequireAuth(account.ShowProfile))
	mux.HandleFunc("POST /profile", m.RequireAuth(m.CSRFProtect(account.UpdateProfile)))
	mux.HandleFunc("GET /progress", m.RequireAuth(account.ShowProgress))
	mux.HandleFunc("GET /activity", m.RequireAuth(account.ShowActivity))
	mux.HandleFunc("GET /practice/config", m.RequireAuth(practice.ShowConfig))
	mux.HandleFunc("POST /practice/config", m.RequireAuth(m.CSRFProtect(practice.StartPractice)))
	mux.HandleFunc("GET /practice/solve", m.RequireAuth(practice.ShowSolve))
	mux.HandleFunc("POST /practice/solve", m.RequireAuth(m.CSRFProtect(practice.SubmitAnswer)))
	mux.HandleFunc("GET /practice/results/{id}", m.RequireAuth(practice.ShowResults))
	mux.HandleFunc("GET /practice/history", m.RequireAuth(practice.ShowHistory))

	return &testServer{
		mux:          mux,
		csrf:         csrf,
		authService:  authService,
		practiceRepo: practiceRepo,
		exerciseRepo: exerciseRepo,
		userRepo:     userRepo,
	}
}

// client is a logged-in browser
type client struct {
	user    *models.User
	session *http.Cookie
	csrf    string
}

func (s *testServer) login(t *testing.T, username string) *client {
	t.Helper()
	ctx := context.Background()
	_, err := s.authService.Register(ctx, service.RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Test",
		Password:  testPassword,
	})
	require.NoError(t, err)

	session, user, err := s.authService.Login(ctx, username, testPassword)
	require.NoError(t, err)
	token, err := s.csrf.GenerateToken(session.ID)
	require.NoError(t, err)

	return &client{
		user:    user,
		session: &http.Cookie{Name: security.SessionCookieName, Value: session.ID},
		csrf:    token,
	}
}

func (s *testServer) get(c *client, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if c != nil {
		req.AddCookie(c.session)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

// post submits a form, adding the client's CSRF token unless form sets one
func (s *testServer) post(c *client, path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if c != nil && !form.Has(security.CSRFFieldName) {
		form.Set(security.CSRFFieldName, c.csrf)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c != nil {
		req.AddCookie(c.session)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

// pendingAnswer returns the answer to the question currently shown to user
func (s *testServer) pendingAnswer(t *testing.T, user *models.User) string {
	t.Helper()
	pc, err := s.practiceRepo.GetContext(user.ID)
	require.NoError(t, err)
	require.NotNil(t, pc)
	require.True(t, pc.HasPendingQuestion())

	ex, err := s.exerciseRepo.GetExercise(pc.CurrentExerciseID)
	require.NoError(t, err)
	require.NotNil(t, ex)
	return ex.Answer.String()
}

func (s *testServer) difficultyID(t *testing.T) string {
	t.Helper()
	levels, err := s.exerciseRepo.ListDifficulties()
	require.NoError(t, err)
	require.NotEmpty(t, levels)
	return strconv.FormatInt(levels[0].ID, 10)
}

// responseCookie finds a cookie set on the response
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
