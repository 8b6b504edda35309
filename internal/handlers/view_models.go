package handlers

import (
	"github.com/shopspring/decimal"

	"mathdrill/internal/models"
	"mathdrill/internal/service"
	"mathdrill/internal/validation"
)

// Page carries what every layout needs
type Page struct {
	Title     string
	User      *models.User
	CSRFToken string
	Flash     *Flash
}

type LoginViewData struct {
	Page
	OAuthProviders []OAuthProviderView
	Error          string
	Username       string
}

type RegisterViewData struct {
	Page
	OAuthProviders []OAuthProviderView
	Error          string
	Errors         validation.ValidationErrors
	Form           validation.RegisterForm
}

type DashboardViewData struct {
	Page
	Dashboard *service.Dashboard
	Active    bool
}

type ProfileViewData struct {
	Page
	Form   validation.ProfileForm
	Grades []Option
	Errors validation.ValidationErrors
	Error  string
}

// OperationRow is one line of a per-operation breakdown
type OperationRow struct {
	Label    string
	Total    int
	Correct  int
	Accuracy decimal.Decimal
}

type ProgressViewData struct {
	Page
	Progress   *models.Progress
	Operations []OperationRow
}

type ActivityViewData struct {
	Page
	Activities []models.ActivityLog
}

// Option is a select option
type Option struct {
	Value    string
	Label    string
	Selected bool
}

type PracticeConfigViewData struct {
	Page
	Difficulties []Option
	Categories   []Option
	Operations   []Option
	Counts       []Option
	Errors       validation.ValidationErrors
	Error        string
}

type PracticeSolveViewData struct {
	Page
	Exercise  *models.Exercise
	Number    int
	Total     int
	Remaining int
	Answer    string
	Error     string
}

type PracticeResultsViewData struct {
	Page
	Results    *service.SessionResults
	Operations []OperationRow
}

type PracticeHistoryViewData struct {
	Page
	History *service.SessionHistory
}
