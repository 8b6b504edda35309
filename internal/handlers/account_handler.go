package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"mathdrill/internal/models"
	"mathdrill/internal/service"
	"mathdrill/internal/validation"
)

const birthDateLayout = "2006-01-02"

// AccountHandler serves the dashboard, profile, progress and activity pages
type AccountHandler struct {
	accountService  *service.AccountService
	practiceService *service.PracticeService
	middleware      *Middleware
	templates       *template.Template
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountService *service.AccountService, practiceService *service.PracticeService, middleware *Middleware, templates *template.Template) *AccountHandler {
	return &AccountHandler{
		accountService:  accountService,
		practiceService: practiceService,
		middleware:      middleware,
		templates:       templates,
	}
}

// Dashboard renders the landing page after login
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	dashboard, err := h.accountService.Dashboard(user)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading dashboard", err)
		return
	}
	pc, err := h.practiceService.CurrentContext(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading practice context", err)
		return
	}

	render(w, h.templates, "dashboard.tmpl", DashboardViewData{
		Page:      h.middleware.page(w, r, "Dashboard"),
		Dashboard: dashboard,
		Active:    pc != nil,
	})
}

// ShowProfile renders the profile form
func (h *AccountHandler) ShowProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	profile, err := h.accountService.Profile(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading profile", err)
		return
	}

	form := validation.ProfileForm{
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		GradeLevel: profile.GradeLevel,
	}
	if profile.BirthDate != nil {
		form.BirthDate = profile.BirthDate.Format(birthDateLayout)
	}

	render(w, h.templates, "profile.tmpl", h.profileViewData(w, r, form))
}

// UpdateProfile saves the profile form
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	form := validation.ProfileForm{
		Email:      r.FormValue("email"),
		FirstName:  r.FormValue("first_name"),
		LastName:   r.FormValue("last_name"),
		GradeLevel: int(formInt64(r, "grade_level")),
		BirthDate:  r.FormValue("birth_date"),
	}
	data := h.profileViewData(w, r, form)

	if err := validation.Struct(form); err != nil {
		var fieldErrs validation.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error validating profile", err)
			return
		}
		data.Errors = fieldErrs
		render(w, h.templates, "profile.tmpl", data)
		return
	}

	update := service.ProfileUpdate{
		Email:      form.Email,
		FirstName:  form.FirstName,
		LastName:   form.LastName,
		GradeLevel: form.GradeLevel,
	}
	if form.BirthDate != "" {
		birthDate, err := time.Parse(birthDateLayout, form.BirthDate)
		if err != nil {
			data.Errors = validation.ValidationErrors{{Field: "birth_date", Message: "birth date must be a date (YYYY-MM-DD)"}}
			render(w, h.templates, "profile.tmpl", data)
			return
		}
		update.BirthDate = &birthDate
	}

	err := h.accountService.UpdateProfile(r.Context(), user.ID, update)
	if err != nil {
		var fieldErr validation.ValidationError
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			data.Errors = validation.ValidationErrors{{Field: "email", Message: "email already taken"}}
		case errors.As(err, &fieldErr):
			data.Errors = validation.ValidationErrors{fieldErr}
		default:
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error updating profile", err)
			return
		}
		render(w, h.templates, "profile.tmpl", data)
		return
	}

	setFlash(w, r, FlashSuccess, "Profile updated.")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (h *AccountHandler) profileViewData(w http.ResponseWriter, r *http.Request, form validation.ProfileForm) ProfileViewData {
	data := ProfileViewData{Page: h.middleware.page(w, r, "Profile"), Form: form}
	for grade := models.MinGradeLevel; grade <= models.MaxGradeLevel; grade++ {
		data.Grades = append(data.Grades, Option{
			Value:    strconv.Itoa(grade),
			Label:    "Grade " + strconv.Itoa(grade),
			Selected: grade == form.GradeLevel,
		})
	}
	return data
}

// ShowProgress renders lifetime totals and the per-operation breakdown
func (h *AccountHandler) ShowProgress(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	progress, err := h.accountService.Progress(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading progress", err)
		return
	}

	rows := make([]OperationRow, 0, len(models.Operations))
	for _, op := range models.Operations {
		counter := progress.Counter(op)
		rows = append(rows, OperationRow{
			Label:    op.Label(),
			Total:    counter.Total,
			Correct:  counter.Correct,
			Accuracy: counter.Accuracy(),
		})
	}

	render(w, h.templates, "progress.tmpl", ProgressViewData{
		Page:       h.middleware.page(w, r, "Progress"),
		Progress:   progress,
		Operations: rows,
	})
}

// ShowActivity renders the full activity log
func (h *AccountHandler) ShowActivity(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	activities, err := h.accountService.Activity(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading activity", err)
		return
	}

	render(w, h.templates, "activity.tmpl", ActivityViewData{
		Page:       h.middleware.page(w, r, "Activity"),
		Activities: activities,
	})
}
