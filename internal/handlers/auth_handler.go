package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"mathdrill/internal/security"
	"mathdrill/internal/service"
	"mathdrill/internal/validation"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	templates            *template.Template
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, templates *template.Template, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		templates:            templates,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

// loggedIn reports whether the request carries a valid session
func (h *AuthHandler) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie(security.SessionCookieName)
	if err != nil {
		return false
	}
	_, err = h.authService.ValidateSession(cookie.Value)
	return err == nil
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	render(w, h.templates, "login.tmpl", LoginViewData{
		Page:           Page{Title: "Login - MathDrill", Flash: popFlash(w, r)},
		OAuthProviders: h.oauthProviderViews(),
	})
}

// Login handles login form submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	form := validation.LoginForm{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	data := LoginViewData{
		Page:           Page{Title: "Login - MathDrill"},
		OAuthProviders: h.oauthProviderViews(),
		Username:       form.Username,
	}

	if err := validation.Struct(form); err != nil {
		data.Error = err.Error()
		render(w, h.templates, "login.tmpl", data)
		return
	}

	session, _, err := h.authService.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error logging in", err)
			return
		}
		data.Error = "Invalid username or password"
		render(w, h.templates, "login.tmpl", data)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// ShowRegister renders the registration page
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	render(w, h.templates, "register.tmpl", RegisterViewData{
		Page:           Page{Title: "Register - MathDrill"},
		OAuthProviders: h.oauthProviderViews(),
	})
}

// Register handles registration form submission and signs the new user in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	form := validation.RegisterForm{
		Username:        r.FormValue("username"),
		Email:           r.FormValue("email"),
		FirstName:       r.FormValue("first_name"),
		LastName:        r.FormValue("last_name"),
		Password:        r.FormValue("password"),
		PasswordConfirm: r.FormValue("password_confirm"),
	}
	data := RegisterViewData{
		Page:           Page{Title: "Register - MathDrill"},
		OAuthProviders: h.oauthProviderViews(),
		Form:           form,
	}
	data.Form.Password = ""
	data.Form.PasswordConfirm = ""

	if err := validation.Struct(form); err != nil {
		var fieldErrs validation.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error validating registration", err)
			return
		}
		data.Errors = fieldErrs
		render(w, h.templates, "register.tmpl", data)
		return
	}

	_, err := h.authService.Register(r.Context(), service.RegisterInput{
		Username:  form.Username,
		Email:     form.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Password:  form.Password,
	})
	if err != nil {
		var fieldErr validation.ValidationError
		switch {
		case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmailTaken):
			data.Error = err.Error()
		case errors.As(err, &fieldErr):
			data.Errors = validation.ValidationErrors{fieldErr}
		default:
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error registering user", err)
			return
		}
		render(w, h.templates, "register.tmpl", data)
		return
	}

	session, _, err := h.authService.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		setFlash(w, r, FlashSuccess, "Account created. Please log in.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	setFlash(w, r, FlashSuccess, "Welcome to MathDrill!")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout handles logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(security.SessionCookieName); err == nil {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error logging out", err)
			return
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Home sends visitors to the dashboard or the login page
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondWithError(w, http.StatusNotFound, ErrNotFound, "", nil)
		return
	}
	if h.loggedIn(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
