package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"mathdrill/internal/exercise"
	"mathdrill/internal/models"
	"mathdrill/internal/service"
	"mathdrill/internal/validation"
)

// ExerciseCounts are the session lengths offered on the config page
var ExerciseCounts = []int{5, 10, 15, 20}

// PracticeHandler handles the configure, solve, results and history pages
type PracticeHandler struct {
	practiceService *service.PracticeService
	middleware      *Middleware
	templates       *template.Template
}

// NewPracticeHandler creates a new practice handler
func NewPracticeHandler(practiceService *service.PracticeService, middleware *Middleware, templates *template.Template) *PracticeHandler {
	return &PracticeHandler{
		practiceService: practiceService,
		middleware:      middleware,
		templates:       templates,
	}
}

// ShowConfig renders the practice configuration form
func (h *PracticeHandler) ShowConfig(w http.ResponseWriter, r *http.Request) {
	data, err := h.configViewData(w, r, validation.PracticeConfigForm{
		Operation: string(models.OperationAll),
		Count:     ExerciseCounts[1],
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading practice options", err)
		return
	}
	render(w, h.templates, "practice_config.tmpl", data)
}

// StartPractice validates the configuration, opens a session and moves on to
// the first question
func (h *PracticeHandler) StartPractice(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	form := validation.PracticeConfigForm{
		CategoryID:   formInt64(r, "category"),
		DifficultyID: formInt64(r, "difficulty"),
		Operation:    strings.TrimSpace(r.FormValue("operation_type")),
		Count:        int(formInt64(r, "exercise_count")),
	}

	if err := validation.Struct(form); err != nil {
		h.rerenderConfig(w, r, form, err)
		return
	}

	_, session, err := h.practiceService.Start(r.Context(), user.ID, service.StartRequest{
		CategoryID:   form.CategoryID,
		DifficultyID: form.DifficultyID,
		Operation:    models.Operation(form.Operation),
		Count:        form.Count,
	})
	switch {
	case errors.Is(err, service.ErrUnknownDifficulty):
		h.rerenderConfig(w, r, form, validation.ValidationErrors{{Field: "difficulty", Message: "select a difficulty level"}})
		return
	case errors.Is(err, service.ErrUnknownCategory):
		h.rerenderConfig(w, r, form, validation.ValidationErrors{{Field: "category", Message: "select a category"}})
		return
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error starting practice session", err)
		return
	}

	log.Printf("User %d started practice session %d", user.ID, session.ID)
	http.Redirect(w, r, "/practice/solve", http.StatusSeeOther)
}

func (h *PracticeHandler) rerenderConfig(w http.ResponseWriter, r *http.Request, form validation.PracticeConfigForm, err error) {
	data, loadErr := h.configViewData(w, r, form)
	if loadErr != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading practice options", loadErr)
		return
	}

	var fieldErrs validation.ValidationErrors
	if errors.As(err, &fieldErrs) {
		data.Errors = fieldErrs
	} else {
		data.Error = err.Error()
	}
	render(w, h.templates, "practice_config.tmpl", data)
}

func (h *PracticeHandler) configViewData(w http.ResponseWriter, r *http.Request, form validation.PracticeConfigForm) (PracticeConfigViewData, error) {
	difficulties, err := h.practiceService.Difficulties()
	if err != nil {
		return PracticeConfigViewData{}, err
	}
	categories, err := h.practiceService.Categories()
	if err != nil {
		return PracticeConfigViewData{}, err
	}

	data := PracticeConfigViewData{Page: h.middleware.page(w, r, "Practice")}
	for _, d := range difficulties {
		data.Difficulties = append(data.Difficulties, Option{
			Value:    strconv.FormatInt(d.ID, 10),
			Label:    d.Name,
			Selected: d.ID == form.DifficultyID,
		})
	}
	for _, c := range categories {
		data.Categories = append(data.Categories, Option{
			Value:    strconv.FormatInt(c.ID, 10),
			Label:    c.Name,
			Selected: c.ID == form.CategoryID,
		})
	}
	for _, op := range append([]models.Operation{models.OperationAll}, models.Operations...) {
		data.Operations = append(data.Operations, Option{
			Value:    string(op),
			Label:    op.Label(),
			Selected: string(op) == form.Operation,
		})
	}
	for _, n := range ExerciseCounts {
		data.Counts = append(data.Counts, Option{
			Value:    strconv.Itoa(n),
			Label:    strconv.Itoa(n),
			Selected: n == form.Count,
		})
	}
	return data, nil
}

// ShowSolve shows the current question, or completes the session and
// redirects to its results once no questions remain
func (h *PracticeHandler) ShowSolve(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	pc, err := h.practiceService.CurrentContext(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading practice context", err)
		return
	}
	h.showQuestion(w, r, user, pc, "", "")
}

func (h *PracticeHandler) showQuestion(w http.ResponseWriter, r *http.Request, user *models.User, pc *models.PracticeContext, answer, errMsg string) {
	if pc == nil {
		h.redirectToConfig(w, r)
		return
	}

	_, step, err := h.practiceService.NextQuestion(r.Context(), user.ID, pc)
	if err != nil {
		if errors.Is(err, service.ErrExerciseSessionNotFound) {
			h.redirectToConfig(w, r)
			return
		}
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error preparing next question", err)
		return
	}

	if step.Completed {
		http.Redirect(w, r, fmt.Sprintf("/practice/results/%d", step.Session.ID), http.StatusSeeOther)
		return
	}

	total := step.Session.TotalExercises
	render(w, h.templates, "practice_solve.tmpl", PracticeSolveViewData{
		Page:      h.middleware.page(w, r, "Solve"),
		Exercise:  step.Exercise,
		Number:    total - pc.Remaining + 1,
		Total:     total,
		Remaining: pc.Remaining,
		Answer:    answer,
		Error:     errMsg,
	})
}

// SubmitAnswer grades the answer to the shown question and returns to the
// solve page with feedback
func (h *PracticeHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", err)
		return
	}

	pc, err := h.practiceService.CurrentContext(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading practice context", err)
		return
	}
	if pc == nil {
		h.redirectToConfig(w, r)
		return
	}

	raw := r.FormValue("answer")
	answer, err := exercise.ParseAnswer(raw)
	if err != nil {
		h.showQuestion(w, r, user, pc, raw, "Please enter a number, for example 12 or 3.5")
		return
	}

	_, feedback, err := h.practiceService.SubmitAnswer(r.Context(), user.ID, pc, answer)
	switch {
	case errors.Is(err, service.ErrNoQuestionShown):
		http.Redirect(w, r, "/practice/solve", http.StatusSeeOther)
		return
	case errors.Is(err, service.ErrSessionClosed):
		setFlash(w, r, FlashInfo, "This practice session is already complete.")
		http.Redirect(w, r, fmt.Sprintf("/practice/results/%d", pc.SessionID), http.StatusSeeOther)
		return
	case errors.Is(err, service.ErrAllAnswersCounted):
		setFlash(w, r, FlashError, "Every exercise in this session is already counted as correct.")
		http.Redirect(w, r, "/practice/solve", http.StatusSeeOther)
		return
	case errors.Is(err, service.ErrExerciseSessionNotFound):
		h.redirectToConfig(w, r)
		return
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error recording answer", err)
		return
	}

	level := FlashError
	if feedback.Correct {
		level = FlashSuccess
	}
	setFlash(w, r, level, feedback.Message)
	http.Redirect(w, r, "/practice/solve", http.StatusSeeOther)
}

func (h *PracticeHandler) redirectToConfig(w http.ResponseWriter, r *http.Request) {
	setFlash(w, r, FlashInfo, "No practice session in progress. Choose your settings to start one.")
	http.Redirect(w, r, "/practice/config", http.StatusSeeOther)
}

// ShowResults renders the summary of one of the user's sessions
func (h *PracticeHandler) ShowResults(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	sessionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusNotFound, ErrNotFound, "", nil)
		return
	}

	results, err := h.practiceService.Results(user.ID, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrExerciseSessionNotFound) {
			respondWithError(w, http.StatusNotFound, ErrNotFound, "", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading session results", err)
		return
	}

	rows := make([]OperationRow, 0, len(results.OperationStats))
	for _, stat := range results.OperationStats {
		rows = append(rows, OperationRow{
			Label:    stat.Operation.Label(),
			Total:    stat.Total,
			Correct:  stat.Correct,
			Accuracy: stat.Accuracy(),
		})
	}

	render(w, h.templates, "practice_results.tmpl", PracticeResultsViewData{
		Page:       h.middleware.page(w, r, "Results"),
		Results:    results,
		Operations: rows,
	})
}

// ShowHistory lists the user's past sessions
func (h *PracticeHandler) ShowHistory(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}

	history, err := h.practiceService.History(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error loading practice history", err)
		return
	}

	render(w, h.templates, "practice_history.tmpl", PracticeHistoryViewData{
		Page:    h.middleware.page(w, r, "History"),
		History: history,
	})
}

// formInt64 reads an integer form field, treating blanks and garbage as zero
// so validation reports them
func formInt64(r *http.Request, name string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.FormValue(name)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
