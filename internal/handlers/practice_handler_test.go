package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathdrill/internal/models"
)

func configForm(difficulty, operation, count string) url.Values {
	return url.Values{
		"category":       {"0"},
		"difficulty":     {difficulty},
		"operation_type": {operation},
		"exercise_count": {count},
	}
}

func TestPracticeFlowToResults(t *testing.T) {
	srv := newTestServer(t, nil)
	c := srv.login(t, "ada")

	rec := srv.post(c, "/practice/config", configForm(srv.difficultyID(t), "addition", "5"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/practice/solve", rec.Header().Get("Location"))

	for i := 1; i <= 5; i++ {
		rec = srv.get(c, "/practice/solve")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), fmt.Sprintf("Question %d of 5", i))

		rec = srv.post(c, "/practice/solve", url.Values{"answer": {srv.pendingAnswer(t, c.user)}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/practice/solve", rec.Header().Get("Location"))
		require.NotNil(t, responseCookie(rec, FlashCookieName), "feedback flash")
	}

	rec = srv.get(c, "/practice/solve")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	resultsURL := rec.Header().Get("Location")
	assert.Regexp(t, `^/practice/results/\d+$`, resultsURL)

	rec = srv.get(c, resultsURL)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Score: 5 / 5")
	assert.Contains(t, body, "100.00%")
	assert.Contains(t, body, "Addition")

	rec = srv.get(c, "/practice/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), resultsURL)

	rec = srv.get(c, "/progress")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Exercises answered: 5")
}

func TestSolveWithoutSessionRedirectsToConfig(t *testing.T) {
	srv := newTestServer(t, nil)
	c := srv.login(t, "ada")

	rec := srv.get(c, "/practice/solve")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/practice/config", rec.Header().Get("Location"))

	flash := responseCookie(rec, FlashCookieName)
	require.NotNil(t, flash)

	rec = srv.get(c, "/practice/config", flash)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No practice session in progress")

	rec = srv.post(c, "/practice/solve", url.Values{"answer": {"3"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/practice/config", rec.Header().Get("Location"))
}

func TestStartPracticeValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	c := srv.login(t, "ada")
	difficulty := srv.difficultyID(t)

	tests := []struct {
		name     string
		form     url.Values
		expected string
	}{
		{"count not offered", configForm(difficulty, "addition", "7"), "exercise count must be one of: 5, 10, 15, 20"},
		{"missing difficulty", configForm("", "addition", "5"), "difficulty is required"},
		{"unknown operation", configForm(difficulty, "modulo", "5"), "operation type must be one of"},
		{"unknown difficulty", configForm("9999", "addition", "5"), "select a difficulty level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.post(c, "/practice/config", tt.form)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expected)

			pc, err := srv.practiceRepo.GetContext(c.user.ID)
			require.NoError(t, err)
			assert.Nil(t, pc, "no session should be started")
		})
	}
}

func TestSubmitUnparseableAnswerRerendersQuestion(t *testing.T) {
	srv := newTestServer(t, nil)
	c := srv.login(t, "ada")

	require.Equal(t, http.StatusSeeOther, srv.post(c, "/practice/config", configForm(srv.difficultyID(t), "division", "5")).Code)
	require.Equal(t, http.StatusOK, srv.get(c, "/practice/solve").Code)

	for _, answer := range []string{"three", "1e-99999999"} {
		rec := srv.post(c, "/practice/solve", url.Values{"answer": {answer}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Please enter a number")
		assert.Contains(t, rec.Body.String(), "Question 1 of 5")
	}

	attempts, err := srv.practiceRepo.GetSessionAttempts(mustContext(t, srv, c).SessionID)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestResultsAreOwnerOnly(t *testing.T) {
	srv := newTestServer(t, nil)
	owner := srv.login(t, "ada")
	other := srv.login(t, "grace")

	require.Equal(t, http.StatusSeeOther, srv.post(owner, "/practice/config", configForm(srv.difficultyID(t), "all", "5")).Code)
	sessionID := mustContext(t, srv, owner).SessionID
	path := fmt.Sprintf("/practice/results/%d", sessionID)

	assert.Equal(t, http.StatusOK, srv.get(owner, path).Code)
	assert.Equal(t, http.StatusNotFound, srv.get(other, path).Code)
	assert.Equal(t, http.StatusNotFound, srv.get(owner, "/practice/results/abc").Code)
}

func mustContext(t *testing.T, srv *testServer, c *client) *models.PracticeContext {
	t.Helper()
	pc, err := srv.practiceRepo.GetContext(c.user.ID)
	require.NoError(t, err)
	require.NotNil(t, pc)
	return pc
}
