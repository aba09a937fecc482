package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIndexEscapesInput(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageIndex, IndexData{
		Title:     "Home",
		Message:   "Please log in",
		Flash:     "<script>alert(1)</script>",
		ShowForms: true,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "Please log in")
	assert.Contains(t, body, `action="/login"`)
	assert.Contains(t, body, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, body, "<script>alert(1)</script>")
}

func TestRenderDatabaseErrorPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageIndex, IndexData{Title: "dial tcp: connection refused", Message: "Unable to connect to database"})

	body := rec.Body.String()
	assert.Contains(t, body, "Unable to connect to database")
	assert.Contains(t, body, "<title>dial tcp: connection refused</title>")
	assert.NotContains(t, body, `action="/login"`)
}

func TestRenderUserPages(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	for _, page := range []string{PageProfile, PageChat} {
		rec := httptest.NewRecorder()
		r.Render(rec, http.StatusOK, page, UserData{Title: "Chat", Username: "alice"})
		assert.Equal(t, http.StatusOK, rec.Code, page)
		assert.Contains(t, rec.Body.String(), "alice", page)
	}
}

func TestRenderUnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "missing", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
