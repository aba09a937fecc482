package handler

import (
	"net/http"
	"strconv"

	"sockchat/internal/app/session"
	"sockchat/internal/app/user"
	"sockchat/internal/app/view"
	"sockchat/internal/pkg/errs"
)

// flashCodes are the error codes the index page agrees to display.
var flashCodes = map[int]struct{}{
	errs.ErrInvalidParams:        {},
	errs.ErrFormParseFailed:      {},
	errs.ErrInvalidCredentials:   {},
	errs.ErrUserAlreadyExists:    {},
	errs.ErrInvalidUsername:      {},
	errs.ErrInvalidPassword:      {},
	errs.ErrPowChallengeRequired: {},
}

// flashMessage maps the ?error= code to its user-facing message.
func flashMessage(raw string) string {
	code, err := strconv.Atoi(raw)
	if err != nil {
		return ""
	}
	if _, ok := flashCodes[code]; !ok {
		return ""
	}

	if code == errs.ErrInvalidPassword {
		return errs.NewError(code, user.MaxPasswordBytes).Message
	}
	return errs.NewError(code).Message
}

// HandleIndex renders the landing page with the login and registration forms.
func HandleIndex(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Views.Render(w, http.StatusOK, view.PageIndex, view.IndexData{
			Title:         "Connected to Database",
			Message:       "Please log in",
			Flash:         flashMessage(r.URL.Query().Get("error")),
			ShowForms:     true,
			PowDifficulty: deps.Pow.Difficulty(),
		})
	}
}

// HandleProfile renders the logged-in user's page.
func HandleProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := session.IdentityFromContext(r.Context())
		deps.Views.Render(w, http.StatusOK, view.PageProfile, view.UserData{Title: "Profile", Username: identity.Username})
	}
}

// HandleChat renders the chat room page.
func HandleChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := session.IdentityFromContext(r.Context())
		deps.Views.Render(w, http.StatusOK, view.PageChat, view.UserData{Title: "Chat", Username: identity.Username})
	}
}
