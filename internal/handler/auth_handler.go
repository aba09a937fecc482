/*
Package handler provides HTTP handler functions for the login, registration and logout forms.

The forms answer with redirects, as a browser form post expects; failures carry an error code
in the query string that the index page turns into a flash message.
*/
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"sockchat/internal/app/user"
	"sockchat/internal/pkg/errs"
	"sockchat/internal/pkg/req"
)

// redirectWithError sends the browser back to the index page with a flash code.
func redirectWithError(w http.ResponseWriter, r *http.Request, code int) {
	http.Redirect(w, r, "/?error="+strconv.Itoa(code), http.StatusFound)
}

// respondInternal logs err and answers 500 with a generic message.
func respondInternal(w http.ResponseWriter, r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(msg)
	http.Error(w, errs.NewError(errs.ErrUnknown).Message, http.StatusInternalServerError)
}

// HandleLogin verifies the posted credentials and attaches the user to the current session.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		creds, customErr := req.BindCredentials(w, r)
		if customErr != nil {
			redirectWithError(w, r, customErr.Code)
			return
		}

		identity, err := deps.Users.Verify(r.Context(), creds.Username, creds.Password)
		if err != nil {
			var failure *user.AuthFailure
			if errors.As(err, &failure) {
				logger.Warn().Str("username", creds.Username).Stringer("reason", failure.Reason).Msg("login rejected")
				redirectWithError(w, r, errs.ErrInvalidCredentials)
				return
			}

			respondInternal(w, r, err, "login: credential store failure")
			return
		}

		if err := deps.Sessions.Login(w, r, identity); err != nil {
			respondInternal(w, r, err, "login: session update failed")
			return
		}

		http.Redirect(w, r, "/profile", http.StatusFound)
	}
}

// HandleRegister creates a user and logs them in.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		creds, customErr := req.BindCredentials(w, r)
		if customErr != nil {
			redirectWithError(w, r, customErr.Code)
			return
		}

		if !deps.Pow.ConsumeProofToken(creds.PowToken) {
			logger.Warn().Str("username", creds.Username).Msg("register: missing or invalid proof-of-work token")
			redirectWithError(w, r, errs.ErrPowChallengeRequired)
			return
		}

		identity, err := deps.Users.Register(r.Context(), creds.Username, creds.Password)
		switch {
		case errors.Is(err, user.ErrUserExists):
			logger.Warn().Str("username", creds.Username).Msg("registration conflict: username already exists")
			redirectWithError(w, r, errs.ErrUserAlreadyExists)
			return
		case errors.Is(err, user.ErrInvalidUsername):
			redirectWithError(w, r, errs.ErrInvalidUsername)
			return
		case errors.Is(err, user.ErrInvalidPassword):
			redirectWithError(w, r, errs.ErrInvalidPassword)
			return
		case err != nil:
			respondInternal(w, r, err, "register: failed to create user")
			return
		}

		logger.Info().Str("username", identity.Username).Msg("user registered")

		if err := deps.Sessions.Login(w, r, identity); err != nil {
			respondInternal(w, r, err, "register: session update failed")
			return
		}

		http.Redirect(w, r, "/profile", http.StatusFound)
	}
}

// HandleLogout detaches the user from the session. The same cookie stops authorizing WebSockets.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Logout(w, r); err != nil {
			respondInternal(w, r, err, "logout: session update failed")
			return
		}

		http.Redirect(w, r, "/", http.StatusFound)
	}
}
