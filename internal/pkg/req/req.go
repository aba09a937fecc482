/*
Package req binds request bodies into Go values, translating failures into errs codes.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"sockchat/internal/pkg/errs"
)

// MaxBodyBytes caps JSON and form bodies.
const MaxBodyBytes int64 = 64 << 10

// BindJSON decodes a single JSON document into dst, rejecting unknown fields.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// Credentials is the username/password pair posted by the login and registration forms.
type Credentials struct {
	Username string
	Password string
	PowToken string
}

// BindCredentials parses a URL-encoded form carrying username and password.
func BindCredentials(w http.ResponseWriter, r *http.Request) (Credentials, *errs.CustomError) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	if err := r.ParseForm(); err != nil {
		return Credentials{}, errs.NewError(errs.ErrFormParseFailed)
	}

	creds := Credentials{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
		PowToken: r.PostForm.Get("pow_token"),
	}

	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, errs.NewError(errs.ErrInvalidParams)
	}

	return creds, nil
}
