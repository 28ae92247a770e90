package httpapi

import (
	"errors"
	"net/http"

	"github.com/AntonStoeckl/library-lending-go/app/identity"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	in, cleanup, err := s.readInput(w, r)
	defer cleanup()

	if err != nil {
		s.writeJSON(w, r, http.StatusRequestEntityTooLarge, failure(msgPayloadTooLarge))
		return
	}

	signUp := identity.SignUpInput{}
	verr := lending.NewValidationError()
	signUp.Name = in.textField(verr, identity.FieldName)
	signUp.Email = in.textField(verr, identity.FieldEmail)
	signUp.Password = in.textField(verr, identity.FieldPassword)

	if verr.HasErrors() {
		s.writeJSON(w, r, http.StatusUnprocessableEntity, failureWithErrors(msgValidationError, flatErrors(verr)))
		return
	}

	user, err := s.auth.SignUp(r.Context(), signUp)
	if errors.As(err, &verr) {
		s.writeJSON(w, r, http.StatusUnprocessableEntity, failureWithErrors(msgValidationError, flatErrors(verr)))
		return
	}

	if err != nil {
		s.writeServerError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, success(msgUserCreated, user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	in, cleanup, err := s.readInput(w, r)
	defer cleanup()

	if err != nil {
		s.writeJSON(w, r, http.StatusRequestEntityTooLarge, failure(msgPayloadTooLarge))
		return
	}

	credentials := identity.Credentials{}
	verr := lending.NewValidationError()
	credentials.Email = in.textField(verr, identity.FieldEmail)
	credentials.Password = in.textField(verr, identity.FieldPassword)

	if verr.HasErrors() {
		s.writeJSON(w, r, http.StatusUnprocessableEntity, failureWithErrors(msgAuthFailed, flatErrors(verr)))
		return
	}

	token, err := s.auth.Login(r.Context(), credentials)

	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, r, http.StatusUnprocessableEntity, failureWithErrors(msgAuthFailed, flatErrors(verr)))
	case errors.Is(err, identity.ErrInvalidCredentials):
		s.writeJSON(w, r, http.StatusUnauthorized, failure(msgBadCredentials))
	case err != nil:
		s.writeServerError(w, r, err)
	default:
		s.writeJSON(w, r, http.StatusOK, envelope{
			Status:    true,
			Message:   msgLoggedIn,
			Token:     token.Plain,
			TokenType: tokenTypeBearer,
		})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())

	if err := s.auth.Logout(r.Context(), caller.UserID); err != nil {
		s.writeServerError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, success(msgLoggedOut, nil))
}
