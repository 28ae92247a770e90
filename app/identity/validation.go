package identity

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// EmailTakenMessage is the message for an email that already belongs to an account.
const EmailTakenMessage = "The email has already been taken."

func validateSignUp(input SignUpInput) (SignUpInput, *lending.ValidationError) {
	verr := lending.NewValidationError()

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	if input.Name == "" {
		verr.Add(FieldName, lending.RequiredMessage(FieldName))
	}

	validateEmail(verr, input.Email)

	switch {
	case input.Password == "":
		verr.Add(FieldPassword, lending.RequiredMessage(FieldPassword))
	case len([]rune(input.Password)) < MinPasswordLength:
		verr.Add(FieldPassword, fmt.Sprintf("The password field must be at least %d characters.", MinPasswordLength))
	}

	return input, verr
}

func validateCredentials(credentials Credentials) (Credentials, *lending.ValidationError) {
	verr := lending.NewValidationError()

	credentials.Email = normalizeEmail(credentials.Email)

	validateEmail(verr, credentials.Email)

	if credentials.Password == "" {
		verr.Add(FieldPassword, lending.RequiredMessage(FieldPassword))
	}

	return credentials, verr
}

func validateEmail(verr *lending.ValidationError, email string) {
	if email == "" {
		verr.Add(FieldEmail, lending.RequiredMessage(FieldEmail))
		return
	}

	// ParseAddress also accepts "Name <a@b>", only a bare address counts
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		verr.Add(FieldEmail, "The email field must be a valid email address.")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
