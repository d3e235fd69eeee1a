package session

import (
	"errors"

	"white-traffic-console/internal/client"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Credentials is the login/register form.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	// Confirm is only checked on registration.
	Confirm string `json:"-"`
}

type registration struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
	Confirm  string `validate:"eqfield=Password"`
}

// ValidateLogin checks the form before any network call.
func (c Credentials) ValidateLogin() error {
	return translate(validate.Struct(c))
}

// ValidateRegister additionally requires the password confirmation to match.
func (c Credentials) ValidateRegister() error {
	return translate(validate.Struct(registration{
		Username: c.Username,
		Password: c.Password,
		Confirm:  c.Confirm,
	}))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Username", "Password":
		return client.NewValidationError("", "username and password must not be empty")
	case "Confirm":
		return client.NewValidationError("confirm", "passwords do not match")
	default:
		return client.NewValidationError(fe.Field(), fe.Tag())
	}
}
