package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[\w.@+\-]+$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects the failures of one form
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Field returns the first message for field, or ""
func (e ValidationErrors) Field(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Messages returns the messages in order
func (e ValidationErrors) Messages() []string {
	messages := make([]string, len(e))
	for i, fe := range e {
		messages[i] = fe.Message
	}
	return messages
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks an optional first or last name
func ValidateName(field, name string) error {
	if len(strings.TrimSpace(name)) > 150 {
		return ValidationError{Field: field, Message: field + " must be at most 150 characters"}
	}
	return nil
}

// ValidateUsername allows letters, digits and @ . + - _ up to 150 characters
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return ValidationError{Field: "username", Message: "username is required"}
	case len(username) < 3:
		return ValidationError{Field: "username", Message: "username must be at least 3 characters"}
	case len(username) > 150:
		return ValidationError{Field: "username", Message: "username must be at most 150 characters"}
	case !usernameRegex.MatchString(username):
		return ValidationError{Field: "username", Message: "username may only contain letters, digits and @/./+/-/_"}
	}
	return nil
}

// PracticeConfigForm is the practice configuration form
type PracticeConfigForm struct {
	CategoryID   int64  `form:"category" validate:"gte=0"`
	DifficultyID int64  `form:"difficulty" validate:"required,gt=0"`
	Operation    string `form:"operation_type" validate:"required,oneof=all addition subtraction multiplication division"`
	Count        int    `form:"exercise_count" validate:"required,oneof=5 10 15 20"`
}

// RegisterForm is the registration form
type RegisterForm struct {
	Username        string `form:"username" validate:"required,username"`
	Email           string `form:"email" validate:"required,email"`
	FirstName       string `form:"first_name" validate:"max=150"`
	LastName        string `form:"last_name" validate:"max=150"`
	Password        string `form:"password" validate:"required,min=8"`
	PasswordConfirm string `form:"password_confirm" validate:"required,eqfield=Password"`
}

// LoginForm is the login form
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// ProfileForm is the profile edit form
type ProfileForm struct {
	Email      string `form:"email" validate:"required,email"`
	FirstName  string `form:"first_name" validate:"max=150"`
	LastName   string `form:"last_name" validate:"max=150"`
	GradeLevel int    `form:"grade_level" validate:"min=1,max=3"`
	BirthDate  string `form:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	})
	return v
}

// Struct validates a form struct and converts failures to ValidationErrors
func Struct(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	result := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		result = append(result, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return result
}

func message(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "invalid email format"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return "passwords do not match"
	case "datetime":
		return field + " must be a date (YYYY-MM-DD)"
	case "username":
		if err := ValidateUsername(fe.Value().(string)); err != nil {
			return err.(ValidationError).Message
		}
	}
	return field + " is invalid"
}
