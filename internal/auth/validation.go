package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the default minimum password length in characters.
const MinPasswordLength = 8

const maxFieldLength = 255

// ValidationMessage is the top-level message for any rejected input.
const ValidationMessage = "The given data was invalid."

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"`
	DeviceName           string `json:"device_name"`

	// PreviousSession is the web session presented with the request, destroyed on success.
	PreviousSession string `json:"-"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DeviceName  string `json:"device_name"`
	DeviceToken string `json:"device_token"`

	// PreviousSession is the web session presented with the request, destroyed on success.
	PreviousSession string `json:"-"`
}

// ForgotPasswordInput is the body of a password reset request.
type ForgotPasswordInput struct {
	Email string `json:"email"`
}

// ResetPasswordInput is the body of a password reset redemption.
type ResetPasswordInput struct {
	Email                string `json:"email"`
	Token                string `json:"token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (v *ValidationError) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.Add(field, fmt.Sprintf("The %s field is required.", label(field)))
		return false
	}
	return true
}

func (v *ValidationError) maxLength(field, value string) {
	if utf8.RuneCountInString(value) > maxFieldLength {
		v.Add(field, fmt.Sprintf("The %s field must not be greater than %d characters.", label(field), maxFieldLength))
	}
}

func (v *ValidationError) email(field, value string) {
	if !v.required(field, value) {
		return
	}
	v.maxLength(field, value)
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != strings.TrimSpace(value) || !strings.Contains(addr.Address, ".") {
		v.Add(field, fmt.Sprintf("The %s field must be a valid email address.", label(field)))
	}
}

// password checks length and confirmation. minLength <= 0 means MinPasswordLength.
func (v *ValidationError) password(value, confirmation string, minLength int) {
	if minLength <= 0 {
		minLength = MinPasswordLength
	}
	if !v.required("password", value) {
		return
	}
	if utf8.RuneCountInString(value) < minLength {
		v.Add("password", fmt.Sprintf("The password field must be at least %d characters.", minLength))
	}
	if value != confirmation {
		v.Add("password", "The password field confirmation does not match.")
	}
}

func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// validateAccount checks the fields a new account needs.
func validateAccount(in RegisterInput, minPasswordLength int) *ValidationError {
	v := &ValidationError{}
	if v.required("name", in.Name) {
		v.maxLength("name", in.Name)
	}
	v.email("email", in.Email)
	v.password(in.Password, in.PasswordConfirmation, minPasswordLength)
	return v
}

// validateRegister checks a registration for the given channel. Mobile
// registrations must name the device the token is minted for.
func validateRegister(ch Channel, in RegisterInput, minPasswordLength int) error {
	v := validateAccount(in, minPasswordLength)
	if role := strings.TrimSpace(in.Role); role != "" && !IsSelfServiceRole(Role(role)) {
		v.Add("role", "The selected role is invalid.")
	}
	if ch == ChannelMobile && v.required("device_name", in.DeviceName) {
		v.maxLength("device_name", in.DeviceName)
	}
	return v.Err()
}

func validateLogin(ch Channel, in LoginInput) error {
	v := &ValidationError{}
	v.email("email", in.Email)
	v.required("password", in.Password)
	if ch == ChannelMobile && v.required("device_name", in.DeviceName) {
		v.maxLength("device_name", in.DeviceName)
	}
	return v.Err()
}

func validateForgotPassword(in ForgotPasswordInput) error {
	v := &ValidationError{}
	v.email("email", in.Email)
	return v.Err()
}

func validateResetPassword(in ResetPasswordInput, minPasswordLength int) error {
	v := &ValidationError{}
	v.email("email", in.Email)
	v.required("token", in.Token)
	v.password(in.Password, in.PasswordConfirmation, minPasswordLength)
	return v.Err()
}
