package account

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,20}$`)
	emailPattern    = regexp.MustCompile(`\S+@\S+\.\S+`)
)

// Validation messages shown on the admin signup form.
const (
	MessageUsernameFormat = "Username format is invalid (4-20 chars, alphanumeric, - or _)."
	MessageUsernameTaken  = "Username is already taken. Please choose another."
	MessageMissingFields  = "All mandatory fields must be filled out."
	MessagePasswordLength = "Password must be at least 8 characters long."
	MessagePasswordMatch  = "Passwords do not match."
	MessageEmailFormat    = "Please enter a valid email address."
	MessageAgeRange       = "Age must be between 13 and 120."
	MessageSignupFailed   = "Registration failed due to a server error."
	MessageUsernameCheck  = "Failed to check username availability."
)

// Gender values accepted by the signup form.
var Genders = []string{"male", "female", "other"}

// SignupForm is the admin registration form as submitted.
type SignupForm struct {
	Username        string
	FullName        string
	Email           string
	PhoneNumber     string
	Password        string
	PasswordConfirm string
	Gender          string
	Age             string
}

// ValidationError reports the first invalid field of a form.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "account: invalid " + e.Field + ": " + e.Message
}

// ValidUsername reports whether username matches the allowed format.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(strings.TrimSpace(username))
}

// Validate checks the form in the order the signup page reports problems.
func (f SignupForm) Validate() error {
	if !ValidUsername(f.Username) {
		return &ValidationError{Field: "username", Message: MessageUsernameFormat}
	}
	if strings.TrimSpace(f.FullName) == "" || strings.TrimSpace(f.Email) == "" ||
		f.Password == "" || strings.TrimSpace(f.Age) == "" {
		return &ValidationError{Field: "form", Message: MessageMissingFields}
	}
	if len(f.Password) < 8 {
		return &ValidationError{Field: "password", Message: MessagePasswordLength}
	}
	if f.Password != f.PasswordConfirm {
		return &ValidationError{Field: "password_confirm", Message: MessagePasswordMatch}
	}
	if !emailPattern.MatchString(f.Email) {
		return &ValidationError{Field: "email", Message: MessageEmailFormat}
	}
	age, err := strconv.Atoi(strings.TrimSpace(f.Age))
	if err != nil || age < 13 || age > 120 {
		return &ValidationError{Field: "age", Message: MessageAgeRange}
	}
	return nil
}

type signupPayload struct {
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	Gender      string `json:"gender"`
	Age         int    `json:"age"`
}

func (f SignupForm) payload() signupPayload {
	age, _ := strconv.Atoi(strings.TrimSpace(f.Age))
	gender := strings.ToLower(strings.TrimSpace(f.Gender))
	if gender == "" {
		gender = "male"
	}
	return signupPayload{
		Username:    strings.TrimSpace(f.Username),
		FullName:    strings.TrimSpace(f.FullName),
		Email:       strings.TrimSpace(f.Email),
		PhoneNumber: strings.TrimSpace(f.PhoneNumber),
		Password:    f.Password,
		Gender:      gender,
		Age:         age,
	}
}
