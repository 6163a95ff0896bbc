package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

// Backend endpoints for accounts.
const (
	EndpointLogin         = "/api/users/login"
	EndpointLogout        = "/api/users/logout"
	EndpointProfile       = "/api/users/get_user_profile"
	EndpointAddresses     = "/api/users/get_addresses"
	EndpointAddAddress    = "/api/users/add_address"
	EndpointRemoveAddress = "/api/users/remove_address"
	EndpointAdminLogin    = "/api/admin/login"
	EndpointAdminProfile  = "/api/admin/get_admin_profile"
	EndpointCheckUsername = "/api/admin/check_username"
	EndpointAdminSignup   = "/api/admin/create_admin_profile"
)

// Messages shown when the backend gives no better explanation.
const (
	MessageLoginFailed   = "Invalid credentials or server error."
	MessageProfileFailed = "Failed to load profile"
	MessageAddressFailed = "Failed to update addresses"
)

var (
	// ErrMissingCredentials is returned when identifier or password is blank.
	ErrMissingCredentials = errors.New("account: identifier and password are required")
	// ErrNoProfile is returned when the backend answers without a profile document.
	ErrNoProfile = errors.New("account: profile not found")
)

// Backend is the subset of the backend client used by the account service.
type Backend interface {
	Call(ctx context.Context, endpoint string, body any, opts ...backend.RequestOption) (*backend.Envelope, error)
	Query(ctx context.Context, method, endpoint string, body any, opts ...backend.RequestOption) (*backend.Envelope, error)
}

// ServiceDeps wires the account service.
type ServiceDeps struct {
	Backend Backend
	Logger  *zap.Logger
}

// Service wraps the user and admin account endpoints.
type Service struct {
	backend Backend
	logger  *zap.Logger
}

// NewService constructs an account service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: deps.Backend, logger: logger}
}

// Credentials is a login form submission.
type Credentials struct {
	Identifier string
	Password   string
}

// LoginResult carries the session cookies the backend issued.
type LoginResult struct {
	Cookies []*http.Cookie
	Message string
}

// Profile is a user or admin profile.
type Profile struct {
	AdminID     string
	FullName    string
	Username    string
	Email       string
	PhoneNumber string
	Gender      string
	Age         int
}

// UsernameStatus is the outcome of an availability check.
type UsernameStatus string

const (
	UsernameUnknown   UsernameStatus = ""
	UsernameAvailable UsernameStatus = "available"
	UsernameTaken     UsernameStatus = "taken"
	UsernameInvalid   UsernameStatus = "invalid"
)

// Login authenticates a storefront user.
func (s *Service) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	return s.login(ctx, EndpointLogin, creds)
}

// AdminLogin authenticates an administrator.
func (s *Service) AdminLogin(ctx context.Context, creds Credentials) (LoginResult, error) {
	return s.login(ctx, EndpointAdminLogin, creds)
}

func (s *Service) login(ctx context.Context, endpoint string, creds Credentials) (LoginResult, error) {
	identifier := strings.TrimSpace(creds.Identifier)
	if identifier == "" || creds.Password == "" {
		return LoginResult{}, ErrMissingCredentials
	}
	env, err := s.call(ctx, endpoint, map[string]any{
		"identifier": identifier,
		"password":   creds.Password,
	})
	if err != nil {
		s.logger.Info("login rejected", zap.String("endpoint", endpoint), zap.Error(err))
		return LoginResult{}, err
	}
	return LoginResult{Cookies: env.Cookies, Message: env.Message}, nil
}

// Logout ends the session on the backend.
func (s *Service) Logout(ctx context.Context) error {
	_, err := s.call(ctx, EndpointLogout, map[string]any{})
	return err
}

// Profile loads the signed-in user's profile.
func (s *Service) Profile(ctx context.Context) (Profile, error) {
	return s.profile(ctx, EndpointProfile)
}

// AdminProfile loads the signed-in administrator's profile.
func (s *Service) AdminProfile(ctx context.Context) (Profile, error) {
	return s.profile(ctx, EndpointAdminProfile)
}

func (s *Service) profile(ctx context.Context, endpoint string) (Profile, error) {
	env, err := s.call(ctx, endpoint, map[string]any{})
	if err != nil {
		return Profile{}, err
	}
	var docs []profileWire
	if err := env.Decode(&docs); err != nil || len(docs) == 0 {
		var single profileWire
		if err := env.Decode(&single); err != nil || single.empty() {
			return Profile{}, ErrNoProfile
		}
		return single.toProfile(), nil
	}
	return docs[0].toProfile(), nil
}

// Addresses lists the signed-in user's saved addresses.
func (s *Service) Addresses(ctx context.Context) ([]Address, error) {
	env, err := s.call(ctx, EndpointAddresses, map[string]any{})
	if err != nil {
		return nil, err
	}
	return decodeAddresses(env), nil
}

// AddAddress validates and saves addr, returning the updated list.
func (s *Service) AddAddress(ctx context.Context, addr Address) ([]Address, error) {
	clean, err := SanitizeAddress(addr)
	if err != nil {
		return nil, err
	}
	clean.ID = ""
	env, err := s.call(ctx, EndpointAddAddress, clean, backend.WithIdempotencyKey())
	if err != nil {
		return nil, err
	}
	if list := decodeAddresses(env); list != nil {
		return list, nil
	}
	return s.Addresses(ctx)
}

// RemoveAddress deletes the address with id, returning the updated list.
func (s *Service) RemoveAddress(ctx context.Context, id string) ([]Address, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrAddressIDRequired
	}
	env, err := s.call(ctx, EndpointRemoveAddress, map[string]any{"address_id": id})
	if err != nil {
		return nil, err
	}
	if list := decodeAddresses(env); list != nil {
		return list, nil
	}
	return s.Addresses(ctx)
}

// CheckUsername reports whether username can be registered. Malformed names
// are rejected locally without a backend call.
func (s *Service) CheckUsername(ctx context.Context, username string) (UsernameStatus, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return UsernameUnknown, nil
	}
	if !ValidUsername(username) {
		return UsernameInvalid, nil
	}
	if s == nil || s.backend == nil {
		return UsernameInvalid, backend.ErrNotConfigured
	}
	env, err := s.backend.Query(ctx, http.MethodPost, EndpointCheckUsername, map[string]any{"username": username})
	if err != nil {
		return UsernameInvalid, err
	}
	var body struct {
		IsValid bool `json:"isValid"`
	}
	if err := env.DecodeBody(&body); err != nil {
		return UsernameInvalid, err
	}
	if body.IsValid {
		return UsernameAvailable, nil
	}
	return UsernameTaken, nil
}

// SignupAdmin validates form, confirms the username is free and creates the
// admin profile. It returns the new admin id when the backend reports one.
func (s *Service) SignupAdmin(ctx context.Context, form SignupForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	status, err := s.CheckUsername(ctx, form.Username)
	if err != nil {
		return "", &ValidationError{Field: "username", Message: MessageUsernameCheck}
	}
	if status == UsernameTaken {
		return "", &ValidationError{Field: "username", Message: MessageUsernameTaken}
	}
	env, err := s.call(ctx, EndpointAdminSignup, form.payload(), backend.WithIdempotencyKey())
	if err != nil {
		return "", err
	}
	var created struct {
		AdminID text `json:"admin_id"`
		Data    struct {
			AdminID text `json:"admin_id"`
		} `json:"data"`
	}
	_ = env.DecodeBody(&created)
	if created.AdminID != "" {
		return string(created.AdminID), nil
	}
	return string(created.Data.AdminID), nil
}

func (s *Service) call(ctx context.Context, endpoint string, body any, opts ...backend.RequestOption) (*backend.Envelope, error) {
	if s == nil || s.backend == nil {
		return nil, backend.ErrNotConfigured
	}
	return s.backend.Call(ctx, endpoint, body, opts...)
}

// text accepts JSON strings and numbers.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*t = ""
		return nil
	}
	*t = text(n.String())
	return nil
}

type profileWire struct {
	AdminID     text `json:"admin_id"`
	FullName    text `json:"full_name"`
	Username    text `json:"username"`
	Email       text `json:"email"`
	PhoneNumber text `json:"phone_number"`
	Gender      text `json:"gender"`
	Age         text `json:"age"`
}

func (w profileWire) empty() bool {
	return w.Username == "" && w.Email == "" && w.FullName == ""
}

func (w profileWire) toProfile() Profile {
	age, err := strconv.Atoi(string(w.Age))
	if err != nil {
		if f, ferr := strconv.ParseFloat(string(w.Age), 64); ferr == nil {
			age = int(f)
		}
	}
	return Profile{
		AdminID:     string(w.AdminID),
		FullName:    string(w.FullName),
		Username:    string(w.Username),
		Email:       string(w.Email),
		PhoneNumber: string(w.PhoneNumber),
		Gender:      string(w.Gender),
		Age:         age,
	}
}

type addressWire struct {
	ID         text `json:"address_id"`
	DocID      text `json:"_id"`
	Recipient  text `json:"full_name"`
	Line1      text `json:"address_line1"`
	Line2      text `json:"address_line2"`
	City       text `json:"city"`
	State      text `json:"state"`
	PostalCode text `json:"postal_code"`
	Country    text `json:"country"`
	Phone      text `json:"phone_number"`
}

func (w addressWire) toAddress() Address {
	id := string(w.ID)
	if id == "" {
		id = string(w.DocID)
	}
	return Address{
		ID:         id,
		Recipient:  string(w.Recipient),
		Line1:      string(w.Line1),
		Line2:      string(w.Line2),
		City:       string(w.City),
		State:      string(w.State),
		PostalCode: string(w.PostalCode),
		Country:    string(w.Country),
		Phone:      string(w.Phone),
	}
}

// decodeAddresses reads data as an address array or as {addresses: [...]}.
// It returns nil when data carries no list.
func decodeAddresses(env *backend.Envelope) []Address {
	var raw []json.RawMessage
	if err := env.Decode(&raw); err != nil || raw == nil {
		var wrapped struct {
			Addresses []json.RawMessage `json:"addresses"`
		}
		if err := env.Decode(&wrapped); err != nil || wrapped.Addresses == nil {
			return nil
		}
		raw = wrapped.Addresses
	}
	out := make([]Address, 0, len(raw))
	for _, elem := range raw {
		var w addressWire
		if err := json.Unmarshal(elem, &w); err != nil {
			continue
		}
		if addr := w.toAddress(); addr.ID != "" {
			out = append(out, addr)
		}
	}
	return out
}
