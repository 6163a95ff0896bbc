package account

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

var (
	// ErrInvalidAddressRecipient indicates the recipient name failed validation.
	ErrInvalidAddressRecipient = errors.New("account: invalid address recipient")
	// ErrInvalidAddressLine1 indicates the primary address line is missing.
	ErrInvalidAddressLine1 = errors.New("account: invalid address line1")
	// ErrInvalidAddressCity indicates the city is missing.
	ErrInvalidAddressCity = errors.New("account: invalid address city")
	// ErrInvalidAddressCountry indicates the country is not an ISO region code.
	ErrInvalidAddressCountry = errors.New("account: invalid address country")
	// ErrInvalidAddressPostalCode indicates the postal code failed validation.
	ErrInvalidAddressPostalCode = errors.New("account: invalid address postal code")
	// ErrInvalidAddressPhone indicates the phone number failed validation.
	ErrInvalidAddressPhone = errors.New("account: invalid address phone")
	// ErrAddressIDRequired is returned when removing without an id.
	ErrAddressIDRequired = errors.New("account: address id is required")

	addressPhonePattern  = regexp.MustCompile(`^[0-9+()\-\s]{6,20}$`)
	addressPostalPattern = regexp.MustCompile(`^[0-9A-Za-z\-\s]{3,16}$`)
)

// Address is a saved shipping address.
type Address struct {
	ID         string `json:"address_id,omitempty"`
	Recipient  string `json:"full_name"`
	Line1      string `json:"address_line1"`
	Line2      string `json:"address_line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone_number,omitempty"`
}

// SanitizeAddress trims input and validates the fields the backend requires.
func SanitizeAddress(addr Address) (Address, error) {
	out := Address{
		ID:         strings.TrimSpace(addr.ID),
		Recipient:  strings.TrimSpace(addr.Recipient),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:      strings.TrimSpace(addr.Phone),
	}
	if out.Recipient == "" || utf8.RuneCountInString(out.Recipient) > 200 {
		return Address{}, ErrInvalidAddressRecipient
	}
	if out.Line1 == "" {
		return Address{}, ErrInvalidAddressLine1
	}
	if out.City == "" {
		return Address{}, ErrInvalidAddressCity
	}
	if len(out.Country) != 2 {
		return Address{}, ErrInvalidAddressCountry
	}
	region, err := language.ParseRegion(out.Country)
	if err != nil || !region.IsCountry() {
		return Address{}, ErrInvalidAddressCountry
	}
	out.Country = region.String()
	postal, err := canonicalPostalCode(out.Country, out.PostalCode)
	if err != nil {
		return Address{}, err
	}
	out.PostalCode = postal
	if out.Phone != "" && !addressPhonePattern.MatchString(out.Phone) {
		return Address{}, ErrInvalidAddressPhone
	}
	return out, nil
}

func canonicalPostalCode(country, postal string) (string, error) {
	if postal == "" {
		return "", ErrInvalidAddressPostalCode
	}
	if country == "IN" {
		digits := strings.ReplaceAll(postal, " ", "")
		if len(digits) != 6 || !allDigits(digits) {
			return "", ErrInvalidAddressPostalCode
		}
		return digits, nil
	}
	if !addressPostalPattern.MatchString(postal) {
		return "", ErrInvalidAddressPostalCode
	}
	return postal, nil
}

func allDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AddressMessage maps a validation error to the text shown next to the form.
func AddressMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAddressRecipient):
		return "Please enter the recipient's name."
	case errors.Is(err, ErrInvalidAddressLine1):
		return "Please enter the street address."
	case errors.Is(err, ErrInvalidAddressCity):
		return "Please enter the city."
	case errors.Is(err, ErrInvalidAddressCountry):
		return "Please choose a valid country code."
	case errors.Is(err, ErrInvalidAddressPostalCode):
		return "Please enter a valid postal code."
	case errors.Is(err, ErrInvalidAddressPhone):
		return "Please enter a valid phone number."
	}
	return ""
}
