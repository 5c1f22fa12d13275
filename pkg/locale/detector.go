package locale

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// InferCountryFromPhone reads the region of an E.164 number. It returns nil
// for numbers it cannot parse or regions it does not know.
func InferCountryFromPhone(phone string) *Country {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	parsed, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return nil
	}
	country, ok := Countries[phonenumbers.GetRegionCodeForNumber(parsed)]
	if !ok {
		return nil
	}
	return &country
}

// InferTimezoneFromPhone falls back to UTC when the country is unknown.
func InferTimezoneFromPhone(phone string) string {
	if country := InferCountryFromPhone(phone); country != nil {
		return country.DefaultTimezone
	}
	return DefaultTimezone
}
