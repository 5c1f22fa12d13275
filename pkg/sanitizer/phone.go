package sanitizer

import (
	"propbook/pkg/locale"
	"sort"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is tried first for numbers written without a country code.
const DefaultRegion = "NG"

var regions = servedRegions()

func servedRegions() []string {
	out := []string{DefaultRegion}
	for code := range locale.Countries {
		if code != DefaultRegion {
			out = append(out, code)
		}
	}
	sort.Strings(out[1:])
	return out
}

// NormalizePhone returns phone in E.164 form. A national number is kept only
// if it is valid in one of the served regions.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	for _, region := range regions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}
	return ""
}
