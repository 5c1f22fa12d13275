package sanitizer

import (
	"propbook/pkg/model"
	"strings"
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Contact returns c with every field normalized. An empty phone stays empty.
func Contact(c model.Contact) model.Contact {
	return model.Contact{
		Name:  NormalizeName(c.Name),
		Email: NormalizeEmail(c.Email),
		Phone: NormalizePhone(c.Phone),
	}
}
