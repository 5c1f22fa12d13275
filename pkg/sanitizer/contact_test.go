package sanitizer

import (
	"testing"

	"propbook/pkg/model"

	"github.com/stretchr/testify/assert"
)

func TestContact(t *testing.T) {
	got := Contact(model.Contact{
		Name:  "  Ada   Lovelace ",
		Email: " Ada@Example.COM ",
		Phone: "+1 (212) 555-1234",
	})

	assert.Equal(t, "Ada Lovelace", got.Name)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "+12125551234", got.Phone)
}

func TestContact_EmptyPhoneStaysEmpty(t *testing.T) {
	got := Contact(model.Contact{Name: "Ada", Email: "ada@example.com"})
	assert.Empty(t, got.Phone)
}
