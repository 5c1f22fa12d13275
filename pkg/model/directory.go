package model

// Property is the read-only view of a listing returned by the property directory.
type Property struct {
	ID         string `json:"id"`
	LandlordID string `json:"landlord_id"`
	Title      string `json:"title"`
	Active     bool   `json:"active"`
}

// User is the read-only view of an account returned by the user directory.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
