package locale

const (
	DefaultTimezone = "UTC"
)

type Country struct {
	Code            string // ISO 3166-1 alpha-2 country code (e.g., "NG", "GB")
	Name            string
	DefaultTimezone string // IANA timezone identifier (e.g., "Africa/Lagos")
}

var (
	Countries = map[string]Country{
		"NG": {Code: "NG", Name: "Nigeria", DefaultTimezone: "Africa/Lagos"},
		"GH": {Code: "GH", Name: "Ghana", DefaultTimezone: "Africa/Accra"},
		"KE": {Code: "KE", Name: "Kenya", DefaultTimezone: "Africa/Nairobi"},
		"ZA": {Code: "ZA", Name: "South Africa", DefaultTimezone: "Africa/Johannesburg"},
		"GB": {Code: "GB", Name: "United Kingdom", DefaultTimezone: "Europe/London"},
		"US": {Code: "US", Name: "United States", DefaultTimezone: "America/New_York"},
	}
)
