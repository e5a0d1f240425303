package model

import "time"

const (
	UserTypeSupplier  = "supplier"
	UserTypeCollector = "collector"
)

// Operator role carried in admin tokens
const RoleAdmin = "admin"

// User is a registered supplier or collector, keyed by phone number
type User struct {
	PhoneNumber string    `json:"phone_number"`
	UserType    string    `json:"user_type"` // "supplier" or "collector"
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	WasteTypes  string    `json:"waste_types"` // free-text comma list as typed on the handset
	CreatedAt   time.Time `json:"created_at"`
}

// LocationStat counts registered users per location
type LocationStat struct {
	Location   string `json:"location"`
	Suppliers  int64  `json:"suppliers"`
	Collectors int64  `json:"collectors"`
}
