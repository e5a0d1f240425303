package model

import "time"

const (
	ListingStatusAvailable = "available"
	ListingStatusScheduled = "scheduled"
)

const (
	WasteVegetableScraps = "vegetable_scraps"
	WasteFruitPeels      = "fruit_peels"
	WastePreparedFood    = "prepared_food"
)

// WasteTypes is the fixed, ordered list offered in the "offer waste" menu.
// Menu option N maps to WasteTypes[N-1].
var WasteTypes = []string{WasteVegetableScraps, WasteFruitPeels, WastePreparedFood}

var wasteLabels = map[string]string{
	WasteVegetableScraps: "vegetable scraps",
	WasteFruitPeels:      "fruit peels",
	WastePreparedFood:    "prepared food",
}

// WasteLabel returns the human readable name shown on handsets and in SMS
func WasteLabel(wasteType string) string {
	if label, ok := wasteLabels[wasteType]; ok {
		return label
	}
	return wasteType
}

// WasteListing is a quantity of food waste offered by a supplier
type WasteListing struct {
	ID             int64     `json:"id"`
	SupplierPhone  string    `json:"supplier_phone"`
	WasteType      string    `json:"waste_type"`
	Quantity       float64   `json:"quantity"` // kilograms
	AvailableUntil time.Time `json:"available_until"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListingView is a listing joined with its supplier's location.
// Location is empty when the supplier never registered.
type ListingView struct {
	WasteListing
	Location string `json:"location"`
}

// ListingFilters narrows operator listing queries
type ListingFilters struct {
	Status    *string
	WasteType *string
}
