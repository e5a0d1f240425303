package service

// Screen texts. The gateway prefix (CON/END) is added by model.Response.
const (
	rootMenu = "Welcome to Food Waste Management\n" +
		"1. Register as Food Waste Supplier\n" +
		"2. Register as Food Waste Collector\n" +
		"3. Request Food Waste Pickup\n" +
		"4. Offer Available Food Waste\n" +
		"5. Check Collection Locations\n" +
		"6. View Pricing Options\n"

	promptName     = "Enter your full name"
	promptLocation = "Enter your location"

	supplierWasteMenu = "Select waste types (comma-separated):\n" +
		"1. Vegetable scraps\n" +
		"2. Fruit peels\n" +
		"3. Prepared food"
	collectorFeedMenu = "Select feed types needed (comma-separated):\n" +
		"1. Pig feed\n" +
		"2. Poultry feed\n" +
		"3. Rabbit feed"

	offerWasteMenu = "Select waste type:\n" +
		"1. Vegetable scraps\n" +
		"2. Fruit peels\n" +
		"3. Prepared food"
	promptQuantity       = "Enter quantity in kg:"
	promptAvailableUntil = "Enter available until (HH:MM):"

	pricingMenuHeader = "Select a pricing option:\n"

	msgRegistered         = "Registration successful! Check your SMS for more information."
	msgAlreadyRegistered  = "You are already registered!"
	msgNoListings         = "No waste listings available at the moment."
	msgAvailableHeader    = "Available waste:\n"
	msgPickupScheduled    = "Pickup scheduled successfully! Check your SMS for details."
	msgListingUnavailable = "Invalid selection or listing no longer available."
	msgInvalidSelection   = "Invalid selection."
	msgListingCreated     = "Waste listing created successfully! Collectors will be notified."
	msgInvalidFormat      = "Invalid input format."
	msgLocationsHeader    = "Collection Locations:\n"
	msgNoLocations        = "No collection locations registered yet."
	msgInvalidPricing     = "Invalid pricing option."
	msgInvalidInput       = "Invalid input. Please dial again."
	msgPricingSelected    = "You selected: %s. Our team will contact you to complete the order."
	unknownLocation       = "unknown location"
)

// pricingTiers in menu order; option N is pricingTiers[N-1]
var pricingTiers = []string{
	"5 KG Ksh 2500",
	"10 KG Ksh 9500",
	"15 KG Ksh 15000",
	"20 KG Ksh 20000",
	"30 KG Ksh 30000",
}

// SMS bodies
const (
	smsWelcome         = "Welcome to Food Waste Management! You are registered as a %s."
	smsNewListing      = "New waste listing: %skg of %s available until %s"
	smsPickupSupplier  = "A collector (%s) has scheduled pickup of your %skg of %s. Please have it ready by %s."
	smsPickupCollector = "Pickup scheduled: %skg of %s from %s, available until %s."
)
