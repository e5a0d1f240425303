package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"foodwaste_ussd/internal/metrics"
	"foodwaste_ussd/internal/model"
	"foodwaste_ussd/internal/notifier"
	"foodwaste_ussd/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	pathSeparator = "*"
	// pickupListSize is how many listings the "request pickup" menu shows
	pickupListSize = 5
)

var hhmm = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// top-level option -> metrics label
var menuLabels = map[string]string{
	"1": "register_supplier",
	"2": "register_collector",
	"3": "request_pickup",
	"4": "offer_waste",
	"5": "locations",
	"6": "pricing",
}

// USSDService maps a session's accumulated input path to the next screen.
// The returned error is reserved for infrastructure failures; every user-facing
// outcome, including invalid input, is a Response.
//
// SMS triggered by a request are sent in the background after Handle returns.
// Drain blocks until those sends finish or ctx is done.
type USSDService interface {
	Handle(ctx context.Context, phone, text string) (model.Response, error)
	Drain(ctx context.Context) error
}

// USSDOptions tunes the dispatcher
type USSDOptions struct {
	Location       *time.Location // zone for "available until" timestamps
	Now            func() time.Time
	SMSConcurrency int
	SMSTimeout     time.Duration
}

type ussdService struct {
	users    repository.UserRepository
	listings repository.ListingRepository
	sms      notifier.Sender
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     USSDOptions

	pending sync.WaitGroup // in-flight SMS dispatches
}

// NewUSSDService creates a new USSDService
func NewUSSDService(users repository.UserRepository, listings repository.ListingRepository, sms notifier.Sender,
	m *metrics.Metrics, logger *zap.Logger, opts USSDOptions) USSDService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SMSConcurrency < 1 {
		opts.SMSConcurrency = 1
	}
	if opts.SMSTimeout <= 0 {
		opts.SMSTimeout = 10 * time.Second
	}
	return &ussdService{
		users:    users,
		listings: listings,
		sms:      sms,
		metrics:  m,
		logger:   logger.Named("ussd"),
		opts:     opts,
	}
}

func (s *ussdService) Handle(ctx context.Context, phone, text string) (model.Response, error) {
	if text == "" {
		s.countRequest("root")
		return model.Con(rootMenu), nil
	}

	parts := strings.Split(text, pathSeparator)
	label, ok := menuLabels[parts[0]]
	if !ok {
		label = "unknown"
	}
	s.countRequest(label)

	switch parts[0] {
	case "1", "2":
		return s.register(ctx, phone, parts)
	case "3":
		return s.requestPickup(ctx, phone, parts)
	case "4":
		return s.offerWaste(ctx, phone, parts)
	case "5":
		if len(parts) == 1 {
			return s.locations(ctx)
		}
	case "6":
		return s.pricing(parts)
	}
	return model.End(msgInvalidInput), nil
}

// register walks type -> name -> location -> waste types
func (s *ussdService) register(ctx context.Context, phone string, parts []string) (model.Response, error) {
	userType := model.UserTypeSupplier
	if parts[0] == "2" {
		userType = model.UserTypeCollector
	}

	switch len(parts) {
	case 1:
		return model.Con(promptName), nil
	case 2:
		return model.Con(promptLocation), nil
	case 3:
		if userType == model.UserTypeSupplier {
			return model.Con(supplierWasteMenu), nil
		}
		return model.Con(collectorFeedMenu), nil
	case 4:
	default:
		return model.End(msgInvalidInput), nil
	}

	name := strings.TrimSpace(parts[1])
	location := strings.TrimSpace(parts[2])
	if name == "" || location == "" {
		return model.End(msgInvalidFormat), nil
	}

	user := &model.User{
		PhoneNumber: phone,
		UserType:    userType,
		Name:        name,
		Location:    location,
		WasteTypes:  strings.TrimSpace(parts[3]),
	}
	created, err := s.users.CreateIfAbsent(ctx, user)
	if err != nil {
		return model.Response{}, fmt.Errorf("failed to register user: %w", err)
	}
	if !created {
		return model.End(msgAlreadyRegistered), nil
	}
	if s.metrics != nil {
		s.metrics.Registrations.WithLabelValues(userType).Inc()
	}
	s.logger.Info("User registered", zap.String("phone", phone), zap.String("user_type", userType), zap.String("location", location))

	s.notify(ctx, fmt.Sprintf(smsWelcome, userType), phone)
	return model.End(msgRegistered), nil
}

// requestPickup lists available waste ("3") or schedules the chosen listing ("3*N")
func (s *ussdService) requestPickup(ctx context.Context, phone string, parts []string) (model.Response, error) {
	switch len(parts) {
	case 1:
		listings, err := s.listings.ListAvailable(ctx, pickupListSize)
		if err != nil {
			return model.Response{}, fmt.Errorf("failed to list available waste: %w", err)
		}
		if len(listings) == 0 {
			return model.End(msgNoListings), nil
		}
		var b strings.Builder
		b.WriteString(msgAvailableHeader)
		for i, l := range listings {
			fmt.Fprintf(&b, "%d. %s - %skg at %s\n", i+1, model.WasteLabel(l.WasteType), formatQuantity(l.Quantity), displayLocation(l.Location))
		}
		return model.Con(b.String()), nil
	case 2:
	default:
		return model.End(msgInvalidSelection), nil
	}

	position, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || position < 1 {
		return model.End(msgInvalidSelection), nil
	}

	// Resolve the on-screen position to a listing id, then claim that id.
	// The claim is a compare-and-swap, so two collectors racing for the same
	// listing cannot both win.
	listings, err := s.listings.ListAvailable(ctx, pickupListSize)
	if err != nil {
		return model.Response{}, fmt.Errorf("failed to resolve pickup selection: %w", err)
	}
	if position > len(listings) {
		return model.End(msgListingUnavailable), nil
	}
	chosen := listings[position-1]

	scheduled, err := s.listings.Schedule(ctx, chosen.ID)
	if err != nil {
		return model.Response{}, fmt.Errorf("failed to schedule pickup: %w", err)
	}
	if scheduled == nil {
		return model.End(msgListingUnavailable), nil
	}
	if s.metrics != nil {
		s.metrics.PickupsScheduled.Inc()
	}
	s.logger.Info("Pickup scheduled", zap.Int64("listing_id", scheduled.ID), zap.String("collector", phone))

	qty := formatQuantity(scheduled.Quantity)
	waste := model.WasteLabel(scheduled.WasteType)
	until := scheduled.AvailableUntil.In(s.opts.Location).Format("15:04")
	s.notify(ctx, fmt.Sprintf(smsPickupCollector, qty, waste, displayLocation(chosen.Location), until), phone)
	if scheduled.SupplierPhone != "" && scheduled.SupplierPhone != phone {
		s.notify(ctx, fmt.Sprintf(smsPickupSupplier, phone, qty, waste, until), scheduled.SupplierPhone)
	}
	return model.End(msgPickupScheduled), nil
}

// offerWaste walks waste type -> quantity -> available-until and creates a listing
func (s *ussdService) offerWaste(ctx context.Context, phone string, parts []string) (model.Response, error) {
	switch len(parts) {
	case 1:
		return model.Con(offerWasteMenu), nil
	case 2:
		return model.Con(promptQuantity), nil
	case 3:
		return model.Con(promptAvailableUntil), nil
	case 4:
	default:
		return model.End(msgInvalidInput), nil
	}

	wasteType, ok := parseWasteType(parts[1])
	if !ok {
		return model.End(msgInvalidFormat), nil
	}
	quantity, ok := parseQuantity(parts[2])
	if !ok {
		return model.End(msgInvalidFormat), nil
	}
	untilText := strings.TrimSpace(parts[3])
	availableUntil, ok := s.parseAvailableUntil(untilText)
	if !ok {
		return model.End(msgInvalidFormat), nil
	}

	listing := &model.WasteListing{
		SupplierPhone:  phone,
		WasteType:      wasteType,
		Quantity:       quantity,
		AvailableUntil: availableUntil,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return model.Response{}, fmt.Errorf("failed to create waste listing: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ListingsCreated.Inc()
	}
	s.logger.Info("Waste listing created", zap.Int64("listing_id", listing.ID), zap.String("supplier", phone),
		zap.String("waste_type", wasteType), zap.Float64("quantity_kg", quantity))

	s.notifyCollectors(ctx, fmt.Sprintf(smsNewListing, formatQuantity(quantity), model.WasteLabel(wasteType), untilText))
	return model.End(msgListingCreated), nil
}

func (s *ussdService) locations(ctx context.Context) (model.Response, error) {
	stats, err := s.users.LocationSummary(ctx)
	if err != nil {
		return model.Response{}, fmt.Errorf("failed to summarise locations: %w", err)
	}
	if len(stats) == 0 {
		return model.End(msgNoLocations), nil
	}
	var b strings.Builder
	b.WriteString(msgLocationsHeader)
	for _, st := range stats {
		fmt.Fprintf(&b, "%s: %d suppliers, %d collectors\n", st.Location, st.Suppliers, st.Collectors)
	}
	return model.End(b.String()), nil
}

func (s *ussdService) pricing(parts []string) (model.Response, error) {
	switch len(parts) {
	case 1:
		var b strings.Builder
		b.WriteString(pricingMenuHeader)
		for i, tier := range pricingTiers {
			fmt.Fprintf(&b, "%d. %s\n", i+1, tier)
		}
		return model.Con(b.String()), nil
	case 2:
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n < 1 || n > len(pricingTiers) {
			return model.End(msgInvalidPricing), nil
		}
		return model.End(fmt.Sprintf(msgPricingSelected, pricingTiers[n-1])), nil
	}
	return model.End(msgInvalidPricing), nil
}

// dispatch runs fn in the background with a context that outlives the request
// but is bounded by SMSTimeout
func (s *ussdService) dispatch(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, s.opts.SMSTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// notify sends one best-effort SMS; failures are logged and counted only
func (s *ussdService) notify(ctx context.Context, message string, recipients ...string) {
	s.dispatch(ctx, func(ctx context.Context) {
		s.send(ctx, message, recipients)
	})
}

// notifyCollectors sends the message to every collector, one SMS each,
// with bounded concurrency
func (s *ussdService) notifyCollectors(ctx context.Context, message string) {
	s.dispatch(ctx, func(ctx context.Context) {
		phones, err := s.users.ListCollectorPhones(ctx)
		if err != nil {
			s.logger.Error("Failed to load collectors for notification", zap.Error(err))
			return
		}
		if len(phones) == 0 {
			s.logger.Info("No collectors to notify")
			return
		}

		var g errgroup.Group
		g.SetLimit(s.opts.SMSConcurrency)
		for _, phone := range phones {
			g.Go(func() error {
				s.send(ctx, message, []string{phone})
				return nil
			})
		}
		_ = g.Wait()
	})
}

func (s *ussdService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending SMS not drained: %w", ctx.Err())
	}
}

func (s *ussdService) send(ctx context.Context, message string, recipients []string) {
	if err := s.sms.Send(ctx, message, recipients); err != nil {
		s.logger.Warn("Error sending SMS", zap.Strings("to", recipients), zap.Error(err))
		s.countSMS("failed")
		return
	}
	s.countSMS("sent")
}

func (s *ussdService) countRequest(label string) {
	if s.metrics != nil {
		s.metrics.Requests.WithLabelValues(label).Inc()
	}
}

func (s *ussdService) countSMS(result string) {
	if s.metrics != nil {
		s.metrics.SMSSent.WithLabelValues(result).Inc()
	}
}

// parseWasteType maps a 1-based menu choice to a waste type
func parseWasteType(choice string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || n < 1 || n > len(model.WasteTypes) {
		return "", false
	}
	return model.WasteTypes[n-1], true
}

// parseQuantity accepts a finite, strictly positive number of kilograms
func parseQuantity(text string) (float64, bool) {
	q, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return 0, false
	}
	return q, true
}

// parseAvailableUntil combines an HH:MM string with today's date
func (s *ussdService) parseAvailableUntil(text string) (time.Time, bool) {
	if !hhmm.MatchString(text) {
		return time.Time{}, false
	}
	clock, err := time.Parse("15:04", text)
	if err != nil {
		return time.Time{}, false
	}
	today := s.opts.Now().In(s.opts.Location)
	return time.Date(today.Year(), today.Month(), today.Day(), clock.Hour(), clock.Minute(), 0, 0, s.opts.Location), true
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func displayLocation(location string) string {
	if location == "" {
		return unknownLocation
	}
	return location
}
