package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"foodwaste_ussd/internal/metrics"
	"foodwaste_ussd/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	supplierPhone  = "+254700000001"
	collectorPhone = "+254700000002"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type ussdFixture struct {
	users    *MockUserRepository
	listings *MockListingRepository
	sms      *MockSender
	svc      USSDService
}

func newUSSDFixture() *ussdFixture {
	f := &ussdFixture{
		users:    new(MockUserRepository),
		listings: new(MockListingRepository),
		sms:      new(MockSender),
	}
	f.svc = NewUSSDService(f.users, f.listings, f.sms, metrics.New(), zap.NewNop(), USSDOptions{
		Location:       time.UTC,
		Now:            func() time.Time { return fixedNow },
		SMSConcurrency: 2,
		SMSTimeout:     time.Second,
	})
	return f
}

func (f *ussdFixture) assertExpectations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Drain(ctx))
	f.users.AssertExpectations(t)
	f.listings.AssertExpectations(t)
	f.sms.AssertExpectations(t)
}

func handle(t *testing.T, svc USSDService, phone, text string) string {
	t.Helper()
	resp, err := svc.Handle(context.Background(), phone, text)
	require.NoError(t, err)
	return resp.String()
}

func TestUSSD_RootMenu(t *testing.T) {
	f := newUSSDFixture()

	assert.Equal(t, "CON Welcome to Food Waste Management\n"+
		"1. Register as Food Waste Supplier\n"+
		"2. Register as Food Waste Collector\n"+
		"3. Request Food Waste Pickup\n"+
		"4. Offer Available Food Waste\n"+
		"5. Check Collection Locations\n"+
		"6. View Pricing Options\n", handle(t, f.svc, collectorPhone, ""))
}

func TestUSSD_CollectorRegistrationFlow(t *testing.T) {
	f := newUSSDFixture()

	assert.Equal(t, "CON Enter your full name", handle(t, f.svc, collectorPhone, "2"))
	assert.Equal(t, "CON Enter your location", handle(t, f.svc, collectorPhone, "2*Jane"))
	assert.Equal(t, "CON Select feed types needed (comma-separated):\n1. Pig feed\n2. Poultry feed\n3. Rabbit feed",
		handle(t, f.svc, collectorPhone, "2*Jane*Nairobi"))

	f.users.On("CreateIfAbsent", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.PhoneNumber == collectorPhone && u.UserType == model.UserTypeCollector &&
			u.Name == "Jane" && u.Location == "Nairobi" && u.WasteTypes == "1,2"
	})).Return(true, nil).Once()
	f.sms.On("Send", mock.Anything, "Welcome to Food Waste Management! You are registered as a collector.", []string{collectorPhone}).
		Return(nil).Once()

	assert.Equal(t, "END Registration successful! Check your SMS for more information.",
		handle(t, f.svc, collectorPhone, "2*Jane*Nairobi*1,2"))
	f.assertExpectations(t)
}

func TestUSSD_SupplierRegistration(t *testing.T) {
	f := newUSSDFixture()

	assert.Equal(t, "CON Select waste types (comma-separated):\n1. Vegetable scraps\n2. Fruit peels\n3. Prepared food",
		handle(t, f.svc, supplierPhone, "1*Joe*Kisumu"))

	f.users.On("CreateIfAbsent", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.UserType == model.UserTypeSupplier && u.Name == "Joe"
	})).Return(true, nil).Once()
	f.sms.On("Send", mock.Anything, "Welcome to Food Waste Management! You are registered as a supplier.", []string{supplierPhone}).
		Return(errors.New("gateway down")).Once()

	// SMS failure does not change the outcome
	assert.Equal(t, "END Registration successful! Check your SMS for more information.",
		handle(t, f.svc, supplierPhone, "1*Joe*Kisumu*1,3"))
	f.assertExpectations(t)
}

func TestUSSD_DuplicateRegistration(t *testing.T) {
	f := newUSSDFixture()
	f.users.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil).Once()

	assert.Equal(t, "END You are already registered!", handle(t, f.svc, collectorPhone, "2*Jane*Nairobi*1"))
	f.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestUSSD_RegistrationRejectsBlankFields(t *testing.T) {
	f := newUSSDFixture()

	assert.Equal(t, "END Invalid input format.", handle(t, f.svc, collectorPhone, "2* *Nairobi*1"))
	assert.Equal(t, "END Invalid input format.", handle(t, f.svc, collectorPhone, "1*Joe**1"))
	f.users.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}

func TestUSSD_RegistrationStoreError(t *testing.T) {
	f := newUSSDFixture()
	f.users.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, errors.New("db down")).Once()

	_, err := f.svc.Handle(context.Background(), collectorPhone, "2*Jane*Nairobi*1")
	assert.Error(t, err)
}

func TestUSSD_RequestPickup_NoListings(t *testing.T) {
	f := newUSSDFixture()
	f.listings.On("ListAvailable", mock.Anything, 5).Return([]model.ListingView{}, nil).Once()

	assert.Equal(t, "END No waste listings available at the moment.", handle(t, f.svc, collectorPhone, "3"))
	f.assertExpectations(t)
}

func availableListings() []model.ListingView {
	until := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	return []model.ListingView{
		{WasteListing: model.WasteListing{ID: 12, SupplierPhone: supplierPhone, WasteType: model.WasteFruitPeels, Quantity: 2.5, AvailableUntil: until, Status: model.ListingStatusAvailable}, Location: "Nairobi"},
		{WasteListing: model.WasteListing{ID: 7, SupplierPhone: "+254700000009", WasteType: model.WasteVegetableScraps, Quantity: 5, AvailableUntil: until, Status: model.ListingStatusAvailable}},
	}
}

func TestUSSD_RequestPickup_ListsListings(t *testing.T) {
	f := newUSSDFixture()
	f.listings.On("ListAvailable", mock.Anything, 5).Return(availableListings(), nil).Once()

	assert.Equal(t, "CON Available waste:\n"+
		"1. fruit peels - 2.5kg at Nairobi\n"+
		"2. vegetable scraps - 5kg at unknown location\n", handle(t, f.svc, collectorPhone, "3"))
	f.assertExpectations(t)
}

func TestUSSD_RequestPickup_Schedules(t *testing.T) {
	f := newUSSDFixture()
	listings := availableListings()
	scheduled := listings[0].WasteListing
	scheduled.Status = model.ListingStatusScheduled

	f.listings.On("ListAvailable", mock.Anything, 5).Return(listings, nil).Once()
	f.listings.On("Schedule", mock.Anything, int64(12)).Return(&scheduled, nil).Once()
	f.sms.On("Send", mock.Anything, "Pickup scheduled: 2.5kg of fruit peels from Nairobi, available until 18:00.", []string{collectorPhone}).
		Return(nil).Once()
	f.sms.On("Send", mock.Anything, "A collector ("+collectorPhone+") has scheduled pickup of your 2.5kg of fruit peels. Please have it ready by 18:00.", []string{supplierPhone}).
		Return(nil).Once()

	assert.Equal(t, "END Pickup scheduled successfully! Check your SMS for details.", handle(t, f.svc, collectorPhone, "3*1"))
	f.assertExpectations(t)
}

func TestUSSD_RequestPickup_LostRace(t *testing.T) {
	f := newUSSDFixture()
	f.listings.On("ListAvailable", mock.Anything, 5).Return(availableListings(), nil).Once()
	f.listings.On("Schedule", mock.Anything, int64(7)).Return(nil, nil).Once()

	assert.Equal(t, "END Invalid selection or listing no longer available.", handle(t, f.svc, collectorPhone, "3*2"))
	f.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestUSSD_RequestPickup_BeyondAvailable(t *testing.T) {
	f := newUSSDFixture()
	f.listings.On("ListAvailable", mock.Anything, 5).Return(availableListings(), nil).Once()

	assert.Equal(t, "END Invalid selection or listing no longer available.", handle(t, f.svc, collectorPhone, "3*3"))
	f.listings.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestUSSD_RequestPickup_InvalidSelection(t *testing.T) {
	f := newUSSDFixture()

	for _, text := range []string{"3*abc", "3*0", "3*-1", "3*", "3*1*2"} {
		assert.Equal(t, "END Invalid selection.", handle(t, f.svc, collectorPhone, text), text)
	}
	f.listings.AssertNotCalled(t, "ListAvailable", mock.Anything, mock.Anything)
}

func TestUSSD_OfferWasteFlow(t *testing.T) {
	f := newUSSDFixture()

	assert.Equal(t, "CON Select waste type:\n1. Vegetable scraps\n2. Fruit peels\n3. Prepared food", handle(t, f.svc, supplierPhone, "4"))
	assert.Equal(t, "CON Enter quantity in kg:", handle(t, f.svc, supplierPhone, "4*1"))
	assert.Equal(t, "CON Enter available until (HH:MM):", handle(t, f.svc, supplierPhone, "4*1*5"))

	expectedUntil := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	f.listings.On("Create", mock.Anything, mock.MatchedBy(func(l *model.WasteListing) bool {
		return l.SupplierPhone == supplierPhone && l.WasteType == model.WasteVegetableScraps &&
			l.Quantity == 5 && l.AvailableUntil.Equal(expectedUntil)
	})).Run(func(args mock.Arguments) {
		l := args.Get(1).(*model.WasteListing)
		l.ID = 1
		l.Status = model.ListingStatusAvailable
	}).Return(nil).Once()
	f.users.On("ListCollectorPhones", mock.Anything).Return([]string{"+2547001", "+2547002", "+2547003"}, nil).Once()

	msg := "New waste listing: 5kg of vegetable scraps available until 23:59"
	f.sms.On("Send", mock.Anything, msg, []string{"+2547001"}).Return(nil).Once()
	f.sms.On("Send", mock.Anything, msg, []string{"+2547002"}).Return(errors.New("rejected")).Once()
	f.sms.On("Send", mock.Anything, msg, []string{"+2547003"}).Return(nil).Once()

	assert.Equal(t, "END Waste listing created successfully! Collectors will be notified.", handle(t, f.svc, supplierPhone, "4*1*5*23:59"))
	f.assertExpectations(t)
}

// blockingSender holds every Send until release is closed
type blockingSender struct {
	release chan struct{}
	mu      sync.Mutex
	sent    int
}

func (b *blockingSender) Send(ctx context.Context, _ string, _ []string) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
	return nil
}

func TestUSSD_OfferWaste_RepliesBeforeSMSDelivery(t *testing.T) {
	users := new(MockUserRepository)
	listings := new(MockListingRepository)
	sms := &blockingSender{release: make(chan struct{})}
	svc := NewUSSDService(users, listings, sms, nil, zap.NewNop(), USSDOptions{
		Location:       time.UTC,
		Now:            func() time.Time { return fixedNow },
		SMSConcurrency: 4,
		SMSTimeout:     5 * time.Second,
	})

	collectors := make([]string, 8)
	for i := range collectors {
		collectors[i] = fmt.Sprintf("+25470000010%d", i)
	}
	listings.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	users.On("ListCollectorPhones", mock.Anything).Return(collectors, nil).Once()

	done := make(chan model.Response, 1)
	go func() {
		resp, err := svc.Handle(context.Background(), supplierPhone, "4*1*5*23:59")
		assert.NoError(t, err)
		done <- resp
	}()

	select {
	case resp := <-done:
		assert.Equal(t, "END Waste listing created successfully! Collectors will be notified.", resp.String())
	case <-time.After(time.Second):
		close(sms.release)
		t.Fatal("Handle waited for SMS delivery")
	}

	// nothing can be delivered yet, so draining with a short deadline fails
	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, svc.Drain(short))

	close(sms.release)
	ctx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelDrain()
	require.NoError(t, svc.Drain(ctx))

	sms.mu.Lock()
	defer sms.mu.Unlock()
	assert.Equal(t, len(collectors), sms.sent)
}

func TestUSSD_RegistrationRepliesBeforeSMSDelivery(t *testing.T) {
	users := new(MockUserRepository)
	sms := &blockingSender{release: make(chan struct{})}
	svc := NewUSSDService(users, new(MockListingRepository), sms, nil, zap.NewNop(), USSDOptions{SMSTimeout: 5 * time.Second})
	users.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(true, nil).Once()

	start := time.Now()
	resp, err := svc.Handle(context.Background(), collectorPhone, "2*Jane*Nairobi*1")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "END Registration successful! Check your SMS for more information.", resp.String())

	close(sms.release)
	require.NoError(t, svc.Drain(context.Background()))
	assert.Equal(t, 1, sms.sent)
}

func TestUSSD_OfferWaste_CollectorLookupFails(t *testing.T) {
	f := newUSSDFixture()
	f.listings.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.users.On("ListCollectorPhones", mock.Anything).Return(nil, errors.New("timeout")).Once()

	assert.Equal(t, "END Waste listing created successfully! Collectors will be notified.", handle(t, f.svc, supplierPhone, "4*3*12.5*08:00"))
	f.assertExpectations(t)
}

func TestUSSD_OfferWaste_InvalidFormat(t *testing.T) {
	f := newUSSDFixture()

	for _, text := range []string{
		"4*0*5*23:59",
		"4*4*5*23:59",
		"4*x*5*23:59",
		"4*1*abc*23:59",
		"4*1*0*23:59",
		"4*1*-3*23:59",
		"4*1*NaN*23:59",
		"4*1*Inf*23:59",
		"4*1*5*24:00",
		"4*1*5*7:30",
		"4*1*5*23:60",
		"4*1*5*2359",
		"4*1*5*",
	} {
		assert.Equal(t, "END Invalid input format.", handle(t, f.svc, supplierPhone, text), text)
	}
	f.listings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUSSD_OfferWaste_StoreError(t *testing.T) {
	f := newUSSDFixture()
	f.listings.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	_, err := f.svc.Handle(context.Background(), supplierPhone, "4*2*3*12:00")
	assert.Error(t, err)
	f.users.AssertNotCalled(t, "ListCollectorPhones", mock.Anything)
}

func TestUSSD_Locations(t *testing.T) {
	f := newUSSDFixture()
	f.users.On("LocationSummary", mock.Anything).Return([]model.LocationStat{
		{Location: "Kisumu", Suppliers: 2, Collectors: 0},
		{Location: "Nairobi", Suppliers: 1, Collectors: 1},
	}, nil).Once()

	assert.Equal(t, "END Collection Locations:\nKisumu: 2 suppliers, 0 collectors\nNairobi: 1 suppliers, 1 collectors\n",
		handle(t, f.svc, collectorPhone, "5"))
	f.assertExpectations(t)
}

func TestUSSD_Locations_None(t *testing.T) {
	f := newUSSDFixture()
	f.users.On("LocationSummary", mock.Anything).Return([]model.LocationStat{}, nil).Once()

	assert.Equal(t, "END No collection locations registered yet.", handle(t, f.svc, collectorPhone, "5"))
}

func TestUSSD_Pricing(t *testing.T) {
	f := newUSSDFixture()

	assert.Equal(t, "CON Select a pricing option:\n"+
		"1. 5 KG Ksh 2500\n"+
		"2. 10 KG Ksh 9500\n"+
		"3. 15 KG Ksh 15000\n"+
		"4. 20 KG Ksh 20000\n"+
		"5. 30 KG Ksh 30000\n", handle(t, f.svc, collectorPhone, "6"))
	assert.Equal(t, "END You selected: 10 KG Ksh 9500. Our team will contact you to complete the order.",
		handle(t, f.svc, collectorPhone, "6*2"))
	assert.Equal(t, "END Invalid pricing option.", handle(t, f.svc, collectorPhone, "6*9"))
	assert.Equal(t, "END Invalid pricing option.", handle(t, f.svc, collectorPhone, "6*1*1"))
}

func TestUSSD_UnmatchedPaths(t *testing.T) {
	f := newUSSDFixture()

	for _, text := range []string{"7", "0", "99", "abc", "5*1", "1*a*b*c*d", "4*1*5*23:59*x", "*"} {
		assert.Equal(t, "END Invalid input. Please dial again.", handle(t, f.svc, collectorPhone, text), text)
	}
}

func TestParseQuantity(t *testing.T) {
	q, ok := parseQuantity(" 1e1 ")
	assert.True(t, ok)
	assert.Equal(t, 10.0, q)

	_, ok = parseQuantity("")
	assert.False(t, ok)
}
