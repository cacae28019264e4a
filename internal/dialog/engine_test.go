package dialog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antoniostano/sara/internal/customers"
	"github.com/antoniostano/sara/internal/delivery"
	"github.com/antoniostano/sara/internal/menu"
	"github.com/antoniostano/sara/internal/orders"
	"github.com/antoniostano/sara/internal/prompts"
	"github.com/antoniostano/sara/internal/runtime"
	"github.com/antoniostano/sara/internal/session"
	"github.com/antoniostano/sara/internal/store"
)

func testPrompts() *prompts.Catalog {
	return prompts.New(map[string]string{
		"ask_items":              "Wat wilt u bestellen?",
		"ask_items_more":         "Wilt u nog iets toevoegen?",
		"item_added":             "{qty} keer {name} toegevoegd.",
		"ask_pizza_which":        "Welke pizza wilt u?",
		"confirm_items":          "U heeft {items}.",
		"ask_items_confirm_ok":   "Klopt dat?",
		"total_after_confirm":    "Het totaal is {amount} euro.",
		"ask_fulfilment":         "Wilt u afhalen of laten bezorgen?",
		"ask_phone_for_delivery": "Wat is uw telefoonnummer?",
		"confirm_lookup_found":   "Ik heb {straat} {huisnr}, {postcode}. Klopt dat?",
		"confirm_lookup_missing": "Ik kon uw adres niet vinden.",
		"ask_postcode_house":     "Wat is uw postcode en huisnummer?",
		"pickup_eta":             "Uw bestelling is klaar om {time}.",
		"delivery_eta":           "De bezorging is rond {time}.",
		"closing_pickup":         "Tot zo!",
		"closing_delivery":       "Eet smakelijk!",
		"fallback1":              "Sorry, kunt u dat herhalen?",
		"reply_start_order":      "Natuurlijk, zegt u het maar.",
	})
}

func testMenu() *menu.Index {
	return menu.NewIndex([]menu.Item{
		{Code: "marg", Name: "Pizza Margherita", Price: 9.5, Category: "pizza"},
		{Code: "salami", Name: "Pizza Salami", Price: 11, Category: "pizza"},
		{Code: "shoarma", Name: "Schotel Shoarma", Price: 14, Category: "schotels"},
		{Code: "cola", Name: "Cola", Price: 2.5, Category: "dranken"},
	})
}

func testDelivery() delivery.Config {
	cfg := delivery.Default()
	cfg.Zones = []delivery.Zone{{Postcodes: []string{"1234"}, Fee: 2.5}}
	return cfg
}

func testCustomers(t *testing.T) *customers.Directory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customers.csv")
	data := "phone,mobile,postcode,street1,house_number\n0612345678,,1234 AB,Teststraat,12\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return customers.NewDirectory(path)
}

type fixture struct {
	eng      *Engine
	sessions *session.Store
	sink     *orders.Sink
	st       runtime.Status
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := store.NewMemory()
	sessions := session.NewStore(kv)
	sink := orders.NewSink(kv, nil, nil, nil)
	eng := NewEngine(Config{
		Sessions:  sessions,
		Menu:      testMenu(),
		Delivery:  testDelivery(),
		Customers: testCustomers(t),
		Prompts:   testPrompts(),
		Sink:      sink,
	})
	st := runtime.Evaluate(time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC), runtime.DefaultOverrides())
	return &fixture{eng: eng, sessions: sessions, sink: sink, st: st}
}

func (f *fixture) say(t *testing.T, callID, utterance string) Turn {
	t.Helper()
	return f.eng.Handle(context.Background(), callID, utterance, f.st)
}

func wants(t *testing.T, turn Turn, next string, fragments ...string) {
	t.Helper()
	if turn.Next != next {
		t.Fatalf("next = %q, want %q (messages: %v)", turn.Next, next, turn.Messages)
	}
	if len(turn.Messages) != len(fragments) {
		t.Fatalf("messages = %v, want %d containing %v", turn.Messages, len(fragments), fragments)
	}
	for i, frag := range fragments {
		if !strings.Contains(turn.Messages[i], frag) {
			t.Fatalf("message %d = %q, want fragment %q", i, turn.Messages[i], frag)
		}
	}
}

func TestHappyPickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wants(t, f.say(t, "CA1", ""), session.StateAskItems, "Wat wilt u bestellen?")
	wants(t, f.say(t, "CA1", "twee margherita"), session.StateConfirmMore,
		"2 keer Pizza Margherita toegevoegd.", "nog iets toevoegen")
	wants(t, f.say(t, "CA1", "nee"), session.StateConfirmSummary,
		"U heeft 2× Pizza Margherita.", "Klopt dat?")
	wants(t, f.say(t, "CA1", "ja"), session.StateFulfilment,
		"Het totaal is 19 euro.", "afhalen of laten bezorgen")

	turn := f.say(t, "CA1", "ik kom het afhalen")
	wants(t, turn, session.StateEnd, "klaar om 19:15", "Tot zo!")
	if !turn.Ended() {
		t.Fatal("turn not marked ended")
	}

	got, err := f.sink.Recent(ctx, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("orders = %v, %v", got, err)
	}
	o := got[0]
	if o.Fulfilment != session.FulfilmentPickup || o.Total != 19 || o.CallID != "CA1" {
		t.Errorf("order = %+v", o)
	}
	if o.EtaReadyAt.Format("15:04") != "19:15" {
		t.Errorf("eta = %v", o.EtaReadyAt)
	}

	// The stored session is finished and emptied; a follow-up utterance
	// starts over.
	if s := f.sessions.Get(ctx, "CA1"); s.State != session.StateEnd || len(s.Items) != 0 {
		t.Fatalf("post-order session = %+v", s)
	}
	wants(t, f.say(t, "CA1", "hallo"), session.StateAskItems, "herhalen")
}

func TestDeliveryWithKnownCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.say(t, "CA2", "")
	wants(t, f.say(t, "CA2", "twee pizza's"), session.StateAskItems, "Welke pizza")
	wants(t, f.say(t, "CA2", "een margherita en een salami"), session.StateConfirmMore,
		"1 keer Pizza Salami toegevoegd.", "nog iets toevoegen")
	wants(t, f.say(t, "CA2", "dat was het"), session.StateConfirmSummary,
		"1× Pizza Margherita, 1× Pizza Salami", "Klopt dat?")
	wants(t, f.say(t, "CA2", "ja"), session.StateFulfilment, "21 euro", "afhalen")
	wants(t, f.say(t, "CA2", "bezorgen graag"), session.StatePhone, "telefoonnummer")
	wants(t, f.say(t, "CA2", "06 12 34 56 78"), session.StateCRMConfirm, "Teststraat 12, 1234 AB")

	turn := f.say(t, "CA2", "ja klopt")
	wants(t, turn, session.StateEnd, "rond 20:00", "23 euro", "Eet smakelijk!")

	got, _ := f.sink.Recent(ctx, 10)
	if len(got) != 1 {
		t.Fatalf("orders = %+v", got)
	}
	o := got[0]
	if o.Fulfilment != session.FulfilmentDelivery || o.Total != 23 {
		t.Errorf("order = %+v", o)
	}
	if o.Customer.Street != "Teststraat" || o.Customer.Tel != "0612345678" {
		t.Errorf("customer = %+v", o.Customer)
	}
}

func TestDeliveryUnknownCustomerAddress(t *testing.T) {
	f := newFixture(t)

	f.say(t, "CA3", "")
	f.say(t, "CA3", "een salami")
	f.say(t, "CA3", "nee")
	f.say(t, "CA3", "ja")
	f.say(t, "CA3", "thuis bezorgen")
	wants(t, f.say(t, "CA3", "0600000000"), session.StateAddress, "niet vinden")

	// Postcode digits must not be mistaken for the house number.
	turn := f.say(t, "CA3", "1234 AB 5")
	wants(t, turn, session.StateEnd, "rond 20:00", "14 euro", "Eet smakelijk!")

	got, _ := f.sink.Recent(context.Background(), 1)
	if len(got) != 1 {
		t.Fatal("no order recorded")
	}
	c := got[0].Customer
	if c.Postcode != "1234AB" || c.HouseNumber != "5" {
		t.Errorf("customer = %+v", c)
	}
	// 11 + zone fee 2.5 rounds to 14 spoken, recorded at cents.
	if got[0].Total != 13.5 {
		t.Errorf("total = %v, want 13.5", got[0].Total)
	}
}

func TestAddressAccumulatesAcrossTurns(t *testing.T) {
	f := newFixture(t)

	f.say(t, "CA4", "")
	f.say(t, "CA4", "een cola")
	f.say(t, "CA4", "nee")
	f.say(t, "CA4", "ja")
	f.say(t, "CA4", "bezorgen")
	f.say(t, "CA4", "geen idee")
	wants(t, f.say(t, "CA4", "postcode 5678 cd"), session.StateAddress, "postcode en huisnummer")
	turn := f.say(t, "CA4", "nummer 7")
	if !turn.Ended() {
		t.Fatalf("turn = %+v, want finalisation", turn)
	}

	got, _ := f.sink.Recent(context.Background(), 1)
	if got[0].Customer.Postcode != "5678CD" || got[0].Customer.HouseNumber != "7" {
		t.Errorf("customer = %+v", got[0].Customer)
	}
	// No zone covers 5678, so no fee.
	if got[0].Total != 2.5 {
		t.Errorf("total = %v, want 2.5", got[0].Total)
	}
}

func TestCRMConfirmRejectedFallsBackToAddress(t *testing.T) {
	f := newFixture(t)

	f.say(t, "CA5", "")
	f.say(t, "CA5", "een cola")
	f.say(t, "CA5", "nee")
	f.say(t, "CA5", "ja")
	f.say(t, "CA5", "bezorgen")
	f.say(t, "CA5", "0612345678")
	// An unclear answer repeats the found address.
	wants(t, f.say(t, "CA5", "wat zegt u"), session.StateCRMConfirm, "Teststraat 12")
	wants(t, f.say(t, "CA5", "nee klopt niet"), session.StateAddress, "niet vinden")
}

func TestSummaryRejectedResetsBasket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.say(t, "CA6", "")
	f.say(t, "CA6", "twee margherita")
	f.say(t, "CA6", "nee")
	wants(t, f.say(t, "CA6", "nee klopt niet"), session.StateAskItems, "Wat wilt u bestellen?")

	if s := f.sessions.Get(ctx, "CA6"); len(s.Items) != 0 || s.Total != 0 {
		t.Fatalf("basket after reset = %+v", s)
	}
	wants(t, f.say(t, "CA6", "een cola"), session.StateConfirmMore,
		"1 keer Cola toegevoegd.", "nog iets toevoegen")
}

func TestConfirmMoreBranches(t *testing.T) {
	f := newFixture(t)

	f.say(t, "CA7", "")
	f.say(t, "CA7", "een cola")
	// "ja" means: more items, back to the open question.
	wants(t, f.say(t, "CA7", "ja"), session.StateAskItems, "Wat wilt u bestellen?")
	// Items spoken directly in confirm_more are appended.
	wants(t, f.say(t, "CA7", "twee margherita"), session.StateConfirmMore,
		"2 keer Pizza Margherita toegevoegd.", "nog iets toevoegen")
	wants(t, f.say(t, "CA7", "doe ook een schotel shoarma"), session.StateConfirmMore,
		"1 keer Schotel Shoarma toegevoegd.", "nog iets toevoegen")
	// Unclear answers re-ask.
	wants(t, f.say(t, "CA7", "misschien"), session.StateConfirmMore, "nog iets toevoegen")
	wants(t, f.say(t, "CA7", "dat is alles"), session.StateConfirmSummary,
		"1× Cola, 2× Pizza Margherita, 1× Schotel Shoarma", "Klopt dat?")
}

func TestComboPickupUsesLongerSLA(t *testing.T) {
	f := newFixture(t)

	f.say(t, "CA8", "")
	f.say(t, "CA8", "een margherita en een shoarma")
	f.say(t, "CA8", "nee")
	f.say(t, "CA8", "ja")
	turn := f.say(t, "CA8", "afhalen")
	wants(t, turn, session.StateEnd, "klaar om 19:30", "Tot zo!")
}

func TestPickupETAWithKitchenDelay(t *testing.T) {
	f := newFixture(t)
	o := runtime.DefaultOverrides()
	o.DelaySchotelsMinutes = 45
	f.st = runtime.Evaluate(time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC), o)

	f.say(t, "CA9", "")
	f.say(t, "CA9", "een cola")
	f.say(t, "CA9", "nee")
	f.say(t, "CA9", "ja")
	wants(t, f.say(t, "CA9", "ophalen"), session.StateEnd, "klaar om 20:00", "Tot zo!")
}

func TestStartOrderPhrase(t *testing.T) {
	f := newFixture(t)
	f.say(t, "CA10", "")
	wants(t, f.say(t, "CA10", "mag ik wat bestellen"), session.StateAskItems, "zegt u het maar")
}

func TestUnknownFulfilmentReasks(t *testing.T) {
	f := newFixture(t)
	f.say(t, "CA11", "")
	f.say(t, "CA11", "een cola")
	f.say(t, "CA11", "nee")
	f.say(t, "CA11", "ja")
	wants(t, f.say(t, "CA11", "per fiets"), session.StateFulfilment, "afhalen of laten bezorgen")
}

func TestPaymentCapturedOnOrder(t *testing.T) {
	f := newFixture(t)

	f.say(t, "CA12", "")
	f.say(t, "CA12", "een cola")
	f.say(t, "CA12", "nee dat was het, ik betaal contant")
	f.say(t, "CA12", "ja")
	turn := f.say(t, "CA12", "afhalen")
	if !turn.Ended() {
		t.Fatalf("turn = %+v", turn)
	}

	got, _ := f.sink.Recent(context.Background(), 1)
	if len(got) != 1 || got[0].Payment != session.PaymentCash {
		t.Fatalf("payment = %+v", got)
	}
}
