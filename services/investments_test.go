package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"realestate-token-api/models"
)

func TestCreateInvestmentScenarioSingleProperty(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()

	alice := createUser(t, db, "alice@example.com", false)
	p1 := createProperty(t, db, "Harbor Lofts", "100.00", 1000, 1000)

	inv, err := svc.Create(ctx, alice, CreateInvestmentInput{
		PropertyID:       p1.ID,
		TokensOwned:      100,
		InvestmentAmount: decPtr("10000.00"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if inv.PurchaseDate.IsZero() {
		t.Error("Expected purchase_date to be stamped")
	}
	if !inv.Earnings.IsZero() || inv.ROI != 0 {
		t.Errorf("Expected zero earnings and roi, got %s / %v", inv.Earnings, inv.ROI)
	}

	summary, err := svc.Portfolio(ctx, alice)
	if err != nil {
		t.Fatalf("Portfolio failed: %v", err)
	}
	if !summary.TotalInvested.Equal(dec("10000.00")) {
		t.Errorf("TotalInvested = %s, want 10000.00", summary.TotalInvested)
	}
	if !summary.TotalEarnings.Equal(dec("0")) {
		t.Errorf("TotalEarnings = %s, want 0", summary.TotalEarnings)
	}
	if summary.TotalProperties != 1 || summary.TotalTokens != 100 {
		t.Errorf("Got properties=%d tokens=%d, want 1/100", summary.TotalProperties, summary.TotalTokens)
	}
	if len(summary.Investments) != 1 || summary.Investments[0].PropertyTitle != p1.Title {
		t.Fatalf("Unexpected detail list: %+v", summary.Investments)
	}
	if summary.Investments[0].PropertyImage != nil {
		t.Errorf("Expected no image, got %q", *summary.Investments[0].PropertyImage)
	}
}

func TestCreateInvestmentScenarioSamePropertyTwice(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()

	bob := createUser(t, db, "bob@example.com", false)
	p2 := createProperty(t, db, "Canal House", "100.00", 500, 500)

	for _, tokens := range []int64{30, 20} {
		if _, err := svc.Create(ctx, bob, CreateInvestmentInput{PropertyID: p2.ID, TokensOwned: tokens}); err != nil {
			t.Fatalf("Create(%d) failed: %v", tokens, err)
		}
	}

	summary, err := svc.Portfolio(ctx, bob)
	if err != nil {
		t.Fatalf("Portfolio failed: %v", err)
	}
	if !summary.TotalInvested.Equal(dec("5000.00")) {
		t.Errorf("TotalInvested = %s, want 5000.00", summary.TotalInvested)
	}
	if summary.TotalProperties != 1 {
		t.Errorf("TotalProperties = %d, want 1", summary.TotalProperties)
	}
	if summary.TotalTokens != 50 {
		t.Errorf("TotalTokens = %d, want 50", summary.TotalTokens)
	}
	if len(summary.Investments) != 2 {
		t.Errorf("Expected 2 detail entries, got %d", len(summary.Investments))
	}
}

func TestCreateInvestmentRequiresAuthentication(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	p := createProperty(t, db, "Anon Target", "10.00", 100, 100)

	_, err := svc.Create(context.Background(), Identity{}, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 1})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if n := countRows(t, db, &models.Investment{}, "1 = 1"); n != 0 {
		t.Errorf("Expected no investment rows, got %d", n)
	}
	if got := reloadProperty(t, db, p.ID).AvailableTokens; got != 100 {
		t.Errorf("AvailableTokens = %d, want 100", got)
	}
}

func TestCreateInvestmentValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	user := createUser(t, db, "val@example.com", false)
	p := createProperty(t, db, "Validation Tower", "50.00", 100, 100)

	tests := []struct {
		name  string
		input CreateInvestmentInput
		field string
	}{
		{"zero tokens", CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 0}, "tokens_owned"},
		{"negative tokens", CreateInvestmentInput{PropertyID: p.ID, TokensOwned: -5}, "tokens_owned"},
		{"zero amount", CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 1, InvestmentAmount: decPtr("0")}, "investment_amount"},
		{"negative amount", CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 1, InvestmentAmount: decPtr("-50.00")}, "investment_amount"},
		{"amount mismatch", CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 2, InvestmentAmount: decPtr("99.99")}, "investment_amount"},
		{"missing property", CreateInvestmentInput{TokensOwned: 1}, "property"},
		{"three decimals", CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 1, InvestmentAmount: decPtr("50.001")}, "investment_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), user, tt.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error on %q, got %+v", tt.field, verr.Fields)
			}
		})
	}

	if n := countRows(t, db, &models.Investment{}, "1 = 1"); n != 0 {
		t.Errorf("Expected no investment rows, got %d", n)
	}
	if n := countRows(t, db, &models.Transaction{}, "1 = 1"); n != 0 {
		t.Errorf("Expected no transaction rows, got %d", n)
	}
	if got := reloadProperty(t, db, p.ID).AvailableTokens; got != 100 {
		t.Errorf("AvailableTokens = %d, want 100", got)
	}
}

func TestCreateInvestmentUnknownProperty(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	user := createUser(t, db, "ghost@example.com", false)

	for _, id := range []string{"not-a-uuid", "5f1b7a52-3c66-4a38-9d57-8a7b2f1e9c10"} {
		_, err := svc.Create(context.Background(), user, CreateInvestmentInput{PropertyID: id, TokensOwned: 1})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Create(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestCreateInvestmentReservesTokens(t *testing.T) {
	db := newTestDB(t)
	events := &recordingPublisher{}
	svc := NewInvestmentService(db, events)
	ctx := context.Background()
	user := createUser(t, db, "reserve@example.com", false)
	p := createProperty(t, db, "Reserve Court", "25.00", 200, 200)

	inv, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 50})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !inv.InvestmentAmount.Equal(dec("1250.00")) {
		t.Errorf("InvestmentAmount = %s, want 1250.00", inv.InvestmentAmount)
	}

	got := reloadProperty(t, db, p.ID)
	if got.AvailableTokens != 150 {
		t.Errorf("AvailableTokens = %d, want 150", got.AvailableTokens)
	}
	if got.FundingProgress != 25 {
		t.Errorf("FundingProgress = %v, want 25", got.FundingProgress)
	}
	if got.Status != models.PropertyStatusAvailable {
		t.Errorf("Status = %q, want available", got.Status)
	}

	var entries []models.Transaction
	db.Where("user_id = ?", user.UserID).Find(&entries)
	if len(entries) != 1 {
		t.Fatalf("Expected one ledger entry, got %d", len(entries))
	}
	if entries[0].Type != models.TransactionTypeInvestment ||
		entries[0].Status != models.TransactionStatusCompleted ||
		!entries[0].Amount.Equal(dec("1250.00")) {
		t.Errorf("Unexpected ledger entry: %+v", entries[0])
	}

	types := events.types()
	if len(types) != 2 || types[0] != EventInvestmentCreated || types[1] != EventTransactionCreated {
		t.Errorf("Unexpected events: %v", types)
	}
}

func TestCreateInvestmentConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	user := createUser(t, db, "conflict@example.com", false)

	p := createProperty(t, db, "Last Tokens", "10.00", 100, 10)
	if _, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 11}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for oversell, got %v", err)
	}

	soon := createProperty(t, db, "Coming Soon Plaza", "10.00", 100, 100)
	db.Model(soon).Update("status", models.PropertyStatusComingSoon)
	if _, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: soon.ID, TokensOwned: 1}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for coming-soon property, got %v", err)
	}

	if n := countRows(t, db, &models.Investment{}, "1 = 1"); n != 0 {
		t.Errorf("Expected no investment rows, got %d", n)
	}
}

func TestCreateInvestmentLastTokensFundsProperty(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	user := createUser(t, db, "last@example.com", false)
	p := createProperty(t, db, "Sold Out Suites", "10.00", 100, 40)

	if _, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 40}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got := reloadProperty(t, db, p.ID)
	if got.AvailableTokens != 0 || got.FundingProgress != 100 {
		t.Errorf("Got available=%d progress=%v, want 0/100", got.AvailableTokens, got.FundingProgress)
	}
	if got.Status != models.PropertyStatusFullyFunded {
		t.Errorf("Status = %q, want fully-funded", got.Status)
	}

	if _, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 1}); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict on a funded property, got %v", err)
	}
}

// The sqlite test pool holds one connection, so these buyers queue rather than
// overlap. TestReserveTokensRejectsStaleSnapshot covers the interleaved case.
func TestCreateInvestmentConcurrentBuyersNeverOversell(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	p := createProperty(t, db, "Race Condition Row", "1.00", 100, 100)

	buyers := make([]Identity, 10)
	for i := range buyers {
		buyers[i] = createUser(t, db, "buyer"+string(rune('a'+i))+"@example.com", false)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicted := 0, 0
	for _, buyer := range buyers {
		wg.Add(1)
		go func(caller Identity) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), caller, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 20})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicted++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(buyer)
	}
	wg.Wait()

	if succeeded != 5 || conflicted != 5 {
		t.Errorf("Got %d successes and %d conflicts, want 5/5", succeeded, conflicted)
	}
	if got := reloadProperty(t, db, p.ID).AvailableTokens; got != 0 {
		t.Errorf("AvailableTokens = %d, want 0", got)
	}
}

func TestReserveTokensRejectsStaleSnapshot(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	p := createProperty(t, db, "Stale Read Mews", "1.00", 10, 10)

	snapshot := reloadProperty(t, db, p.ID)
	other := createUser(t, db, "first@example.com", false)
	if _, err := svc.Create(ctx, other, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 8}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// snapshot still claims 10 tokens, the row only has 2.
	if err := reserveTokens(db, snapshot, 5); !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	got := reloadProperty(t, db, p.ID)
	if got.AvailableTokens != 2 || got.FundingProgress != 80 {
		t.Errorf("available=%d funding=%.1f, want 2 and 80.0", got.AvailableTokens, got.FundingProgress)
	}

	if err := reserveTokens(db, snapshot, 2); err != nil {
		t.Fatalf("Expected the remaining tokens to reserve, got %v", err)
	}
	if got := reloadProperty(t, db, p.ID); got.AvailableTokens != 0 || got.Status != models.PropertyStatusFullyFunded {
		t.Errorf("available=%d status=%s, want 0 and fully-funded", got.AvailableTokens, got.Status)
	}
}

func TestListInvestmentsIsolatesUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	u1 := createUser(t, db, "u1@example.com", false)
	u2 := createUser(t, db, "u2@example.com", false)
	staff := createUser(t, db, "staff@example.com", true)
	p := createProperty(t, db, "Shared Estate", "10.00", 1000, 1000)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, u1, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 1}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	other, err := svc.Create(ctx, u2, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 2})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	list, err := svc.List(ctx, u1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 investments, got %d", len(list))
	}
	for i, inv := range list {
		if inv.UserID != u1.UserID {
			t.Errorf("List returned investment of %s", inv.UserID)
		}
		if i > 0 && list[i-1].PurchaseDate.After(inv.PurchaseDate) {
			t.Error("Expected investments ordered by purchase_date")
		}
	}

	if _, err := svc.Get(ctx, u1, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound reading another user's investment, got %v", err)
	}

	staffList, err := svc.List(ctx, staff)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(staffList) != 0 {
		t.Errorf("Staff should only see their own investments, got %d", len(staffList))
	}

	if _, err := svc.List(ctx, Identity{}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestPortfolioEmptyAndDeterministic(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	user := createUser(t, db, "empty@example.com", false)

	summary, err := svc.Portfolio(ctx, user)
	if err != nil {
		t.Fatalf("Portfolio failed: %v", err)
	}
	if !summary.TotalInvested.IsZero() || !summary.TotalEarnings.IsZero() ||
		summary.TotalProperties != 0 || summary.TotalTokens != 0 {
		t.Errorf("Expected zero summary, got %+v", summary)
	}
	if summary.Investments == nil || len(summary.Investments) != 0 {
		t.Errorf("Expected empty, non-nil detail list, got %#v", summary.Investments)
	}

	p := createProperty(t, db, "Stable Gardens", "33.33", 100, 100)
	db.Create(&models.PropertyImage{ID: "2d0c8f4e-1111-4c6e-9a55-000000000002", PropertyID: p.ID, URL: "https://cdn.test/second.jpg", Position: 1})
	db.Create(&models.PropertyImage{ID: "2d0c8f4e-1111-4c6e-9a55-000000000001", PropertyID: p.ID, URL: "https://cdn.test/first.jpg", Position: 0})
	if _, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 3}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, _ := svc.Portfolio(ctx, user)
	second, _ := svc.Portfolio(ctx, user)
	if !first.TotalInvested.Equal(second.TotalInvested) || first.TotalTokens != second.TotalTokens {
		t.Error("Expected identical results for repeated portfolio reads")
	}
	if !first.TotalInvested.Equal(dec("99.99")) {
		t.Errorf("TotalInvested = %s, want 99.99", first.TotalInvested)
	}
	if img := first.Investments[0].PropertyImage; img == nil || *img != "https://cdn.test/first.jpg" {
		t.Errorf("Expected first image by position, got %v", img)
	}
}

func TestUpdateAccrual(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	user := createUser(t, db, "accrue@example.com", false)
	p := createProperty(t, db, "Yield House", "100.00", 100, 100)
	inv, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 10})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	job := ServiceIdentity("test")
	roi := 1.5
	if _, err := svc.UpdateAccrual(ctx, user, inv.ID, AccrualInput{ROI: &roi}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for the owner, got %v", err)
	}
	if _, err := svc.UpdateAccrual(ctx, Identity{}, inv.ID, AccrualInput{ROI: &roi}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for anonymous, got %v", err)
	}

	updated, err := svc.UpdateAccrual(ctx, job, inv.ID, AccrualInput{Earnings: decPtr("15.00"), ROI: &roi})
	if err != nil {
		t.Fatalf("UpdateAccrual failed: %v", err)
	}
	if !updated.Earnings.Equal(dec("15.00")) || updated.ROI != 1.5 {
		t.Errorf("Got earnings=%s roi=%v", updated.Earnings, updated.ROI)
	}
	if n := countRows(t, db, &models.Transaction{}, "user_id = ? AND type = ?", user.UserID, models.TransactionTypeEarning); n != 1 {
		t.Errorf("Expected one earning entry, got %d", n)
	}

	// Lowering earnings is a correction, not a credit.
	if _, err := svc.UpdateAccrual(ctx, job, inv.ID, AccrualInput{Earnings: decPtr("10.00")}); err != nil {
		t.Fatalf("UpdateAccrual failed: %v", err)
	}
	if n := countRows(t, db, &models.Transaction{}, "user_id = ? AND type = ?", user.UserID, models.TransactionTypeEarning); n != 1 {
		t.Errorf("Expected still one earning entry, got %d", n)
	}

	var verr *ValidationError
	if _, err := svc.UpdateAccrual(ctx, job, inv.ID, AccrualInput{Earnings: decPtr("-1.00")}); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for negative earnings, got %v", err)
	}
	if _, err := svc.UpdateAccrual(ctx, job, inv.ID, AccrualInput{}); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for empty input, got %v", err)
	}
	if _, err := svc.UpdateAccrual(ctx, job, "5f1b7a52-3c66-4a38-9d57-8a7b2f1e9c10", AccrualInput{ROI: &roi}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	summary, _ := svc.Portfolio(ctx, user)
	if !summary.TotalEarnings.Equal(dec("10.00")) {
		t.Errorf("TotalEarnings = %s, want 10.00", summary.TotalEarnings)
	}
}

func TestUpdateAccrualRepeatedPassCreditsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	user := createUser(t, db, "twice@example.com", false)
	p := createProperty(t, db, "Twin Runs", "100.00", 100, 100)
	inv, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 10})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Two passes computed the same target from the same stale snapshot.
	target := decPtr("12.34")
	for _, name := range []string{"scheduler", "internal"} {
		if _, err := svc.UpdateAccrual(ctx, ServiceIdentity(name), inv.ID, AccrualInput{Earnings: target}); err != nil {
			t.Fatalf("UpdateAccrual (%s) failed: %v", name, err)
		}
	}

	var entries []models.Transaction
	if err := db.Where("user_id = ? AND type = ?", user.UserID, models.TransactionTypeEarning).Find(&entries).Error; err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].Amount.Equal(dec("12.34")) {
		t.Fatalf("Expected a single 12.34 credit, got %+v", entries)
	}
}

func TestAdjustRequiresStaff(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	owner := createUser(t, db, "owner@example.com", false)
	staff := createUser(t, db, "admin@example.com", true)
	p := createProperty(t, db, "Adjusted Acres", "10.00", 100, 100)
	inv, _ := svc.Create(ctx, owner, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 1})

	roi := 2.0
	if _, err := svc.Adjust(ctx, owner, inv.ID, AccrualInput{ROI: &roi}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for owner, got %v", err)
	}
	if _, err := svc.Adjust(ctx, staff, inv.ID, AccrualInput{ROI: &roi}); err != nil {
		t.Errorf("Adjust by staff failed: %v", err)
	}
}

func TestSellTokens(t *testing.T) {
	db := newTestDB(t)
	svc := NewInvestmentService(db, NopPublisher{})
	ctx := context.Background()
	user := createUser(t, db, "seller@example.com", false)
	other := createUser(t, db, "other@example.com", false)
	p := createProperty(t, db, "Exit Street", "30.00", 90, 90)

	inv, err := svc.Create(ctx, user, CreateInvestmentInput{PropertyID: p.ID, TokensOwned: 90})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got := reloadProperty(t, db, p.ID).Status; got != models.PropertyStatusFullyFunded {
		t.Fatalf("Status = %q, want fully-funded", got)
	}

	if _, err := svc.Sell(ctx, other, inv.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound selling someone else's tokens, got %v", err)
	}
	var verr *ValidationError
	if _, err := svc.Sell(ctx, user, inv.ID, 91); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError selling too many tokens, got %v", err)
	}
	if _, err := svc.Sell(ctx, user, inv.ID, 0); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError selling zero tokens, got %v", err)
	}

	res, err := svc.Sell(ctx, user, inv.ID, 30)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if res.Investment == nil || res.Investment.TokensOwned != 60 {
		t.Fatalf("Expected 60 tokens left, got %+v", res.Investment)
	}
	if !res.Investment.InvestmentAmount.Equal(dec("1800.00")) {
		t.Errorf("InvestmentAmount = %s, want 1800.00", res.Investment.InvestmentAmount)
	}
	if res.Transaction.Type != models.TransactionTypeSale || !res.Transaction.Amount.Equal(dec("900.00")) {
		t.Errorf("Unexpected sale entry: %+v", res.Transaction)
	}

	got := reloadProperty(t, db, p.ID)
	if got.AvailableTokens != 30 || got.Status != models.PropertyStatusAvailable {
		t.Errorf("Got available=%d status=%q, want 30/available", got.AvailableTokens, got.Status)
	}

	res, err = svc.Sell(ctx, user, inv.ID, 60)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if res.Investment != nil {
		t.Error("Expected the position to be closed")
	}
	if n := countRows(t, db, &models.Investment{}, "id = ?", inv.ID); n != 0 {
		t.Errorf("Expected closed investment to be deleted, got %d rows", n)
	}
	if got := reloadProperty(t, db, p.ID); got.AvailableTokens != 90 || got.FundingProgress != 0 {
		t.Errorf("Got available=%d progress=%v, want 90/0", got.AvailableTokens, got.FundingProgress)
	}
}
