package use_cases

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/payment"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/persistence/memory"
)

func TestMarketplace_ListAndBuy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	f.fund(t, "bob", 500)

	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))
	price, err := f.marketplace.GetSalePrice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, star.Amount(100), price)

	res, err := f.marketplace.Buy(ctx, 1, "bob", 150)
	require.NoError(t, err)
	assert.Equal(t, star.Account("alice"), res.Seller)
	assert.Equal(t, star.Account("bob"), res.Buyer)
	assert.Equal(t, star.Amount(100), res.Price)
	assert.Equal(t, star.Amount(50), res.Refund)
	assert.NotEmpty(t, res.ReceiptID)

	assert.Equal(t, star.Account("bob"), f.owner(t, 1))
	assert.Equal(t, star.Amount(100), f.balance(t, "alice"))
	assert.Equal(t, star.Amount(400), f.balance(t, "bob"))

	_, err = f.marketplace.GetSalePrice(ctx, 1)
	require.ErrorIs(t, err, domainErrors.ErrNotListed)

	sales := f.repo.Sales()
	require.Len(t, sales, 1)
	assert.Equal(t, star.Amount(150), sales[0].Payment)

	assert.Equal(t,
		[]star.EventType{star.EventMinted, star.EventTransferred, star.EventSold},
		f.recorder.Types(),
	)
}

func TestMarketplace_ListForSaleRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	require.NoError(t, f.registry.Approve(ctx, 1, "bob", "alice"))
	require.NoError(t, f.registry.SetApprovalForAll(ctx, "op", true, "alice"))

	require.ErrorIs(t, f.marketplace.ListForSale(ctx, 1, 100, "bob"), domainErrors.ErrUnauthorized)
	require.ErrorIs(t, f.marketplace.ListForSale(ctx, 1, 100, "op"), domainErrors.ErrUnauthorized)
	require.ErrorIs(t, f.marketplace.ListForSale(ctx, 1, 0, "alice"), domainErrors.ErrInvalidPrice)
	require.ErrorIs(t, f.marketplace.ListForSale(ctx, 1, -5, "alice"), domainErrors.ErrInvalidPrice)
	require.ErrorIs(t, f.marketplace.ListForSale(ctx, 9, 100, "alice"), domainErrors.ErrStarNotFound)

	_, err := f.marketplace.GetSalePrice(ctx, 1)
	require.ErrorIs(t, err, domainErrors.ErrNotListed)
	_, err = f.marketplace.GetSalePrice(ctx, 9)
	require.ErrorIs(t, err, domainErrors.ErrNotListed)
}

func TestMarketplace_RelistOverwritesPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")

	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 70, "alice"))

	price, err := f.marketplace.GetSalePrice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, star.Amount(70), price)
}

func TestMarketplace_BuyRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	f.mint(t, 2, "alice")
	f.fund(t, "bob", 500)
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))

	_, err := f.marketplace.Buy(ctx, 2, "bob", 100)
	require.ErrorIs(t, err, domainErrors.ErrNotListed)

	_, err = f.marketplace.Buy(ctx, 99, "bob", 100)
	require.ErrorIs(t, err, domainErrors.ErrNotListed)

	_, err = f.marketplace.Buy(ctx, 1, "bob", 99)
	require.ErrorIs(t, err, domainErrors.ErrInsufficientPayment)

	_, err = f.marketplace.Buy(ctx, 1, "", 100)
	require.ErrorIs(t, err, domainErrors.ErrInvalidTarget)

	assert.Equal(t, star.Account("alice"), f.owner(t, 1))
	assert.Equal(t, star.Amount(500), f.balance(t, "bob"))
	assert.Empty(t, f.repo.Sales())
}

func TestMarketplace_BuyOwnListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	f.fund(t, "alice", 100)
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))

	_, err := f.marketplace.Buy(ctx, 1, "alice", 100)
	require.NoError(t, err)

	assert.Equal(t, star.Account("alice"), f.owner(t, 1))
	assert.Equal(t, star.Amount(100), f.balance(t, "alice"))
	_, err = f.marketplace.GetSalePrice(ctx, 1)
	require.ErrorIs(t, err, domainErrors.ErrNotListed)
}

func TestMarketplace_FailedPaymentChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	f.fund(t, "bob", 10)
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))

	_, err := f.marketplace.Buy(ctx, 1, "bob", 100)
	require.ErrorIs(t, err, domainErrors.ErrPaymentFailed)
	require.ErrorIs(t, err, payment.ErrInsufficientFunds)

	assert.Equal(t, star.Account("alice"), f.owner(t, 1))
	price, err := f.marketplace.GetSalePrice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, star.Amount(100), price)
	assert.Equal(t, star.Amount(10), f.balance(t, "bob"))
	assert.Zero(t, f.balance(t, "alice"))
	assert.Empty(t, f.repo.Sales())

	_, locked, err := f.cache.DistributedLock(ctx, starLockKey(1), defaultLockTimeout)
	require.NoError(t, err)
	assert.True(t, locked, "lock released after failure")
}

// reentrantGateway calls back into the service while a settlement is in
// flight, the way a malicious payee would.
type reentrantGateway struct {
	inner    ports.PaymentGateway
	callback func(ctx context.Context) error
	err      error
}

func (g *reentrantGateway) Settle(ctx context.Context, plan star.SalePlan) (*star.Receipt, error) {
	if g.callback != nil {
		g.err = g.callback(ctx)
	}
	return g.inner.Settle(ctx, plan)
}

func (g *reentrantGateway) Reverse(ctx context.Context, receipt *star.Receipt) error {
	return g.inner.Reverse(ctx, receipt)
}

func TestMarketplace_ReentrantBuyIsRejected(t *testing.T) {
	ctx := context.Background()
	gw := &reentrantGateway{}
	f := newFixtureWith(t, memory.NewStarRepository(), gw)
	gw.inner = f.ledger

	f.mint(t, 1, "alice")
	f.fund(t, "bob", 100)
	f.fund(t, "mallory", 100)
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))

	var observedOwner star.Account
	gw.callback = func(ctx context.Context) error {
		observedOwner, _ = f.registry.OwnerOf(ctx, 1)
		if _, err := f.marketplace.Buy(ctx, 1, "mallory", 100); err != nil {
			return err
		}
		return f.registry.Transfer(ctx, 1, "alice", "mallory", "alice")
	}

	_, err := f.marketplace.Buy(ctx, 1, "bob", 100)
	require.NoError(t, err)
	require.ErrorIs(t, gw.err, domainErrors.ErrItemLocked)

	assert.Equal(t, star.Account("alice"), observedOwner, "staged sale not visible during settlement")
	assert.Equal(t, star.Account("bob"), f.owner(t, 1))
	assert.Equal(t, star.Amount(100), f.balance(t, "mallory"))
	assert.Len(t, f.repo.Sales(), 1)
}

func TestMarketplace_ReentrantTransferIsRejected(t *testing.T) {
	ctx := context.Background()
	gw := &reentrantGateway{}
	f := newFixtureWith(t, memory.NewStarRepository(), gw)
	gw.inner = f.ledger

	f.mint(t, 1, "alice")
	f.fund(t, "bob", 100)
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))

	gw.callback = func(ctx context.Context) error {
		return f.registry.Transfer(ctx, 1, "alice", "mallory", "alice")
	}

	_, err := f.marketplace.Buy(ctx, 1, "bob", 100)
	require.NoError(t, err)
	require.ErrorIs(t, gw.err, domainErrors.ErrItemLocked)
	assert.Equal(t, star.Account("bob"), f.owner(t, 1))
}

// failingCommitRepo lets every transaction stage normally and then refuses
// to commit it.
type failingCommitRepo struct {
	*memory.StarRepository
}

type failingCommitTx struct {
	ports.StarRepository
}

func (r failingCommitRepo) BeginTx(ctx context.Context) (ports.StarRepository, error) {
	tx, err := r.StarRepository.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return failingCommitTx{tx}, nil
}

func (tx failingCommitTx) CommitTx(ctx context.Context) error {
	_ = tx.StarRepository.RollbackTx(ctx)
	return errors.New("connection reset")
}

func TestMarketplace_CommitFailureReversesPayment(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStarRepository()
	f := newFixtureWith(t, failingCommitRepo{mem}, nil)

	s, err := star.NewStar(1, "alice", star.Metadata{Name: "Praveen"}, f.registry.clock.Now())
	require.NoError(t, err)
	require.NoError(t, s.ListForSale(100))
	require.NoError(t, mem.CreateStar(ctx, s))
	f.fund(t, "bob", 100)

	_, err = f.marketplace.Buy(ctx, 1, "bob", 100)
	require.ErrorIs(t, err, domainErrors.ErrTransactionFailed)

	assert.Equal(t, star.Amount(100), f.balance(t, "bob"))
	assert.Zero(t, f.balance(t, "alice"))

	got, err := mem.GetStarByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, star.Account("alice"), got.Owner)
	assert.True(t, got.IsListed())
}

func TestMarketplace_ConcurrentBuyersOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))

	buyers := []star.Account{"b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8"}
	for _, b := range buyers {
		f.fund(t, b, 100)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, b := range buyers {
		wg.Add(1)
		go func(buyer star.Account) {
			defer wg.Done()
			_, err := f.marketplace.Buy(ctx, 1, buyer, 100)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t,
				errors.Is(err, domainErrors.ErrItemLocked) || errors.Is(err, domainErrors.ErrNotListed),
				"unexpected error: %v", err)
		}(b)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, star.Amount(100), f.balance(t, "alice"))
	assert.Len(t, f.repo.Sales(), 1)
}

// Money is conserved and the seller receives exactly the price, whatever
// payment the buyer offers.
func TestMarketplace_SettlementConservesFunds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		f := newFixture(t)
		f.mint(t, 1, "alice")

		price := star.Amount(rapid.Int64Range(1, 1_000).Draw(rt, "price"))
		offer := star.Amount(rapid.Int64Range(0, 2_000).Draw(rt, "offer"))
		funds := star.Amount(rapid.Int64Range(0, 2_000).Draw(rt, "funds"))

		if funds > 0 {
			f.fund(t, "bob", funds)
		}
		if err := f.marketplace.ListForSale(ctx, 1, price, "alice"); err != nil {
			rt.Fatal(err)
		}

		_, err := f.marketplace.Buy(ctx, 1, "bob", offer)

		alice := f.balance(t, "alice")
		bob := f.balance(t, "bob")
		if alice+bob != funds {
			rt.Fatalf("funds not conserved: alice=%d bob=%d start=%d", alice, bob, funds)
		}

		switch {
		case offer < price:
			if !errors.Is(err, domainErrors.ErrInsufficientPayment) {
				rt.Fatalf("offer %d < price %d: got %v", offer, price, err)
			}
		case funds < offer:
			if !errors.Is(err, domainErrors.ErrPaymentFailed) {
				rt.Fatalf("funds %d < offer %d: got %v", funds, offer, err)
			}
		default:
			if err != nil {
				rt.Fatal(err)
			}
			if alice != price {
				rt.Fatalf("seller got %d, want %d", alice, price)
			}
			if f.owner(t, 1) != "bob" {
				rt.Fatal("ownership did not move")
			}
			return
		}

		if f.owner(t, 1) != "alice" {
			rt.Fatal("ownership moved on a failed purchase")
		}
		if alice != 0 {
			rt.Fatalf("seller credited %d on a failed purchase", alice)
		}
	})
}
