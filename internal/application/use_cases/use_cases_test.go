package use_cases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/events"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/payment"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/persistence/memory"
	"github.com/yuzvak/starnotary-service/internal/pkg/clock"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

type fixture struct {
	repo        *memory.StarRepository
	cache       *memory.Cache
	ledger      *payment.Ledger
	recorder    *events.Recorder
	registry    *RegistryUseCase
	marketplace *MarketplaceUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.NewStarRepository(), nil)
}

// newFixtureWith builds the use cases over repo. A nil gateway means the
// fixture ledger settles payments.
func newFixtureWith(t *testing.T, repo ports.StarRepository, gateway ports.PaymentGateway) *fixture {
	t.Helper()

	log := logger.Nop()
	clk := clock.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	f := &fixture{
		cache:    memory.NewCache(1024),
		ledger:   payment.NewLedger(log),
		recorder: events.NewRecorder(0, log),
	}
	if mem, ok := repo.(*memory.StarRepository); ok {
		f.repo = mem
	}
	if gateway == nil {
		gateway = f.ledger
	}

	f.registry = NewRegistryUseCase(repo, f.cache, f.recorder, clk, log)
	f.marketplace = NewMarketplaceUseCase(repo, f.cache, gateway, f.recorder, clk, log)
	return f
}

func (f *fixture) mint(t *testing.T, id int64, owner star.Account) {
	t.Helper()
	_, err := f.registry.Mint(context.Background(), MintInput{
		ID:          id,
		Name:        "Praveen",
		Description: "New star",
		RA:          "12.5",
		Dec:         "13.2",
		Mag:         "14.6",
		Owner:       owner,
	})
	require.NoError(t, err)
}

func (f *fixture) fund(t *testing.T, account star.Account, amount star.Amount) {
	t.Helper()
	require.NoError(t, f.ledger.Deposit(context.Background(), account, amount))
}

func (f *fixture) owner(t *testing.T, id int64) star.Account {
	t.Helper()
	owner, err := f.registry.OwnerOf(context.Background(), id)
	require.NoError(t, err)
	return owner
}

func (f *fixture) balance(t *testing.T, account star.Account) star.Amount {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), account)
	require.NoError(t, err)
	return b
}
