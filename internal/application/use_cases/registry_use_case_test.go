package use_cases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

func TestRegistry_MintAndRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.mint(t, 1, "alice")

	assert.Equal(t, star.Account("alice"), f.owner(t, 1))

	info, err := f.registry.GetMetadata(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, star.Info{
		Name:        "Praveen",
		Description: "New star",
		RA:          "ra_12.5",
		Dec:         "dec_13.2",
		Mag:         "mag_14.6",
	}, info)

	exists, err := f.registry.CoordinateExists(ctx, star.Coordinate{RA: "12.5", Dec: "13.2", Mag: "14.6"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.registry.CoordinateExists(ctx, star.Coordinate{RA: "12.5", Dec: "13.2", Mag: "99"})
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, []star.EventType{star.EventMinted}, f.recorder.Types())
}

func TestRegistry_MintRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")

	_, err := f.registry.Mint(ctx, MintInput{ID: 1, Name: "Other", Owner: "bob"})
	require.ErrorIs(t, err, domainErrors.ErrDuplicateID)
	assert.Equal(t, star.Account("alice"), f.owner(t, 1))

	_, err = f.registry.Mint(ctx, MintInput{ID: 2, Name: "Nobody"})
	require.ErrorIs(t, err, domainErrors.ErrInvalidTarget)
}

func TestRegistry_MintAllowsDuplicateCoordinates(t *testing.T) {
	f := newFixture(t)
	f.mint(t, 1, "alice")
	f.mint(t, 2, "bob")

	assert.Equal(t, star.Account("bob"), f.owner(t, 2))
}

func TestRegistry_UnknownStar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.registry.OwnerOf(ctx, 42)
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)
	_, err = f.registry.GetMetadata(ctx, 42)
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)
	_, err = f.registry.GetApproved(ctx, 42)
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)
	err = f.registry.Approve(ctx, 42, "bob", "alice")
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)
	err = f.registry.Transfer(ctx, 42, "alice", "bob", "alice")
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)
}

func TestRegistry_ApproveAndDelegateTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")

	require.ErrorIs(t, f.registry.Approve(ctx, 1, "bob", "mallory"), domainErrors.ErrUnauthorized)
	require.ErrorIs(t, f.registry.Approve(ctx, 1, "alice", "alice"), domainErrors.ErrInvalidTarget)

	require.NoError(t, f.registry.Approve(ctx, 1, "bob", "alice"))
	approved, err := f.registry.GetApproved(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, star.Account("bob"), approved)

	require.NoError(t, f.registry.Transfer(ctx, 1, "alice", "carol", "bob"))
	assert.Equal(t, star.Account("carol"), f.owner(t, 1))

	approved, err = f.registry.GetApproved(ctx, 1)
	require.NoError(t, err)
	assert.True(t, approved.IsZero(), "transfer clears the delegate")

	require.ErrorIs(t, f.registry.Transfer(ctx, 1, "carol", "bob", "bob"), domainErrors.ErrUnauthorized)

	assert.Equal(t, []star.EventType{star.EventMinted, star.EventApproval, star.EventTransferred}, f.recorder.Types())
}

func TestRegistry_OperatorApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	f.mint(t, 2, "alice")

	require.ErrorIs(t, f.registry.SetApprovalForAll(ctx, "alice", true, "alice"), domainErrors.ErrInvalidTarget)
	require.ErrorIs(t, f.registry.SetApprovalForAll(ctx, "", true, "alice"), domainErrors.ErrInvalidTarget)

	require.NoError(t, f.registry.SetApprovalForAll(ctx, "op", true, "alice"))
	ok, err := f.registry.IsApprovedForAll(ctx, "alice", "op")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.registry.Approve(ctx, 1, "dave", "op"))
	require.NoError(t, f.registry.Transfer(ctx, 2, "alice", "erin", "op"))
	assert.Equal(t, star.Account("erin"), f.owner(t, 2))

	require.NoError(t, f.registry.SetApprovalForAll(ctx, "op", false, "alice"))
	ok, err = f.registry.IsApprovedForAll(ctx, "alice", "op")
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, f.registry.Transfer(ctx, 1, "alice", "erin", "op"), domainErrors.ErrUnauthorized)
}

func TestRegistry_TransferFailureOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")

	err := f.registry.Transfer(ctx, 1, "bob", "carol", "mallory")
	require.ErrorIs(t, err, domainErrors.ErrOwnerMismatch)

	err = f.registry.Transfer(ctx, 1, "alice", "", "mallory")
	require.ErrorIs(t, err, domainErrors.ErrUnauthorized)

	err = f.registry.Transfer(ctx, 1, "alice", "", "alice")
	require.ErrorIs(t, err, domainErrors.ErrInvalidTarget)

	assert.Equal(t, star.Account("alice"), f.owner(t, 1))
}

func TestRegistry_TransferClearsListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	require.NoError(t, f.marketplace.ListForSale(ctx, 1, 100, "alice"))

	require.NoError(t, f.registry.Transfer(ctx, 1, "alice", "bob", "alice"))

	_, err := f.marketplace.GetSalePrice(ctx, 1)
	require.ErrorIs(t, err, domainErrors.ErrNotListed)
}

func TestRegistry_BalanceOf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	f.mint(t, 2, "alice")
	f.mint(t, 3, "bob")

	n, err := f.registry.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.registry.BalanceOf(ctx, "")
	require.ErrorIs(t, err, domainErrors.ErrInvalidTarget)
}

func TestRegistry_RebuildCoordinateIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")
	_, err := f.registry.Mint(ctx, MintInput{ID: 2, RA: "1", Dec: "2", Mag: "3", Owner: "bob"})
	require.NoError(t, err)

	require.NoError(t, f.cache.ResetCoordinates(ctx))

	n, err := f.registry.RebuildCoordinateIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	exists, err := f.registry.CoordinateExists(ctx, star.Coordinate{RA: "1", Dec: "2", Mag: "3"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.registry.CoordinateExists(ctx, star.Coordinate{RA: "1", Dec: "2", Mag: "4"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegistry_CoordinateExistsSeparatorInField(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.registry.Mint(ctx, MintInput{ID: 1, RA: "1|2", Dec: "3", Mag: "4", Owner: "alice"})
	require.NoError(t, err)

	_, err = f.registry.RebuildCoordinateIndex(ctx)
	require.NoError(t, err)

	exists, err := f.registry.CoordinateExists(ctx, star.Coordinate{RA: "1|2", Dec: "3", Mag: "4"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.registry.CoordinateExists(ctx, star.Coordinate{RA: "1", Dec: "2|3", Mag: "4"})
	require.NoError(t, err)
	assert.False(t, exists, "a triple that was never minted must not be reported")
}

func TestRegistry_LockedStarRejectsMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mint(t, 1, "alice")

	token, locked, err := f.cache.DistributedLock(ctx, starLockKey(1), defaultLockTimeout)
	require.NoError(t, err)
	require.True(t, locked)

	require.ErrorIs(t, f.registry.Transfer(ctx, 1, "alice", "bob", "alice"), domainErrors.ErrItemLocked)
	require.ErrorIs(t, f.registry.Approve(ctx, 1, "bob", "alice"), domainErrors.ErrItemLocked)

	require.NoError(t, f.cache.ReleaseLock(ctx, starLockKey(1), token))
	require.NoError(t, f.registry.Transfer(ctx, 1, "alice", "bob", "alice"))
}

// Every star has exactly one owner and owner counts add up to the number of
// minted stars, whatever sequence of transfers runs.
func TestRegistry_OwnershipIsConserved(t *testing.T) {
	accounts := []star.Account{"alice", "bob", "carol"}

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		f := newFixture(t)

		n := rapid.IntRange(1, 8).Draw(rt, "stars")
		owners := make(map[int64]star.Account, n)
		for i := 0; i < n; i++ {
			owner := rapid.SampledFrom(accounts).Draw(rt, "owner")
			f.mint(t, int64(i), owner)
			owners[int64(i)] = owner
		}

		steps := rapid.IntRange(0, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			id := int64(rapid.IntRange(0, n-1).Draw(rt, "id"))
			caller := rapid.SampledFrom(accounts).Draw(rt, "caller")
			to := rapid.SampledFrom(accounts).Draw(rt, "to")

			err := f.registry.Transfer(ctx, id, caller, to, caller)
			if caller == owners[id] {
				if err != nil {
					rt.Fatalf("owner transfer failed: %v", err)
				}
				owners[id] = to
			} else if err == nil {
				rt.Fatalf("non-owner %s moved star %d", caller, id)
			}
		}

		total := 0
		for _, a := range accounts {
			c, err := f.registry.BalanceOf(ctx, a)
			if err != nil {
				rt.Fatal(err)
			}
			total += c
		}
		if total != n {
			rt.Fatalf("balances sum to %d, want %d", total, n)
		}

		for id, want := range owners {
			got, err := f.registry.OwnerOf(ctx, id)
			if err != nil {
				rt.Fatal(err)
			}
			if got != want {
				rt.Fatalf("owner of %d = %s, want %s", id, got, want)
			}
		}
	})
}
