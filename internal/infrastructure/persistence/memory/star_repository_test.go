package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

var testCoord = star.Coordinate{RA: "12.5", Dec: "13.2", Mag: "14.6"}

func mustStar(t testing.TB, id int64, owner star.Account) *star.Star {
	t.Helper()
	s, err := star.NewStar(id, owner, star.Metadata{
		Name:        "Praveen",
		Description: "New star",
		Coordinate:  testCoord,
	}, time.Unix(1700000000, 0).UTC())
	require.NoError(t, err)
	return s
}

func TestStarRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()

	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 1, "alice")))

	got, err := repo.GetStarByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, star.Account("alice"), got.Owner)
	assert.Equal(t, "Praveen", got.Metadata.Name)

	_, err = repo.GetStarByID(ctx, 2)
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)
}

func TestStarRepository_DuplicateIDKeepsFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()

	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 1, "alice")))
	err := repo.CreateStar(ctx, mustStar(t, 1, "bob"))

	require.ErrorIs(t, err, domainErrors.ErrDuplicateID)
	got, _ := repo.GetStarByID(ctx, 1)
	assert.Equal(t, star.Account("alice"), got.Owner)
}

func TestStarRepository_ReturnedStarsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()
	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 1, "alice")))

	got, _ := repo.GetStarByID(ctx, 1)
	got.Owner = "mallory"

	again, _ := repo.GetStarByID(ctx, 1)
	assert.Equal(t, star.Account("alice"), again.Owner)
}

func TestStarRepository_UpdateKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()
	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 1, "alice")))

	s, _ := repo.GetStarByID(ctx, 1)
	s.Metadata.Name = "Renamed"
	require.NoError(t, s.TransferTo("bob"))
	require.NoError(t, repo.UpdateStar(ctx, s))

	got, _ := repo.GetStarByID(ctx, 1)
	assert.Equal(t, star.Account("bob"), got.Owner)
	assert.Equal(t, "Praveen", got.Metadata.Name)
}

func TestStarRepository_TxIsolatedUntilCommit(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()
	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 1, "alice")))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	s, err := tx.GetStarByID(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.TransferTo("bob"))
	require.NoError(t, tx.UpdateStar(ctx, s))
	require.NoError(t, tx.CreateStar(ctx, mustStar(t, 2, "bob")))

	inside, _ := tx.GetStarByID(ctx, 1)
	assert.Equal(t, star.Account("bob"), inside.Owner)
	count, _ := tx.CountStarsByOwner(ctx, "bob")
	assert.Equal(t, 2, count)

	outside, _ := repo.GetStarByID(ctx, 1)
	assert.Equal(t, star.Account("alice"), outside.Owner)
	_, err = repo.GetStarByID(ctx, 2)
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)

	require.NoError(t, tx.CommitTx(ctx))

	outside, _ = repo.GetStarByID(ctx, 1)
	assert.Equal(t, star.Account("bob"), outside.Owner)
	exists, _ := repo.CoordinateExists(ctx, testCoord)
	assert.True(t, exists)
}

func TestStarRepository_RollbackDiscards(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateStar(ctx, mustStar(t, 5, "alice")))
	require.NoError(t, tx.SetOperatorApproval(ctx, star.OperatorApproval{Owner: "alice", Operator: "op", Approved: true}))
	require.NoError(t, tx.RollbackTx(ctx))

	_, err = repo.GetStarByID(ctx, 5)
	require.ErrorIs(t, err, domainErrors.ErrStarNotFound)
	isOp, _ := repo.IsOperator(ctx, "alice", "op")
	assert.False(t, isOp)
	exists, _ := repo.CoordinateExists(ctx, testCoord)
	assert.False(t, exists)
}

func TestStarRepository_CommitRejectsConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateStar(ctx, mustStar(t, 3, "alice")))

	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 3, "bob")))

	require.ErrorIs(t, tx.CommitTx(ctx), domainErrors.ErrDuplicateID)
	got, _ := repo.GetStarByID(ctx, 3)
	assert.Equal(t, star.Account("bob"), got.Owner)
}

func TestStarRepository_OperatorApproval(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()

	require.NoError(t, repo.SetOperatorApproval(ctx, star.OperatorApproval{Owner: "alice", Operator: "op", Approved: true}))
	isOp, _ := repo.IsOperator(ctx, "alice", "op")
	assert.True(t, isOp)
	isOp, _ = repo.IsOperator(ctx, "op", "alice")
	assert.False(t, isOp, "relation is directed")

	require.NoError(t, repo.SetOperatorApproval(ctx, star.OperatorApproval{Owner: "alice", Operator: "op", Approved: false}))
	isOp, _ = repo.IsOperator(ctx, "alice", "op")
	assert.False(t, isOp)
}

func TestStarRepository_ListCoordinatesKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()
	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 1, "alice")))
	require.NoError(t, repo.CreateStar(ctx, mustStar(t, 2, "bob")))

	coords, err := repo.ListCoordinates(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []star.Coordinate{testCoord, testCoord}, coords)

	coords, _ = repo.ListCoordinates(ctx, 10, 5)
	assert.Empty(t, coords)
}

func TestStarRepository_CoordinateExistsIsExact(t *testing.T) {
	ctx := context.Background()
	repo := NewStarRepository()

	s := mustStar(t, 1, "alice")
	s.Metadata.Coordinate = star.Coordinate{RA: "1|2", Dec: "3", Mag: "4"}
	require.NoError(t, repo.CreateStar(ctx, s))

	tests := []struct {
		coord star.Coordinate
		want  bool
	}{
		{star.Coordinate{RA: "1|2", Dec: "3", Mag: "4"}, true},
		{star.Coordinate{RA: "1", Dec: "2|3", Mag: "4"}, false},
		{star.Coordinate{RA: "1", Dec: "2", Mag: "3|4"}, false},
		{star.Coordinate{RA: "1|2|3", Dec: "", Mag: "4"}, false},
	}

	for _, tt := range tests {
		got, err := repo.CoordinateExists(ctx, tt.coord)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%+v", tt.coord)
	}
}

func TestStarRepository_CountMatchesOwnership(t *testing.T) {
	owners := rapid.SampledFrom([]star.Account{"alice", "bob", "carol"})

	rapid.Check(t, func(r *rapid.T) {
		ctx := context.Background()
		repo := NewStarRepository()
		want := map[star.Account]int{}

		n := rapid.IntRange(0, 30).Draw(r, "n")
		for i := 0; i < n; i++ {
			owner := owners.Draw(r, "owner")
			if err := repo.CreateStar(ctx, mustStar(t, int64(i), owner)); err != nil {
				r.Fatal(err)
			}
			want[owner]++
		}

		for _, owner := range []star.Account{"alice", "bob", "carol"} {
			got, err := repo.CountStarsByOwner(ctx, owner)
			if err != nil {
				r.Fatal(err)
			}
			if got != want[owner] {
				r.Fatalf("count(%s) = %d, want %d", owner, got, want[owner])
			}
		}
	})
}
