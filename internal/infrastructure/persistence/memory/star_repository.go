package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	domainErrors "github.com/yuzvak/starnotary-service/internal/domain/errors"
	"github.com/yuzvak/starnotary-service/internal/domain/star"
)

type state struct {
	stars       map[int64]*star.Star
	coordinates []star.Coordinate
	coordIndex  map[star.Coordinate]int
	operators   map[star.Account]map[star.Account]bool
	sales       []star.SalePlan
}

// txState holds staged writes. Nothing here is visible outside the
// transaction until commit.
type txState struct {
	stars       map[int64]*star.Star
	created     map[int64]bool
	coordinates []star.Coordinate
	operators   []star.OperatorApproval
	sales       []star.SalePlan
	done        bool
}

// StarRepository keeps the whole registry in process. All committed state is
// owned by one value guarded by one mutex; transactions apply their staged
// writes under that mutex in a single step.
type StarRepository struct {
	mu    *sync.RWMutex
	state *state
	tx    *txState
	isTx  bool
}

func NewStarRepository() *StarRepository {
	return &StarRepository{
		mu: &sync.RWMutex{},
		state: &state{
			stars:      make(map[int64]*star.Star),
			coordIndex: make(map[star.Coordinate]int),
			operators:  make(map[star.Account]map[star.Account]bool),
		},
	}
}

func (r *StarRepository) GetStarByID(ctx context.Context, id int64) (*star.Star, error) {
	if r.isTx {
		if s, ok := r.tx.stars[id]; ok {
			return s.Clone(), nil
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.state.stars[id]
	if !ok {
		return nil, domainErrors.ErrStarNotFound
	}

	return s.Clone(), nil
}

func (r *StarRepository) CreateStar(ctx context.Context, s *star.Star) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if r.isTx {
		if _, ok := r.tx.stars[s.ID]; ok {
			return domainErrors.ErrDuplicateID
		}
		r.mu.RLock()
		_, exists := r.state.stars[s.ID]
		r.mu.RUnlock()
		if exists {
			return domainErrors.ErrDuplicateID
		}

		r.tx.stars[s.ID] = s.Clone()
		r.tx.created[s.ID] = true
		r.tx.coordinates = append(r.tx.coordinates, s.Metadata.Coordinate)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.state.stars[s.ID]; exists {
		return domainErrors.ErrDuplicateID
	}
	r.state.stars[s.ID] = s.Clone()
	r.state.addCoordinate(s.Metadata.Coordinate)
	return nil
}

func (r *StarRepository) UpdateStar(ctx context.Context, s *star.Star) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if r.isTx {
		if _, ok := r.tx.stars[s.ID]; !ok {
			r.mu.RLock()
			_, exists := r.state.stars[s.ID]
			r.mu.RUnlock()
			if !exists {
				return domainErrors.ErrStarNotFound
			}
		}
		r.tx.stars[s.ID] = s.Clone()
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.state.stars[s.ID]
	if !ok {
		return domainErrors.ErrStarNotFound
	}
	r.state.stars[s.ID] = withMetadataOf(current, s)
	return nil
}

func (r *StarRepository) CountStarsByOwner(ctx context.Context, owner star.Account) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for id, s := range r.state.stars {
		if r.isTx {
			if staged, ok := r.tx.stars[id]; ok {
				s = staged
			}
		}
		if s.Owner == owner {
			count++
		}
	}

	if r.isTx {
		for id := range r.tx.created {
			if r.tx.stars[id].Owner == owner {
				count++
			}
		}
	}

	return count, nil
}

func (r *StarRepository) CoordinateExists(ctx context.Context, c star.Coordinate) (bool, error) {
	if r.isTx {
		for _, staged := range r.tx.coordinates {
			if staged == c {
				return true, nil
			}
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.coordIndex[c] > 0, nil
}

func (r *StarRepository) ListCoordinates(ctx context.Context, limit, offset int) ([]star.Coordinate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset >= len(r.state.coordinates) {
		return nil, nil
	}

	end := offset + limit
	if end > len(r.state.coordinates) {
		end = len(r.state.coordinates)
	}

	out := make([]star.Coordinate, end-offset)
	copy(out, r.state.coordinates[offset:end])
	return out, nil
}

func (r *StarRepository) SetOperatorApproval(ctx context.Context, approval star.OperatorApproval) error {
	if r.isTx {
		r.tx.operators = append(r.tx.operators, approval)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.setOperator(approval)
	return nil
}

func (r *StarRepository) IsOperator(ctx context.Context, owner, operator star.Account) (bool, error) {
	if r.isTx {
		for i := len(r.tx.operators) - 1; i >= 0; i-- {
			a := r.tx.operators[i]
			if a.Owner == owner && a.Operator == operator {
				return a.Approved, nil
			}
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.operators[owner][operator], nil
}

func (r *StarRepository) SaveSale(ctx context.Context, plan *star.SalePlan) error {
	if r.isTx {
		r.tx.sales = append(r.tx.sales, *plan)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.sales = append(r.state.sales, *plan)
	return nil
}

// Sales returns committed purchases, oldest first.
func (r *StarRepository) Sales() []star.SalePlan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]star.SalePlan, len(r.state.sales))
	copy(out, r.state.sales)
	return out
}

// StarIDs returns committed ids in ascending order.
func (r *StarRepository) StarIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.state.stars))
	for id := range r.state.stars {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *StarRepository) BeginTx(ctx context.Context) (ports.StarRepository, error) {
	if r.isTx {
		return nil, errors.New("transaction already started")
	}

	return &StarRepository{
		mu:    r.mu,
		state: r.state,
		tx: &txState{
			stars:   make(map[int64]*star.Star),
			created: make(map[int64]bool),
		},
		isTx: true,
	}, nil
}

func (r *StarRepository) CommitTx(ctx context.Context) error {
	if !r.isTx || r.tx == nil {
		return errors.New("no transaction to commit")
	}
	if r.tx.done {
		return errors.New("transaction already finished")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.tx.created {
		if _, exists := r.state.stars[id]; exists {
			r.tx.done = true
			return domainErrors.ErrDuplicateID
		}
	}

	for id, s := range r.tx.stars {
		if current, ok := r.state.stars[id]; ok && !r.tx.created[id] {
			r.state.stars[id] = withMetadataOf(current, s)
			continue
		}
		r.state.stars[id] = s
	}
	for _, c := range r.tx.coordinates {
		r.state.addCoordinate(c)
	}
	for _, a := range r.tx.operators {
		r.state.setOperator(a)
	}
	r.state.sales = append(r.state.sales, r.tx.sales...)

	r.tx.done = true
	return nil
}

func (r *StarRepository) RollbackTx(ctx context.Context) error {
	if !r.isTx || r.tx == nil {
		return errors.New("no transaction to rollback")
	}
	if r.tx.done {
		return nil
	}

	r.tx.done = true
	return nil
}

func (st *state) addCoordinate(c star.Coordinate) {
	st.coordinates = append(st.coordinates, c)
	st.coordIndex[c]++
}

func (st *state) setOperator(a star.OperatorApproval) {
	ops, ok := st.operators[a.Owner]
	if !ok {
		ops = make(map[star.Account]bool)
		st.operators[a.Owner] = ops
	}
	if a.Approved {
		ops[a.Operator] = true
		return
	}
	delete(ops, a.Operator)
}

// withMetadataOf applies the mutable fields of next onto a copy of current,
// keeping metadata and mint time as first stored.
func withMetadataOf(current, next *star.Star) *star.Star {
	updated := next.Clone()
	updated.Metadata = current.Metadata
	updated.MintedAt = current.MintedAt
	return updated
}
