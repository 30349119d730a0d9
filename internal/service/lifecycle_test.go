package service

import (
	"context"
	"sync"
	"testing"

	"bank-backoffice/internal/adapter/storage/memory"
	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lifecycleEnv wires the engine to the transactional memory store.
type lifecycleEnv struct {
	svc      *OperationServiceImpl
	store    *memory.Store
	accounts *memory.AccountRepo
	ops      *memory.OperationRepo
}

func newLifecycleEnv(t *testing.T, opsRepo func(*memory.OperationRepo) ports.OperationRepository) *lifecycleEnv {
	t.Helper()
	store := memory.NewStore()
	env := &lifecycleEnv{
		store:    store,
		accounts: memory.NewAccountRepo(store),
		ops:      memory.NewOperationRepo(store),
	}
	var repo ports.OperationRepository = env.ops
	if opsRepo != nil {
		repo = opsRepo(env.ops)
	}
	env.svc = NewOperationService(
		env.accounts, repo, store,
		NewTransactionValidator(dec("10000")),
		nil, memory.NewIdempotencyRepo(store), 0, newTestLogger(),
	)
	return env
}

func (e *lifecycleEnv) openAccount(t *testing.T, number, balance string) (domain.Identity, *domain.Account) {
	t.Helper()
	owner := domain.Identity{ID: uuid.New(), Email: number + "@bank.test", Role: domain.RoleClient}
	acc := &domain.Account{
		ID:            uuid.New(),
		AccountNumber: number,
		Balance:       dec(balance),
		OwnerID:       owner.ID,
		Version:       1,
	}
	require.NoError(t, e.accounts.Create(context.Background(), acc))
	return owner, acc
}

func (e *lifecycleEnv) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	acc, err := e.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc.Balance
}

func assertBalance(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "balance: want %s, got %s", want, got)
}

func TestLifecycle_SmallDepositExecutesImmediately(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	owner, acc := env.openAccount(t, "1000000000000001", "0")

	view, err := env.svc.CreateOperation(context.Background(), ports.CreateOperationRequest{
		Kind: domain.OperationKindDeposit, Amount: dec("5000"), Actor: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusExecuted, view.Status)
	assert.NotNil(t, view.ExecutedAt)
	assertBalance(t, "5000", env.balance(t, acc.ID))
}

func TestLifecycle_LargeDepositWaitsForApproval(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, acc := env.openAccount(t, "1000000000000001", "0")

	view, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindDeposit, Amount: dec("15000"), Actor: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusPending, view.Status)
	assert.Nil(t, view.ExecutedAt)
	assertBalance(t, "0", env.balance(t, acc.ID))

	pending, err := env.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, view.ID, pending[0].ID)

	approved, err := env.svc.Approve(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusExecuted, approved.Status)
	assert.NotNil(t, approved.ValidatedAt)
	assert.NotNil(t, approved.ExecutedAt)
	assertBalance(t, "15000", env.balance(t, acc.ID))

	pending, err = env.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLifecycle_WithdrawalInsufficientFunds(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, acc := env.openAccount(t, "1000000000000001", "1000")

	req := ports.CreateOperationRequest{Kind: domain.OperationKindWithdrawal, Amount: dec("2000"), Actor: owner}
	for i := 0; i < 2; i++ {
		_, err := env.svc.CreateOperation(ctx, req)
		assert.Equal(t, apperror.CodeInsufficientFunds, apperror.CodeOf(err))
		assertBalance(t, "1000", env.balance(t, acc.ID))
	}

	ops, err := env.svc.ListOperations(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, ops, "a failed auto-execution leaves no operation behind")
}

func TestLifecycle_TransferExecutesBothLegs(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, src := env.openAccount(t, "1000000000000001", "50000")
	recipient, dst := env.openAccount(t, "1000000000000002", "1000")

	view, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind:                     domain.OperationKindTransfer,
		Amount:                   dec("5000"),
		DestinationAccountNumber: dst.AccountNumber,
		Actor:                    owner,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusExecuted, view.Status)
	require.NotNil(t, view.DestinationAccountNumber)
	assert.Equal(t, dst.AccountNumber, *view.DestinationAccountNumber)

	assertBalance(t, "45000", env.balance(t, src.ID))
	assertBalance(t, "6000", env.balance(t, dst.ID))

	// Visible to both parties.
	mine, err := env.svc.ListOperations(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := env.svc.ListOperations(ctx, recipient)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestLifecycle_RejectLeavesBalance(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, acc := env.openAccount(t, "1000000000000001", "20000")

	view, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindWithdrawal, Amount: dec("15000"), Actor: owner,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OperationStatusPending, view.Status)

	rejected, err := env.svc.Reject(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusCancelled, rejected.Status)
	assert.NotNil(t, rejected.ValidatedAt)
	assert.Nil(t, rejected.ExecutedAt)
	assertBalance(t, "20000", env.balance(t, acc.ID))

	// Approving a cancelled operation is an invalid transition.
	_, err = env.svc.Approve(ctx, view.ID)
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))
	_, err = env.svc.Reject(ctx, view.ID)
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))
	assertBalance(t, "20000", env.balance(t, acc.ID))
}

func TestLifecycle_ApproveExecutedOperationFails(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, acc := env.openAccount(t, "1000000000000001", "0")

	view, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindDeposit, Amount: dec("100"), Actor: owner,
	})
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, view.ID)
	assert.Equal(t, apperror.CodeInvalidStateTransition, apperror.CodeOf(err))
	assertBalance(t, "100", env.balance(t, acc.ID))
}

func TestLifecycle_ApprovedWithdrawalRechecksBalance(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, acc := env.openAccount(t, "1000000000000001", "20000")

	view, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindWithdrawal, Amount: dec("15000"), Actor: owner,
	})
	require.NoError(t, err)

	// Spend most of the balance while the withdrawal waits.
	_, err = env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindWithdrawal, Amount: dec("9000"), Actor: owner,
	})
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, view.ID)
	assert.Equal(t, apperror.CodeInsufficientFunds, apperror.CodeOf(err))

	op, err := env.ops.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusPending, op.Status, "failed approval leaves the operation pending")
	assert.Nil(t, op.ExecutedAt)
	assertBalance(t, "11000", env.balance(t, acc.ID))
}

func TestLifecycle_PendingOrderedOldestFirst(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, _ := env.openAccount(t, "1000000000000001", "0")

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		view, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
			Kind: domain.OperationKindDeposit, Amount: dec("20000"), Actor: owner,
		})
		require.NoError(t, err)
		ids = append(ids, view.ID)
	}

	pending, err := env.svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i := 1; i < len(pending); i++ {
		assert.False(t, pending[i].CreatedAt.Before(pending[i-1].CreatedAt))
	}
	assert.ElementsMatch(t, ids, []uuid.UUID{pending[0].ID, pending[1].ID, pending[2].ID})
}

// barrierOps holds every GetByID caller until all racers have read the operation.
type barrierOps struct {
	ports.OperationRepository
	barrier *sync.WaitGroup
}

func (b *barrierOps) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	op, err := b.OperationRepository.GetByID(ctx, id)
	b.barrier.Done()
	b.barrier.Wait()
	return op, err
}

func TestLifecycle_ConcurrentApproveExecutesOnce(t *testing.T) {
	const racers = 2

	barrier := &sync.WaitGroup{}
	env := newLifecycleEnv(t, func(r *memory.OperationRepo) ports.OperationRepository {
		return &barrierOps{OperationRepository: r, barrier: barrier}
	})
	ctx := context.Background()
	owner, acc := env.openAccount(t, "1000000000000001", "0")

	view, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindDeposit, Amount: dec("15000"), Actor: owner,
	})
	require.NoError(t, err)

	barrier.Add(racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Approve(ctx, view.ID)
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.CodeOf(err) == apperror.CodeConcurrencyConflict:
			assert.True(t, apperror.IsRetryable(err))
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assertBalance(t, "15000", env.balance(t, acc.ID))

	op, err := env.ops.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusExecuted, op.Status)
}

func TestLifecycle_CrossingTransfersConserveFunds(t *testing.T) {
	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	ownerA, a := env.openAccount(t, "1000000000000001", "30000")
	ownerB, b := env.openAccount(t, "1000000000000002", "30000")

	ab, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindTransfer, Amount: dec("12000"), DestinationAccountNumber: b.AccountNumber, Actor: ownerA,
	})
	require.NoError(t, err)
	ba, err := env.svc.CreateOperation(ctx, ports.CreateOperationRequest{
		Kind: domain.OperationKindTransfer, Amount: dec("11000"), DestinationAccountNumber: a.AccountNumber, Actor: ownerB,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{ab.ID, ba.ID} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			for {
				_, err := env.svc.Approve(ctx, id)
				if err == nil || !apperror.IsRetryable(err) {
					assert.NoError(t, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	assertBalance(t, "29000", env.balance(t, a.ID))
	assertBalance(t, "31000", env.balance(t, b.ID))
	assertBalance(t, "60000", env.balance(t, a.ID).Add(env.balance(t, b.ID)))
}

// barrierAccounts holds every source lookup until all racers have passed the
// idempotency check.
type barrierAccounts struct {
	ports.AccountRepository
	barrier *sync.WaitGroup
}

func (b *barrierAccounts) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	acc, err := b.AccountRepository.GetByOwnerID(ctx, ownerID)
	b.barrier.Done()
	b.barrier.Wait()
	return acc, err
}

func TestLifecycle_ConcurrentRetryWithSameKeyExecutesOnce(t *testing.T) {
	const racers = 2

	env := newLifecycleEnv(t, nil)
	ctx := context.Background()
	owner, acc := env.openAccount(t, "1000000000000001", "10000")

	barrier := &sync.WaitGroup{}
	barrier.Add(racers)
	racing := NewOperationService(
		&barrierAccounts{AccountRepository: env.accounts, barrier: barrier}, env.ops, env.store,
		NewTransactionValidator(dec("10000")),
		nil, memory.NewIdempotencyRepo(env.store), 0, newTestLogger(),
	)

	req := ports.CreateOperationRequest{
		Kind: domain.OperationKindWithdrawal, Amount: dec("3000"), Actor: owner, IdempotencyKey: "retry-1",
	}
	views := make([]*domain.OperationView, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = racing.CreateOperation(ctx, req)
		}(i)
	}
	wg.Wait()

	var winner uuid.UUID
	for i, err := range errs {
		if err != nil {
			assert.Equal(t, apperror.CodeConcurrencyConflict, apperror.CodeOf(err), "unexpected error: %v", err)
			assert.True(t, apperror.IsRetryable(err))
			continue
		}
		if winner == uuid.Nil {
			winner = views[i].ID
		}
		assert.Equal(t, winner, views[i].ID, "both requests must report the same operation")
	}
	require.NotEqual(t, uuid.Nil, winner, "one request must succeed")

	assertBalance(t, "7000", env.balance(t, acc.ID))
	history, err := env.ops.ListByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	retried, err := env.svc.CreateOperation(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, winner, retried.ID)
	assert.Equal(t, domain.OperationStatusExecuted, retried.Status)
	assertBalance(t, "7000", env.balance(t, acc.ID))
}
