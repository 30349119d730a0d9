package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// OperationServiceImpl implements ports.OperationService.
//
// Every create, approve and reject runs in a single transaction. Operation
// rows and account balances are written with compare-and-swap on their
// version, so a racing writer fails with a retryable conflict instead of
// applying the ledger mutation twice.
//
// Idempotency keys are checked in Redis first and then in the
// idempotency_keys table. The key is claimed inside the same transaction as
// the operation, so of two concurrent retries only one commits.
type OperationServiceImpl struct {
	accounts   ports.AccountRepository
	ops        ports.OperationRepository
	transactor ports.DBTransactor
	ledger     *Ledger
	validator  *TransactionValidator
	idempCache ports.IdempotencyCache
	idempRepo  ports.IdempotencyRepository
	idempTTL   time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewOperationService creates a new OperationServiceImpl.
// idempCache and idempRepo may be nil; with both nil idempotency keys are ignored.
func NewOperationService(
	accounts ports.AccountRepository,
	ops ports.OperationRepository,
	transactor ports.DBTransactor,
	validator *TransactionValidator,
	idempCache ports.IdempotencyCache,
	idempRepo ports.IdempotencyRepository,
	idempTTL time.Duration,
	log zerolog.Logger,
) *OperationServiceImpl {
	return &OperationServiceImpl{
		accounts:   accounts,
		ops:        ops,
		transactor: transactor,
		ledger:     NewLedger(accounts),
		validator:  validator,
		idempCache: idempCache,
		idempRepo:  idempRepo,
		idempTTL:   idempTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateOperation records a new operation for the actor's account and executes
// it immediately when the validator allows it.
func (s *OperationServiceImpl) CreateOperation(ctx context.Context, req ports.CreateOperationRequest) (*domain.OperationView, error) {
	if !req.Kind.Valid() {
		return nil, apperror.ErrInvalidKind(string(req.Kind))
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey := ""
	if req.IdempotencyKey != "" && (s.idempCache != nil || s.idempRepo != nil) {
		idempKey = buildOperationIdempotencyKey(req.Actor.ID, req.IdempotencyKey)
		view, err := s.lookupIdempotent(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if view != nil {
			return view, nil
		}
	}

	source, err := s.accounts.GetByOwnerID(ctx, req.Actor.ID)
	if err != nil {
		return nil, translateError(fmt.Errorf("resolve source account: %w", err))
	}
	if source == nil {
		return nil, apperror.ErrAccountNotFound()
	}

	var destination *domain.Account
	if req.Kind == domain.OperationKindTransfer {
		number := strings.TrimSpace(req.DestinationAccountNumber)
		if number == "" {
			return nil, apperror.ErrDestinationRequired()
		}
		destination, err = s.accounts.GetByNumber(ctx, number)
		if err != nil {
			return nil, translateError(fmt.Errorf("resolve destination account: %w", err))
		}
		if destination == nil {
			return nil, apperror.ErrAccountNotFound()
		}
		if destination.ID == source.ID {
			return nil, apperror.ErrSameAccount()
		}
	}

	op := domain.NewOperation(req.Kind, req.Amount, source, destination, s.now())
	classification := s.validator.Classify(req.Amount)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.ops.Create(ctx, dbTx, op); err != nil {
		return nil, translateError(fmt.Errorf("create operation: %w", err))
	}

	claimed := idempKey != "" && s.idempRepo != nil
	if claimed {
		rec := &domain.IdempotencyRecord{Key: idempKey, OperationID: op.ID, CreatedAt: op.CreatedAt}
		if err := s.idempRepo.Create(ctx, dbTx, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				_ = dbTx.Rollback(ctx)
				return s.replayCommitted(ctx, idempKey)
			}
			return nil, translateError(fmt.Errorf("claim idempotency key: %w", err))
		}
	}

	if classification == ExecutableNow {
		if err := s.execute(ctx, dbTx, op); err != nil {
			return nil, translateError(err)
		}
	}

	view := op.View()

	if claimed {
		data, err := json.Marshal(view)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal operation view: %w", err))
		}
		if err := s.idempRepo.SetResponse(ctx, dbTx, idempKey, data); err != nil {
			return nil, translateError(fmt.Errorf("store idempotency response: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		if claimed && errors.Is(err, domain.ErrDuplicate) {
			return s.replayCommitted(ctx, idempKey)
		}
		return nil, translateError(fmt.Errorf("commit tx: %w", err))
	}

	if idempKey != "" && s.idempCache != nil {
		s.cacheView(ctx, idempKey, view)
	}

	s.log.Info().
		Str("operation_id", op.ID.String()).
		Str("kind", string(op.Kind)).
		Str("amount", op.Amount.String()).
		Str("status", string(op.Status)).
		Str("classification", classification.String()).
		Msg("operation created")

	return &view, nil
}

// ListOperations returns the operations touching the actor's account, newest first.
func (s *OperationServiceImpl) ListOperations(ctx context.Context, actor domain.Identity) ([]domain.OperationView, error) {
	account, err := s.accounts.GetByOwnerID(ctx, actor.ID)
	if err != nil {
		return nil, translateError(fmt.Errorf("resolve account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}

	ops, err := s.ops.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, translateError(fmt.Errorf("list operations: %w", err))
	}
	return toViews(ops), nil
}

// ListPending returns every PENDING operation, oldest first.
func (s *OperationServiceImpl) ListPending(ctx context.Context) ([]domain.OperationView, error) {
	ops, err := s.ops.ListByStatus(ctx, domain.OperationStatusPending)
	if err != nil {
		return nil, translateError(fmt.Errorf("list pending operations: %w", err))
	}
	return toViews(ops), nil
}

// Approve validates a PENDING operation and executes it.
func (s *OperationServiceImpl) Approve(ctx context.Context, operationID uuid.UUID) (*domain.OperationView, error) {
	op, err := s.load(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if err := op.Approve(s.now()); err != nil {
		return nil, translateError(err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.execute(ctx, dbTx, op); err != nil {
		return nil, translateError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, translateError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("operation_id", op.ID.String()).
		Str("kind", string(op.Kind)).
		Str("amount", op.Amount.String()).
		Str("status", string(op.Status)).
		Msg("operation approved")

	view := op.View()
	return &view, nil
}

// Reject cancels a PENDING operation. Balances are not touched.
func (s *OperationServiceImpl) Reject(ctx context.Context, operationID uuid.UUID) (*domain.OperationView, error) {
	op, err := s.load(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if err := op.Reject(s.now()); err != nil {
		return nil, translateError(err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.ops.UpdateState(ctx, dbTx, op); err != nil {
		return nil, translateError(fmt.Errorf("update operation: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, translateError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("operation_id", op.ID.String()).
		Str("kind", string(op.Kind)).
		Str("amount", op.Amount.String()).
		Str("status", string(op.Status)).
		Msg("operation rejected")

	view := op.View()
	return &view, nil
}

// execute moves op to EXECUTED and runs its strategy inside dbTx.
// The operation row is written first so a concurrent approver loses on the
// operation version before any account is locked.
func (s *OperationServiceImpl) execute(ctx context.Context, dbTx pgx.Tx, op *domain.Operation) error {
	if err := op.MarkExecuted(s.now()); err != nil {
		return err
	}
	if err := s.ops.UpdateState(ctx, dbTx, op); err != nil {
		return fmt.Errorf("update operation: %w", err)
	}

	source := &domain.Account{ID: op.SourceAccountID}
	var destination *domain.Account
	if op.Kind == domain.OperationKindTransfer && op.DestinationAccountID != nil {
		destination = &domain.Account{ID: *op.DestinationAccountID}
	}

	session := s.ledger.Session(dbTx)
	if err := session.Lock(ctx, source, destination); err != nil {
		return err
	}
	return SelectStrategy(op.Kind)(ctx, session, op.Amount, source, destination)
}

func (s *OperationServiceImpl) load(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	op, err := s.ops.GetByID(ctx, id)
	if err != nil {
		return nil, translateError(fmt.Errorf("get operation: %w", err))
	}
	if op == nil {
		return nil, apperror.ErrOperationNotFound()
	}
	return op, nil
}

// lookupIdempotent returns the view stored for key, checking Redis and then
// the database. A nil view means the key has not been used.
func (s *OperationServiceImpl) lookupIdempotent(ctx context.Context, key string) (*domain.OperationView, error) {
	if s.idempCache != nil {
		if view := s.cachedView(ctx, key); view != nil {
			return view, nil
		}
	}
	if s.idempRepo == nil {
		return nil, nil
	}

	rec, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, translateError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if rec == nil {
		return nil, nil
	}
	view, err := s.storedView(ctx, rec)
	if err != nil {
		return nil, err
	}
	if s.idempCache != nil {
		s.cacheView(ctx, key, *view)
	}
	return view, nil
}

// replayCommitted answers a request that lost the race for its idempotency
// key. When the winner has not committed yet the caller gets a retryable
// conflict.
func (s *OperationServiceImpl) replayCommitted(ctx context.Context, key string) (*domain.OperationView, error) {
	rec, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, translateError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrConcurrencyConflict(fmt.Errorf("idempotency key %q: %w", key, domain.ErrDuplicate))
	}
	s.log.Info().Str("key", key).Str("operation_id", rec.OperationID.String()).Msg("replaying concurrent idempotent request")
	return s.storedView(ctx, rec)
}

func (s *OperationServiceImpl) storedView(ctx context.Context, rec *domain.IdempotencyRecord) (*domain.OperationView, error) {
	if len(rec.ResponseJSON) > 0 {
		var view domain.OperationView
		if err := json.Unmarshal(rec.ResponseJSON, &view); err == nil {
			return &view, nil
		}
		s.log.Warn().Str("key", rec.Key).Msg("unreadable stored idempotency response, loading operation")
	}
	op, err := s.load(ctx, rec.OperationID)
	if err != nil {
		return nil, err
	}
	view := op.View()
	return &view, nil
}

func (s *OperationServiceImpl) cachedView(ctx context.Context, key string) *domain.OperationView {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, processing request")
		return nil
	}
	if cached == nil {
		return nil
	}
	var view domain.OperationView
	if err := json.Unmarshal(cached, &view); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	return &view
}

func (s *OperationServiceImpl) cacheView(ctx context.Context, key string, view domain.OperationView) {
	data, err := json.Marshal(view)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to marshal operation for idempotency cache")
		return
	}
	if err := s.idempCache.Set(ctx, key, data, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func buildOperationIdempotencyKey(ownerID uuid.UUID, key string) string {
	return fmt.Sprintf("%s:%s", ownerID, key)
}

func toViews(ops []domain.Operation) []domain.OperationView {
	views := make([]domain.OperationView, 0, len(ops))
	for i := range ops {
		views = append(views, ops[i].View())
	}
	return views
}
