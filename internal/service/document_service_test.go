package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/internal/core/ports/mocks"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type documentTestDeps struct {
	svc       *DocumentServiceImpl
	ops       *mocks.MockOperationRepository
	accounts  *mocks.MockAccountRepository
	docs      *mocks.MockDocumentRepository
	storage   *mocks.MockDocumentStorage
	extractor *mocks.MockTextExtractor
	oracle    *mocks.MockAdvisoryOracle
}

func setupDocumentService(t *testing.T, withOracle bool) *documentTestDeps {
	ctrl := gomock.NewController(t)
	d := &documentTestDeps{
		ops:       mocks.NewMockOperationRepository(ctrl),
		accounts:  mocks.NewMockAccountRepository(ctrl),
		docs:      mocks.NewMockDocumentRepository(ctrl),
		storage:   mocks.NewMockDocumentStorage(ctrl),
		extractor: mocks.NewMockTextExtractor(ctrl),
		oracle:    mocks.NewMockAdvisoryOracle(ctrl),
	}
	var oracle ports.AdvisoryOracle
	if withOracle {
		oracle = d.oracle
	}
	d.svc = NewDocumentService(
		d.ops, d.accounts, d.docs, d.storage, d.extractor, oracle,
		DocumentPolicy{
			MaxSizeBytes:  1024,
			AllowedTypes:  []string{"application/pdf", "image/png", "text/plain"},
			AssessTimeout: time.Second,
		},
		newTestLogger(),
	)
	return d
}

func uploadFixture() (domain.Identity, *domain.Account, *domain.Operation) {
	actor := clientIdentity()
	acc := testAccount("1111222233334444", "0")
	acc.OwnerID = actor.ID
	op := pendingOperation(domain.OperationKindDeposit, "15000", acc, nil)
	return actor, acc, op
}

func uploadRequest(op *domain.Operation, actor domain.Identity, body string) ports.UploadDocumentRequest {
	return ports.UploadDocumentRequest{
		OperationID: op.ID,
		Actor:       actor,
		FileName:    "payslip.txt",
		ContentType: "text/plain; charset=utf-8",
		Size:        int64(len(body)),
		Content:     strings.NewReader(body),
	}
}

func expectStoredDocument(d *documentTestDeps, ctx context.Context, actor domain.Identity, acc *domain.Account, op *domain.Operation) {
	d.ops.EXPECT().GetByID(ctx, op.ID).Return(op, nil)
	d.accounts.EXPECT().GetByOwnerID(ctx, actor.ID).Return(acc, nil)
	d.docs.EXPECT().GetByOperationID(ctx, op.ID).Return(nil, nil)
	d.storage.EXPECT().Save(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, name string, r io.Reader) (string, error) {
			return "uploads/" + name, nil
		})
	d.docs.EXPECT().Create(ctx, gomock.Any()).Return(nil)
}

func TestDocumentService_Upload_AnnotatesFromOracle(t *testing.T) {
	d := setupDocumentService(t, true)
	ctx := context.Background()
	actor, acc, op := uploadFixture()

	expectStoredDocument(d, ctx, actor, acc, op)
	d.extractor.EXPECT().Extract(gomock.Any(), "text/plain", []byte("salary 20000")).Return("salary 20000", nil)
	d.oracle.EXPECT().Assess(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.AssessmentRequest) (*domain.Assessment, error) {
			assert.True(t, op.Amount.Equal(req.Amount))
			assert.Equal(t, "text/plain", req.DocumentKind)
			assert.Equal(t, "salary 20000", req.ExtractedText)
			return &domain.Assessment{Decision: domain.AdvisoryApprove, Rationale: "income covers amount"}, nil
		})
	d.ops.EXPECT().UpdateAnnotation(gomock.Any(), op.ID, "APPROVE: income covers amount").Return(nil)

	doc, err := d.svc.Upload(ctx, uploadRequest(op, actor, "salary 20000"))
	require.NoError(t, err)
	assert.Equal(t, op.ID, doc.OperationID)
	assert.Equal(t, "text/plain", doc.FileType)
	assert.Equal(t, int64(12), doc.SizeBytes)
	assert.True(t, strings.HasPrefix(doc.StoragePath, "uploads/"+op.ID.String()+"_"))
	assert.True(t, strings.HasSuffix(doc.StoragePath, ".txt"))

	d.svc.Wait()
	assert.Equal(t, domain.OperationStatusPending, op.Status, "the oracle never moves the state machine")
}

func TestDocumentService_Upload_OracleFailureBecomesAnnotation(t *testing.T) {
	d := setupDocumentService(t, true)
	ctx := context.Background()
	actor, acc, op := uploadFixture()

	expectStoredDocument(d, ctx, actor, acc, op)
	d.extractor.EXPECT().Extract(gomock.Any(), "text/plain", gomock.Any()).Return("   ", nil)
	d.oracle.EXPECT().Assess(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.AssessmentRequest) (*domain.Assessment, error) {
			assert.Equal(t, noExtractedContent, req.ExtractedText)
			return nil, errors.New("circuit breaker is open")
		})
	d.ops.EXPECT().UpdateAnnotation(gomock.Any(), op.ID, "advisory assessment failed: circuit breaker is open").Return(nil)

	_, err := d.svc.Upload(ctx, uploadRequest(op, actor, "x"))
	require.NoError(t, err, "oracle failures never reach the uploader")
	d.svc.Wait()
}

func TestDocumentService_Upload_NoOracleConfigured(t *testing.T) {
	d := setupDocumentService(t, false)
	ctx := context.Background()
	actor, acc, op := uploadFixture()

	expectStoredDocument(d, ctx, actor, acc, op)

	_, err := d.svc.Upload(ctx, uploadRequest(op, actor, "x"))
	require.NoError(t, err)
	d.svc.Wait()
}

func TestDocumentService_Upload_Rejections(t *testing.T) {
	ctx := context.Background()
	actor, acc, op := uploadFixture()

	t.Run("too large", func(t *testing.T) {
		d := setupDocumentService(t, false)
		req := uploadRequest(op, actor, "x")
		req.Size = 2048
		_, err := d.svc.Upload(ctx, req)
		assert.Equal(t, "DOC_001", apperror.CodeOf(err))
	})

	t.Run("declared size lies", func(t *testing.T) {
		d := setupDocumentService(t, false)
		d.ops.EXPECT().GetByID(ctx, op.ID).Return(op, nil)
		d.accounts.EXPECT().GetByOwnerID(ctx, actor.ID).Return(acc, nil)
		d.docs.EXPECT().GetByOperationID(ctx, op.ID).Return(nil, nil)
		req := uploadRequest(op, actor, "x")
		req.Content = bytes.NewReader(make([]byte, 4096))
		_, err := d.svc.Upload(ctx, req)
		assert.Equal(t, "DOC_001", apperror.CodeOf(err))
	})

	t.Run("unsupported type", func(t *testing.T) {
		d := setupDocumentService(t, false)
		req := uploadRequest(op, actor, "x")
		req.ContentType = "application/zip"
		_, err := d.svc.Upload(ctx, req)
		assert.Equal(t, "DOC_002", apperror.CodeOf(err))
	})

	t.Run("empty", func(t *testing.T) {
		d := setupDocumentService(t, false)
		_, err := d.svc.Upload(ctx, uploadRequest(op, actor, ""))
		assert.Equal(t, "DOC_005", apperror.CodeOf(err))
	})

	t.Run("someone else's operation", func(t *testing.T) {
		d := setupDocumentService(t, false)
		d.ops.EXPECT().GetByID(ctx, op.ID).Return(op, nil)
		d.accounts.EXPECT().GetByOwnerID(ctx, gomock.Any()).Return(testAccount("9999", "0"), nil)
		_, err := d.svc.Upload(ctx, uploadRequest(op, clientIdentity(), "x"))
		assert.Equal(t, apperror.CodeOperationNotFound, apperror.CodeOf(err))
	})

	t.Run("already attached", func(t *testing.T) {
		d := setupDocumentService(t, false)
		d.ops.EXPECT().GetByID(ctx, op.ID).Return(op, nil)
		d.accounts.EXPECT().GetByOwnerID(ctx, actor.ID).Return(acc, nil)
		d.docs.EXPECT().GetByOperationID(ctx, op.ID).Return(&domain.Document{ID: uuid.New()}, nil)
		_, err := d.svc.Upload(ctx, uploadRequest(op, actor, "x"))
		assert.Equal(t, "DOC_003", apperror.CodeOf(err))
	})

	t.Run("lost insert race removes blob", func(t *testing.T) {
		d := setupDocumentService(t, false)
		d.ops.EXPECT().GetByID(ctx, op.ID).Return(op, nil)
		d.accounts.EXPECT().GetByOwnerID(ctx, actor.ID).Return(acc, nil)
		d.docs.EXPECT().GetByOperationID(ctx, op.ID).Return(nil, nil)
		d.storage.EXPECT().Save(ctx, gomock.Any(), gomock.Any()).Return("uploads/a.txt", nil)
		d.docs.EXPECT().Create(ctx, gomock.Any()).Return(domain.ErrDuplicate)
		d.storage.EXPECT().Delete(ctx, "uploads/a.txt").Return(nil)
		_, err := d.svc.Upload(ctx, uploadRequest(op, actor, "x"))
		assert.Equal(t, "DOC_003", apperror.CodeOf(err))
	})
}

func TestDocumentService_GetAndOpen(t *testing.T) {
	d := setupDocumentService(t, false)
	ctx := context.Background()
	opID := uuid.New()
	doc := &domain.Document{ID: uuid.New(), OperationID: opID, StoragePath: "uploads/x.pdf"}

	d.docs.EXPECT().GetByOperationID(ctx, opID).Return(doc, nil).Times(2)
	d.storage.EXPECT().Open(ctx, "uploads/x.pdf").Return(io.NopCloser(strings.NewReader("%PDF")), nil)

	got, err := d.svc.GetDocument(ctx, opID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	_, rc, err := d.svc.OpenDocument(ctx, opID)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF", string(body))

	missing := uuid.New()
	d.docs.EXPECT().GetByOperationID(ctx, missing).Return(nil, nil)
	_, err = d.svc.GetDocument(ctx, missing)
	assert.Equal(t, "DOC_004", apperror.CodeOf(err))
}
