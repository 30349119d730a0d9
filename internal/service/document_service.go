package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const noExtractedContent = "No content extracted"

var extensionByType = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"text/plain":      ".txt",
}

// DocumentPolicy bounds what an upload may contain.
type DocumentPolicy struct {
	MaxSizeBytes  int64
	AllowedTypes  []string
	AssessTimeout time.Duration
}

// DocumentServiceImpl implements ports.DocumentService.
// After a document is stored, the advisory oracle runs in the background and
// its verdict is written as the operation's annotation. It never changes status.
type DocumentServiceImpl struct {
	ops       ports.OperationRepository
	accounts  ports.AccountRepository
	docs      ports.DocumentRepository
	storage   ports.DocumentStorage
	extractor ports.TextExtractor
	oracle    ports.AdvisoryOracle
	maxSize   int64
	allowed   map[string]bool
	timeout   time.Duration
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewDocumentService creates a new DocumentServiceImpl. oracle may be nil to
// disable advisory assessment.
func NewDocumentService(
	ops ports.OperationRepository,
	accounts ports.AccountRepository,
	docs ports.DocumentRepository,
	storage ports.DocumentStorage,
	extractor ports.TextExtractor,
	oracle ports.AdvisoryOracle,
	policy DocumentPolicy,
	log zerolog.Logger,
) *DocumentServiceImpl {
	allowed := make(map[string]bool, len(policy.AllowedTypes))
	for _, t := range policy.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	timeout := policy.AssessTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DocumentServiceImpl{
		ops:       ops,
		accounts:  accounts,
		docs:      docs,
		storage:   storage,
		extractor: extractor,
		oracle:    oracle,
		maxSize:   policy.MaxSizeBytes,
		allowed:   allowed,
		timeout:   timeout,
		log:       log,
	}
}

// Upload attaches a document to one of the actor's operations.
func (s *DocumentServiceImpl) Upload(ctx context.Context, req ports.UploadDocumentRequest) (*domain.Document, error) {
	if req.Size == 0 {
		return nil, apperror.ErrEmptyDocument()
	}
	if req.Size > s.maxSize {
		return nil, apperror.ErrDocumentTooLarge(s.maxSize)
	}
	contentType := normalizeContentType(req.ContentType)
	if !s.allowed[contentType] {
		return nil, apperror.ErrDocumentType()
	}

	op, err := s.ops.GetByID(ctx, req.OperationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get operation: %w", err))
	}
	if op == nil {
		return nil, apperror.ErrOperationNotFound()
	}

	account, err := s.accounts.GetByOwnerID(ctx, req.Actor.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account by owner: %w", err))
	}
	if account == nil || op.SourceAccountID != account.ID {
		// Operations of other customers are reported as missing.
		return nil, apperror.ErrOperationNotFound()
	}

	existing, err := s.docs.GetByOperationID(ctx, op.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get document: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDocumentExists()
	}

	data, err := io.ReadAll(io.LimitReader(req.Content, s.maxSize+1))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read upload: %w", err))
	}
	if len(data) == 0 {
		return nil, apperror.ErrEmptyDocument()
	}
	if int64(len(data)) > s.maxSize {
		return nil, apperror.ErrDocumentTooLarge(s.maxSize)
	}

	name := fmt.Sprintf("%s_%s%s", op.ID, uuid.New(), extensionFor(contentType, req.FileName))
	path, err := s.storage.Save(ctx, name, bytes.NewReader(data))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store document: %w", err))
	}

	doc := &domain.Document{
		ID:          uuid.New(),
		OperationID: op.ID,
		FileName:    filepath.Base(req.FileName),
		FileType:    contentType,
		SizeBytes:   int64(len(data)),
		StoragePath: path,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, path); delErr != nil {
			s.log.Warn().Err(delErr).Str("path", path).Msg("failed to remove orphaned document")
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apperror.ErrDocumentExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create document: %w", err))
	}

	s.log.Info().
		Str("operation_id", op.ID.String()).
		Str("document_id", doc.ID.String()).
		Str("file_type", contentType).
		Int64("size_bytes", doc.SizeBytes).
		Msg("document uploaded")

	s.assessAsync(*op, contentType, data)

	return doc, nil
}

// GetDocument returns the metadata of the document attached to an operation.
func (s *DocumentServiceImpl) GetDocument(ctx context.Context, operationID uuid.UUID) (*domain.Document, error) {
	doc, err := s.docs.GetByOperationID(ctx, operationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get document: %w", err))
	}
	if doc == nil {
		return nil, apperror.ErrDocumentNotFound()
	}
	return doc, nil
}

// OpenDocument returns the document metadata and its content. The caller closes the reader.
func (s *DocumentServiceImpl) OpenDocument(ctx context.Context, operationID uuid.UUID) (*domain.Document, io.ReadCloser, error) {
	doc, err := s.GetDocument(ctx, operationID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("open document: %w", err))
	}
	return doc, rc, nil
}

// Wait blocks until background assessments finish.
func (s *DocumentServiceImpl) Wait() {
	s.wg.Wait()
}

func (s *DocumentServiceImpl) assessAsync(op domain.Operation, contentType string, data []byte) {
	if s.oracle == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		annotation := s.assess(ctx, op, contentType, data)
		if err := s.ops.UpdateAnnotation(context.Background(), op.ID, annotation); err != nil {
			s.log.Warn().Err(err).Str("operation_id", op.ID.String()).Msg("failed to store advisory annotation")
			return
		}
		s.log.Info().
			Str("operation_id", op.ID.String()).
			Str("annotation", annotation).
			Msg("advisory annotation stored")
	}()
}

func (s *DocumentServiceImpl) assess(ctx context.Context, op domain.Operation, contentType string, data []byte) string {
	text, err := s.extractor.Extract(ctx, contentType, data)
	if err != nil {
		s.log.Warn().Err(err).Str("operation_id", op.ID.String()).Msg("text extraction failed")
		return domain.FailedAssessmentAnnotation(err)
	}
	if strings.TrimSpace(text) == "" {
		text = noExtractedContent
	}

	assessment, err := s.oracle.Assess(ctx, ports.AssessmentRequest{
		Amount:        op.Amount,
		Kind:          op.Kind,
		DocumentKind:  contentType,
		ExtractedText: text,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("operation_id", op.ID.String()).Msg("advisory assessment failed")
		return domain.FailedAssessmentAnnotation(err)
	}
	return assessment.Annotation()
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func extensionFor(contentType, fileName string) string {
	if ext, ok := extensionByType[contentType]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(fileName))
}
