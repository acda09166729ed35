package kyc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/actor"
	"github.com/ManuelReschke/FeeBook/internal/pkg/docstore"
	"github.com/ManuelReschke/FeeBook/internal/pkg/upload"
)

const sniffLen = 512

var (
	ErrNotFound        = errors.New("verification not found")
	ErrRemarksRequired = errors.New("remarks are required when rejecting or requesting changes")
)

// Jobs schedules background work triggered by KYC changes.
type Jobs interface {
	EnqueueDocumentPreview(ctx context.Context, verificationID uint, objectKey string) error
	EnqueueReviewNotification(ctx context.Context, verificationID uint) error
}

// View is a provider's verification state with its status page.
type View struct {
	Status       Status                       `json:"status"`
	Verification *models.ProviderVerification `json:"verification,omitempty"`
	Page         StatusPage                   `json:"page"`
}

// Service runs the KYC workflow.
type Service struct {
	repo  Repository
	store docstore.Store
	jobs  Jobs
	now   func() time.Time
}

func NewService(repo Repository, store docstore.Store, jobs Jobs) *Service {
	return &Service{repo: repo, store: store, jobs: jobs, now: time.Now}
}

// NewServiceFromDB creates a KYC service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, store docstore.Store, jobs Jobs) *Service {
	return NewService(NewRepository(db), store, jobs)
}

// Get returns the provider's current state. A provider without a record is
// in NO_SUBMISSION.
func (s *Service) Get(ctx context.Context, a actor.Actor, providerID uint) (*View, error) {
	_ = ctx
	if err := a.RequireProvider(providerID); err != nil {
		return nil, err
	}
	v, err := s.repo.GetByProvider(providerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	status := StatusNoSubmission
	if v != nil {
		if status, err = ParseStatus(v.Status); err != nil {
			return nil, err
		}
	}
	page, err := PageFor(status)
	if err != nil {
		return nil, err
	}
	return &View{Status: status, Verification: v, Page: page}, nil
}

// SubmitOrganization validates and stores an organization KYC submission.
func (s *Service) SubmitOrganization(ctx context.Context, a actor.Actor, form OrganizationForm, docs map[string]Document) (*models.ProviderVerification, error) {
	form.Normalize()
	errs := form.Validate()
	return s.submit(ctx, a, models.VerificationKindOrganization, string(form.EntityType), Flatten(&form), errs, form.RequiredDocuments(), docs)
}

// SubmitIndividual validates and stores an individual KYC submission.
func (s *Service) SubmitIndividual(ctx context.Context, a actor.Actor, form IndividualForm, docs map[string]Document) (*models.ProviderVerification, error) {
	form.Normalize()
	errs := form.Validate(s.now())
	return s.submit(ctx, a, models.VerificationKindIndividual, "", Flatten(&form), errs, form.RequiredDocuments(), docs)
}

func (s *Service) submit(ctx context.Context, a actor.Actor, kind, entityType string, details map[string]string, errs ValidationErrors, required []string, docs map[string]Document) (*models.ProviderVerification, error) {
	if !a.Is(actor.RoleProvider) {
		return nil, actor.ErrForbidden
	}
	providerID := a.ProviderID
	if err := a.RequireProvider(providerID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByProvider(providerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	current := StatusNoSubmission
	if existing != nil {
		if current, err = ParseStatus(existing.Status); err != nil {
			return nil, err
		}
	}
	if _, err := Transition(current, StatusProcessing); err != nil {
		return nil, err
	}

	mimes := checkDocuments(errs, required, docs)
	if len(errs) > 0 {
		return nil, errs
	}

	stored, err := s.storeDocuments(ctx, providerID, required, docs, mimes)
	if err != nil {
		return nil, err
	}

	v := &models.ProviderVerification{ProviderID: providerID}
	if existing != nil {
		v = existing
	}
	v.Kind = kind
	v.EntityType = entityType
	v.Status = string(StatusProcessing)
	v.Details = toJSONMap(details)
	v.Documents = toJSONMap(stored)
	v.Remarks = ""
	v.ReviewedBy = nil
	v.ReviewedAt = nil
	v.SubmittedAt = s.now()
	if err := s.repo.Upsert(v); err != nil {
		s.discard(ctx, stored)
		return nil, fmt.Errorf("save verification: %w", err)
	}
	if existing != nil {
		s.discard(ctx, oldKeys(existing.Documents, stored))
	}
	log.Infof("[KYC] Provider %d submitted %s verification %d", providerID, strings.ToLower(kind), v.ID)

	if s.jobs != nil {
		for field, key := range stored {
			if !upload.IsImage(mimes[field]) {
				continue
			}
			if err := s.jobs.EnqueueDocumentPreview(ctx, v.ID, key); err != nil {
				log.Warnf("[KYC] Failed to enqueue preview for %s: %v", key, err)
			}
		}
	}
	return v, nil
}

// checkDocuments records missing and invalid uploads in errs and returns the
// sniffed mime type per field.
func checkDocuments(errs ValidationErrors, required []string, docs map[string]Document) map[string]string {
	mimes := make(map[string]string, len(required))
	for _, field := range required {
		doc, ok := docs[field]
		if !ok || doc.Open == nil || doc.Size == 0 {
			errs.add(field, "is required")
			continue
		}
		head, err := readHead(doc)
		if err != nil {
			errs.add(field, "could not be read")
			continue
		}
		mime, err := upload.ValidateDocumentBySniff(doc.Filename, doc.Size, head)
		if err != nil {
			errs.add(field, err.Error())
			continue
		}
		mimes[field] = mime
	}
	return mimes
}

func readHead(doc Document) ([]byte, error) {
	rc, err := doc.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (s *Service) storeDocuments(ctx context.Context, providerID uint, fields []string, docs map[string]Document, mimes map[string]string) (map[string]string, error) {
	stored := make(map[string]string, len(fields))
	for _, field := range fields {
		doc := docs[field]
		key := docstore.KYCObjectKey(providerID, field, doc.Ext())
		rc, err := doc.Open()
		if err != nil {
			s.discard(ctx, stored)
			return nil, fmt.Errorf("open %s: %w", field, err)
		}
		_, err = s.store.Put(ctx, key, mimes[field], rc, doc.Size)
		rc.Close()
		if err != nil {
			s.discard(ctx, stored)
			return nil, fmt.Errorf("store %s: %w", field, err)
		}
		stored[field] = key
	}
	return stored, nil
}

func (s *Service) discard(ctx context.Context, keys map[string]string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			log.Warnf("[KYC] Failed to delete document %s: %v", key, err)
		}
	}
}

func oldKeys(previous datatypes.JSONMap, current map[string]string) map[string]string {
	keep := make(map[string]bool, len(current))
	for _, k := range current {
		keep[k] = true
	}
	out := map[string]string{}
	for field, v := range previous {
		if key, ok := v.(string); ok && !keep[key] {
			out[field] = key
		}
	}
	return out
}

func toJSONMap(m map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Review applies a back-office decision to a PROCESSING verification.
func (s *Service) Review(ctx context.Context, a actor.Actor, verificationID uint, decision Decision, remarks string) (*models.ProviderVerification, error) {
	if err := a.RequireStaff(); err != nil {
		return nil, err
	}
	target, err := decision.Target()
	if err != nil {
		return nil, err
	}
	remarks = strings.TrimSpace(remarks)
	if target != StatusVerified && remarks == "" {
		return nil, ErrRemarksRequired
	}

	v, err := s.repo.GetByID(verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	current, err := ParseStatus(v.Status)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(current, target); err != nil {
		return nil, err
	}

	now := s.now()
	reviewer := a.UserID
	v.Status = string(target)
	v.Remarks = remarks
	v.ReviewedBy = &reviewer
	v.ReviewedAt = &now
	if err := s.repo.Save(v); err != nil {
		return nil, err
	}

	verified := target == StatusVerified
	var at *time.Time
	if verified {
		at = &now
	}
	if err := s.repo.SetProviderVerified(v.ProviderID, verified, at); err != nil {
		return nil, fmt.Errorf("update provider: %w", err)
	}
	log.Infof("[KYC] Verification %d of provider %d set to %s by user %d", v.ID, v.ProviderID, target, a.UserID)

	if s.jobs != nil {
		if err := s.jobs.EnqueueReviewNotification(ctx, v.ID); err != nil {
			log.Warnf("[KYC] Failed to enqueue notification for verification %d: %v", v.ID, err)
		}
	}
	return v, nil
}

// List returns verifications for the admin queue.
func (s *Service) List(ctx context.Context, a actor.Actor, status string, page, limit int) ([]models.ProviderVerification, int64, error) {
	_ = ctx
	if err := a.RequireStaff(); err != nil {
		return nil, 0, err
	}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, 0, err
		}
		status = string(st)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.List(status, (page-1)*limit, limit)
}

// GetByID returns one verification for review.
func (s *Service) GetByID(ctx context.Context, a actor.Actor, id uint) (*models.ProviderVerification, error) {
	_ = ctx
	if err := a.RequireStaff(); err != nil {
		return nil, err
	}
	v, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// DocumentKeys returns the stored object keys of a verification by field.
func DocumentKeys(v *models.ProviderVerification) []DocumentRef {
	refs := make([]DocumentRef, 0, len(v.Documents))
	for field, raw := range v.Documents {
		if key, ok := raw.(string); ok {
			refs = append(refs, DocumentRef{Field: field, Key: key})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Field < refs[j].Field })
	return refs
}

// DocumentRef names one stored document.
type DocumentRef struct {
	Field string `json:"field"`
	Key   string `json:"key"`
}

// OpenDocument streams a stored document.
func (s *Service) OpenDocument(ctx context.Context, key string) (io.ReadCloser, *docstore.Object, error) {
	return s.store.Get(ctx, key)
}
