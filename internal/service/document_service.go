package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/blob"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
)

const (
	maxDocumentTitleLen       = 200
	maxDocumentDescriptionLen = 1000
)

// CreateDocumentInput carries the upload metadata plus the file stream.
type CreateDocumentInput struct {
	Title            string
	Description      string
	Category         string
	Tags             []string
	Classification   string
	DocumentNumber   string
	IssuingAuthority string
	IssueDate        *time.Time
	ExpiryDate       *time.Time

	FileName    string
	FileSize    int64
	ContentType string
	Content     io.Reader
}

// UpdateDocumentInput patches metadata. Nil means unchanged. File content,
// ownership and permissions never move through here.
type UpdateDocumentInput struct {
	Title              *string
	Description        *string
	Category           *string
	Tags               *[]string
	Classification     *string
	DocumentNumber     *string
	IssuingAuthority   *string
	VerificationStatus *string
	IssueDate          *time.Time
	ExpiryDate         *time.Time
}

// GroupShareInfo hydrates a family share with the group's current shape for
// the sharing inspection endpoint.
type GroupShareInfo struct {
	GroupID       string                 `json:"group_id"`
	GroupName     string                 `json:"group_name"`
	Permission    models.SharePermission `json:"permission"`
	SharedAt      time.Time              `json:"sharedAt"`
	SharedBy      string                 `json:"sharedBy"`
	ActiveMembers int                    `json:"active_members"`
}

// SharingView is the full sharing state of one document.
type SharingView struct {
	Individual map[string]models.IndividualShare `json:"individual"`
	Groups     []GroupShareInfo                  `json:"groups"`
}

// DocumentService owns documents, their blobs and the share-time permission
// projections.
type DocumentService interface {
	Create(ctx context.Context, caller *models.Principal, in CreateDocumentInput) (*models.Document, error)
	Get(ctx context.Context, caller *models.Principal, docID string) (*models.Document, error)
	Open(ctx context.Context, caller *models.Principal, docID string) (*models.Document, io.ReadCloser, error)
	List(ctx context.Context, caller *models.Principal, filter repository.DocumentFilter) ([]*models.Document, int, error)
	UpdateMetadata(ctx context.Context, caller *models.Principal, docID string, patch UpdateDocumentInput) (*models.Document, error)
	SoftDelete(ctx context.Context, caller *models.Principal, docID string) error
	Restore(ctx context.Context, caller *models.Principal, docID string) (*models.Document, error)
	ShareWithUser(ctx context.Context, caller *models.Principal, docID, email string, perm models.SharePermission) (*models.Document, error)
	ShareWithGroup(ctx context.Context, caller *models.Principal, docID, groupID string, perm models.SharePermission) (*models.Document, error)
	UnshareUser(ctx context.Context, caller *models.Principal, docID, userID string) (*models.Document, error)
	UnshareGroup(ctx context.Context, caller *models.Principal, docID, groupID string) (*models.Document, error)
	GetSharing(ctx context.Context, caller *models.Principal, docID string) (*SharingView, error)
}

type documentService struct {
	docs     repository.DocumentStore
	families repository.FamilyStore
	userRepo repository.UserRepository
	blobs    blob.Store
	perms    PermissionService
}

func NewDocumentService(docs repository.DocumentStore, families repository.FamilyStore, userRepo repository.UserRepository, blobs blob.Store, perms PermissionService) DocumentService {
	return &documentService{docs: docs, families: families, userRepo: userRepo, blobs: blobs, perms: perms}
}

// mutate is the document counterpart of the family CAS loop: reload, apply,
// conditional write, retry on lost races.
func (s *documentService) mutate(ctx context.Context, docID string, fn func(*models.Document) (bool, error)) (*models.Document, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		doc, err := s.docs.FindByID(ctx, docID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}

		expected := doc.LastModified
		write, opErr := fn(doc)
		if !write {
			return doc, opErr
		}

		doc.LastModified = time.Now().UTC()
		err = s.docs.Update(ctx, doc, expected)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return doc, opErr
	}
	return nil, ErrDBOperation
}

func canRead(doc *models.Document, userID string) bool {
	return doc.UploadedBy == userID || doc.Permissions.HasRead(userID)
}

func canWrite(doc *models.Document, userID string) bool {
	return doc.UploadedBy == userID || doc.Permissions.HasWrite(userID)
}

func canAdmin(doc *models.Document, userID string) bool {
	return doc.UploadedBy == userID || doc.Permissions.HasAdmin(userID)
}

func (s *documentService) Create(ctx context.Context, caller *models.Principal, in CreateDocumentInput) (*models.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError(ErrRequiredField, "title is required")
	}
	if len(title) > maxDocumentTitleLen {
		return nil, validationError(ErrInvalidFormat, "title must be at most 200 characters")
	}
	if len(in.Description) > maxDocumentDescriptionLen {
		return nil, validationError(ErrInvalidFormat, "description must be at most 1000 characters")
	}
	if in.Content == nil {
		return nil, validationError(ErrRequiredField, "file content is required")
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:                 uuid.New().String(),
		UploadedBy:         caller.UserID,
		Title:              title,
		Description:        strings.TrimSpace(in.Description),
		Category:           in.Category,
		Tags:               in.Tags,
		Classification:     in.Classification,
		DocumentNumber:     in.DocumentNumber,
		IssuingAuthority:   in.IssuingAuthority,
		VerificationStatus: "unverified",
		IssueDate:          in.IssueDate,
		ExpiryDate:         in.ExpiryDate,
		BlobRef:            uuid.New().String(),
		FileName:           in.FileName,
		FileSize:           in.FileSize,
		ContentType:        in.ContentType,
		UploadDate:         now,
		LastModified:       now,
		Status:             models.DocumentStatusActive,
		IndividualSharing:  make(map[string]models.IndividualShare),
		FamilySharing:      make(map[string]models.FamilyShare),
	}
	doc.Permissions.GrantAdmin(caller.UserID)

	if err := s.blobs.Put(doc.BlobRef, in.Content); err != nil {
		return nil, err
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// Orphaned bytes are worse than a failed request left clean.
		if delErr := s.blobs.Delete(doc.BlobRef); delErr != nil {
			log.Printf("[Document] blob cleanup after failed create: %v", delErr)
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, caller *models.Principal, docID string) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !s.perms.Can(caller.UserID, doc, ActionRead) {
		return nil, ErrForbidden
	}
	return doc, nil
}

func (s *documentService) Open(ctx context.Context, caller *models.Principal, docID string) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, caller, docID)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status != models.DocumentStatusActive {
		return nil, nil, ErrNotFound
	}
	rc, err := s.blobs.Open(doc.BlobRef)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

func (s *documentService) List(ctx context.Context, caller *models.Principal, filter repository.DocumentFilter) ([]*models.Document, int, error) {
	if filter.Status != "" &&
		filter.Status != string(models.DocumentStatusActive) &&
		filter.Status != string(models.DocumentStatusDeleted) {
		return nil, 0, validationError(ErrInvalidFormat, "status must be active or deleted")
	}
	return s.docs.FindVisibleTo(ctx, caller.UserID, filter)
}

func (s *documentService) UpdateMetadata(ctx context.Context, caller *models.Principal, docID string, patch UpdateDocumentInput) (*models.Document, error) {
	return s.mutate(ctx, docID, func(d *models.Document) (bool, error) {
		if !s.perms.Can(caller.UserID, d, ActionWrite) {
			return false, ErrForbidden
		}
		if d.Status != models.DocumentStatusActive {
			return false, ErrForbidden
		}
		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return false, validationError(ErrRequiredField, "title is required")
			}
			if len(title) > maxDocumentTitleLen {
				return false, validationError(ErrInvalidFormat, "title must be at most 200 characters")
			}
			d.Title = title
		}
		if patch.Description != nil {
			if len(*patch.Description) > maxDocumentDescriptionLen {
				return false, validationError(ErrInvalidFormat, "description must be at most 1000 characters")
			}
			d.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Category != nil {
			d.Category = *patch.Category
		}
		if patch.Tags != nil {
			d.Tags = *patch.Tags
		}
		if patch.Classification != nil {
			d.Classification = *patch.Classification
		}
		if patch.DocumentNumber != nil {
			d.DocumentNumber = *patch.DocumentNumber
		}
		if patch.IssuingAuthority != nil {
			d.IssuingAuthority = *patch.IssuingAuthority
		}
		if patch.VerificationStatus != nil {
			d.VerificationStatus = *patch.VerificationStatus
		}
		if patch.IssueDate != nil {
			d.IssueDate = patch.IssueDate
		}
		if patch.ExpiryDate != nil {
			d.ExpiryDate = patch.ExpiryDate
		}
		return true, nil
	})
}

// SoftDelete marks the document deleted and reclaims its blob. The bytes are
// gone once this returns; only the metadata row survives for Restore.
func (s *documentService) SoftDelete(ctx context.Context, caller *models.Principal, docID string) error {
	var blobRef string
	_, err := s.mutate(ctx, docID, func(d *models.Document) (bool, error) {
		if !s.perms.Can(caller.UserID, d, ActionAdmin) {
			return false, ErrForbidden
		}
		if d.Status == models.DocumentStatusDeleted {
			return false, nil
		}
		now := time.Now().UTC()
		d.Status = models.DocumentStatusDeleted
		d.DeletedBy = caller.UserID
		d.DeletedAt = &now
		blobRef = d.BlobRef
		return true, nil
	})
	if err != nil {
		return err
	}
	// Best effort: a stuck blob store must not fail the delete.
	if blobRef != "" {
		if delErr := s.blobs.Delete(blobRef); delErr != nil {
			log.Printf("[Document] blob removal failed for %s: %v", docID, delErr)
		}
	}
	return nil
}

// Restore brings the metadata record back to active. The blob was reclaimed
// at delete time, so the file content must be uploaded again.
func (s *documentService) Restore(ctx context.Context, caller *models.Principal, docID string) (*models.Document, error) {
	return s.mutate(ctx, docID, func(d *models.Document) (bool, error) {
		if !s.perms.Can(caller.UserID, d, ActionAdmin) {
			return false, ErrForbidden
		}
		if d.Status != models.DocumentStatusDeleted {
			return false, validationError(ErrInvalidFormat, "only deleted documents can be restored")
		}
		d.Status = models.DocumentStatusActive
		d.DeletedBy = ""
		d.DeletedAt = nil
		return true, nil
	})
}

func (s *documentService) ShareWithUser(ctx context.Context, caller *models.Principal, docID, email string, perm models.SharePermission) (*models.Document, error) {
	if !perm.Valid() {
		return nil, validationError(ErrInvalidFormat, "permission must be read or write")
	}
	target, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, docID, func(d *models.Document) (bool, error) {
		if !s.perms.Can(caller.UserID, d, ActionAdmin) {
			return false, ErrForbidden
		}
		if d.Status != models.DocumentStatusActive {
			return false, ErrForbidden
		}
		if target.ID == d.UploadedBy {
			return false, validationError(ErrInvalidFormat, "document owner already has full access")
		}
		d.IndividualSharing[target.ID] = models.IndividualShare{
			Email:       target.Email,
			DisplayName: target.DisplayName,
			Permission:  perm,
			SharedAt:    time.Now().UTC(),
			SharedBy:    caller.UserID,
		}
		// Downgrades need a recompute; a bare Grant would never shrink
		// the write set.
		return true, s.rebuildPermissions(ctx, d)
	})
}

func (s *documentService) ShareWithGroup(ctx context.Context, caller *models.Principal, docID, groupID string, perm models.SharePermission) (*models.Document, error) {
	if !perm.Valid() {
		return nil, validationError(ErrInvalidFormat, "permission must be read or write")
	}
	group, err := s.families.FindByID(ctx, groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	if group.ActiveMember(caller.UserID) == nil {
		return nil, ErrForbidden
	}

	return s.mutate(ctx, docID, func(d *models.Document) (bool, error) {
		if !s.perms.Can(caller.UserID, d, ActionAdmin) {
			return false, ErrForbidden
		}
		if d.Status != models.DocumentStatusActive {
			return false, ErrForbidden
		}
		d.FamilySharing[group.ID] = models.FamilyShare{
			GroupName:  group.Name,
			Permission: perm,
			SharedAt:   time.Now().UTC(),
			SharedBy:   caller.UserID,
		}
		return true, s.rebuildPermissions(ctx, d)
	})
}

// UnshareUser drops the target's individual share and recomputes the
// projection from the surviving records, same as every other share mutation.
// A user still covered by a family share keeps that group's access level,
// so the outcome is stable across later shares.
func (s *documentService) UnshareUser(ctx context.Context, caller *models.Principal, docID, userID string) (*models.Document, error) {
	return s.mutate(ctx, docID, func(d *models.Document) (bool, error) {
		if !s.perms.Can(caller.UserID, d, ActionAdmin) {
			return false, ErrForbidden
		}
		if userID == d.UploadedBy {
			return false, validationError(ErrInvalidFormat, "document owner cannot be unshared")
		}
		_, hadShare := d.IndividualSharing[userID]
		if !hadShare && !d.Permissions.HasRead(userID) {
			return false, ErrNotFound
		}
		delete(d.IndividualSharing, userID)
		return true, s.rebuildPermissions(ctx, d)
	})
}

// UnshareGroup removes the group share and recomputes every remaining grant
// from the surviving shares, so users also covered by an individual share or
// another group keep their access.
func (s *documentService) UnshareGroup(ctx context.Context, caller *models.Principal, docID, groupID string) (*models.Document, error) {
	return s.mutate(ctx, docID, func(d *models.Document) (bool, error) {
		if !s.perms.Can(caller.UserID, d, ActionAdmin) {
			return false, ErrForbidden
		}
		if _, ok := d.FamilySharing[groupID]; !ok {
			return false, ErrNotFound
		}
		delete(d.FamilySharing, groupID)
		return true, s.rebuildPermissions(ctx, d)
	})
}

// rebuildPermissions recomputes the projection from the owner seed plus the
// current share records, fanning family shares out over the groups' active
// members as of now.
func (s *documentService) rebuildPermissions(ctx context.Context, d *models.Document) error {
	fresh := models.PermissionProjection{}
	fresh.GrantAdmin(d.UploadedBy)

	for userID, share := range d.IndividualSharing {
		fresh.Grant(userID, share.Permission)
	}
	for groupID, share := range d.FamilySharing {
		group, err := s.families.FindByID(ctx, groupID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		for _, memberID := range group.ActiveMemberIDs() {
			if memberID == d.UploadedBy {
				continue
			}
			fresh.Grant(memberID, share.Permission)
		}
	}
	d.Permissions = fresh
	return nil
}

func (s *documentService) GetSharing(ctx context.Context, caller *models.Principal, docID string) (*SharingView, error) {
	doc, err := s.Get(ctx, caller, docID)
	if err != nil {
		return nil, err
	}
	if !s.perms.Can(caller.UserID, doc, ActionAdmin) {
		return nil, ErrForbidden
	}

	view := &SharingView{
		Individual: doc.IndividualSharing,
		Groups:     make([]GroupShareInfo, 0, len(doc.FamilySharing)),
	}
	for groupID, share := range doc.FamilySharing {
		info := GroupShareInfo{
			GroupID:    groupID,
			GroupName:  share.GroupName,
			Permission: share.Permission,
			SharedAt:   share.SharedAt,
			SharedBy:   share.SharedBy,
		}
		group, err := s.families.FindByID(ctx, groupID)
		if err == nil {
			info.GroupName = group.Name
			info.ActiveMembers = group.ActiveMemberCount()
		}
		view.Groups = append(view.Groups, info)
	}
	return view, nil
}
