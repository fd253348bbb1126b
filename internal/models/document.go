package models

import "time"

// DocumentStatus represents lifecycle state of a document
type DocumentStatus string

const (
	DocumentStatusActive  DocumentStatus = "active"
	DocumentStatusDeleted DocumentStatus = "deleted"
)

// SharePermission is the permission granted by a share. Shares never grant
// admin; only the uploader's seed grant carries it.
type SharePermission string

const (
	SharePermissionRead  SharePermission = "read"
	SharePermissionWrite SharePermission = "write"
)

func (p SharePermission) Valid() bool {
	return p == SharePermissionRead || p == SharePermissionWrite
}

// PermissionProjection is the three sets {read, write, admin} of user ids
// attached to a document, materialized at share-time. The invariant
// admin ⊆ write ⊆ read holds after every mutation.
type PermissionProjection struct {
	Read  []string `json:"read"`
	Write []string `json:"write"`
	Admin []string `json:"admin"`
}

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func addUnique(set []string, id string) []string {
	if contains(set, id) {
		return set
	}
	return append(set, id)
}

func (p *PermissionProjection) HasRead(userID string) bool  { return contains(p.Read, userID) }
func (p *PermissionProjection) HasWrite(userID string) bool { return contains(p.Write, userID) }
func (p *PermissionProjection) HasAdmin(userID string) bool { return contains(p.Admin, userID) }

// Grant adds userID to the permission set, cascading down so the subset
// chain admin ⊆ write ⊆ read is preserved.
func (p *PermissionProjection) Grant(userID string, perm SharePermission) {
	p.Read = addUnique(p.Read, userID)
	if perm == SharePermissionWrite {
		p.Write = addUnique(p.Write, userID)
	}
}

// GrantAdmin adds userID to all three sets.
func (p *PermissionProjection) GrantAdmin(userID string) {
	p.Read = addUnique(p.Read, userID)
	p.Write = addUnique(p.Write, userID)
	p.Admin = addUnique(p.Admin, userID)
}

// IndividualShare is a permission grant directly addressed to one user.
// Keyed by the shared user's id in Document.IndividualSharing.
type IndividualShare struct {
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name,omitempty"`
	Permission  SharePermission `json:"permission"`
	SharedAt    time.Time       `json:"sharedAt"`
	SharedBy    string          `json:"sharedBy"`
}

// FamilyShare is a permission grant addressed to a group, fanned out to its
// active members at share time. Keyed by group id in Document.FamilySharing.
type FamilyShare struct {
	GroupName  string          `json:"group_name"`
	Permission SharePermission `json:"permission"`
	SharedAt   time.Time       `json:"sharedAt"`
	SharedBy   string          `json:"sharedBy"`
}

// Document owns its metadata and permission projections by value. Blob
// bytes live behind an opaque BlobRef.
type Document struct {
	ID                 string         `json:"id"`
	UploadedBy         string         `json:"uploaded_by"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Category           string         `json:"category,omitempty"`
	Tags               []string       `json:"tags,omitempty"`
	Classification     string         `json:"classification,omitempty"`
	DocumentNumber     string         `json:"document_number,omitempty"`
	IssuingAuthority   string         `json:"issuing_authority,omitempty"`
	VerificationStatus string         `json:"verification_status,omitempty"`
	IssueDate          *time.Time     `json:"issue_date,omitempty"`
	ExpiryDate         *time.Time     `json:"expiry_date,omitempty"`
	BlobRef            string         `json:"-"`
	FileName           string         `json:"file_name,omitempty"`
	FileSize           int64          `json:"file_size,omitempty"`
	ContentType        string         `json:"content_type,omitempty"`
	UploadDate         time.Time      `json:"upload_date"`
	LastModified       time.Time      `json:"last_modified"`
	Status             DocumentStatus `json:"status"`
	DeletedBy          string         `json:"deleted_by,omitempty"`
	DeletedAt          *time.Time     `json:"deleted_at,omitempty"`

	Permissions       PermissionProjection       `json:"permissions"`
	IndividualSharing map[string]IndividualShare `json:"individualSharing"`
	FamilySharing     map[string]FamilyShare     `json:"familySharing"`
}
