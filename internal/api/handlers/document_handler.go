package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/api/middleware"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

// ============================================
// Document Handler
// ============================================

type DocumentHandler struct {
	documentService service.DocumentService
	maxUploadSize   int64
}

// allowedExtensions whitelists upload file types. Content type is checked
// alongside because extensions are client-supplied.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

var allowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"image/png":          true,
	"image/jpeg":         true,
	"image/webp":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":               true,
	"application/octet-stream": true,
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}

func (h *DocumentHandler) Create(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	if err := c.Request.ParseMultipartForm(h.maxUploadSize); err != nil {
		respondError(c, service.ErrFileTooLarge)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file field is required")
		return
	}
	if fileHeader.Size > h.maxUploadSize {
		respondError(c, service.ErrFileTooLarge)
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedExtensions[ext] || (contentType != "" && !allowedContentTypes[contentType]) {
		respondError(c, service.ErrInvalidFileType)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	doc, err := h.documentService.Create(c.Request.Context(), principal, service.CreateDocumentInput{
		Title:            c.PostForm("title"),
		Description:      c.PostForm("description"),
		Category:         c.PostForm("category"),
		Tags:             tags,
		Classification:   c.PostForm("classification"),
		DocumentNumber:   c.PostForm("document_number"),
		IssuingAuthority: c.PostForm("issuing_authority"),
		IssueDate:        parseDate(c.PostForm("issue_date")),
		ExpiryDate:       parseDate(c.PostForm("expiry_date")),
		FileName:         fileHeader.Filename,
		FileSize:         fileHeader.Size,
		ContentType:      contentType,
		Content:          file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter := repository.DocumentFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		SortBy:   c.DefaultQuery("sort_by", "upload_date"),
		SortDesc: c.DefaultQuery("sort_order", "desc") == "desc",
		Limit:    limit,
		Offset:   offset,
	}

	docs, total, err := h.documentService.List(c.Request.Context(), principal, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	respondOK(c, http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

func (h *DocumentHandler) Download(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	doc, rc, err := h.documentService.Open(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	if doc.FileSize > 0 {
		c.DataFromReader(http.StatusOK, doc.FileSize, contentType, rc, nil)
		return
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

type updateDocumentRequest struct {
	Title              *string   `json:"title"`
	Description        *string   `json:"description"`
	Category           *string   `json:"category"`
	Tags               *[]string `json:"tags"`
	Classification     *string   `json:"classification"`
	DocumentNumber     *string   `json:"document_number"`
	IssuingAuthority   *string   `json:"issuing_authority"`
	VerificationStatus *string   `json:"verification_status"`
	IssueDate          *string   `json:"issue_date"`
	ExpiryDate         *string   `json:"expiry_date"`
}

func (h *DocumentHandler) Update(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	patch := service.UpdateDocumentInput{
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		Tags:               req.Tags,
		Classification:     req.Classification,
		DocumentNumber:     req.DocumentNumber,
		IssuingAuthority:   req.IssuingAuthority,
		VerificationStatus: req.VerificationStatus,
	}
	if req.IssueDate != nil {
		patch.IssueDate = parseDate(*req.IssueDate)
	}
	if req.ExpiryDate != nil {
		patch.ExpiryDate = parseDate(*req.ExpiryDate)
	}

	doc, err := h.documentService.UpdateMetadata(c.Request.Context(), principal, c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	if err := h.documentService.SoftDelete(c.Request.Context(), principal, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (h *DocumentHandler) Restore(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Restore(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

type shareRequest struct {
	ShareType     string                 `json:"shareType"`
	Email         string                 `json:"email"`
	FamilyGroupID string                 `json:"familyGroupId"`
	UserID        string                 `json:"userId"`
	Permission    models.SharePermission `json:"permission"`
}

func (h *DocumentHandler) Share(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	var doc *models.Document
	var err error
	switch req.ShareType {
	case "individual":
		doc, err = h.documentService.ShareWithUser(c.Request.Context(), principal, c.Param("id"), req.Email, req.Permission)
	case "family":
		doc, err = h.documentService.ShareWithGroup(c.Request.Context(), principal, c.Param("id"), req.FamilyGroupID, req.Permission)
	default:
		respondBadRequest(c, "shareType must be individual or family")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

func (h *DocumentHandler) Unshare(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	var doc *models.Document
	var err error
	switch req.ShareType {
	case "individual":
		doc, err = h.documentService.UnshareUser(c.Request.Context(), principal, c.Param("id"), req.UserID)
	case "family":
		doc, err = h.documentService.UnshareGroup(c.Request.Context(), principal, c.Param("id"), req.FamilyGroupID)
	default:
		respondBadRequest(c, "shareType must be individual or family")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

func (h *DocumentHandler) Sharing(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	view, err := h.documentService.GetSharing(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, view)
}
