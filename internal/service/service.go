package service

import (
	"github.com/sreesaivardhan/SecureGov-sub000/internal/blob"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/config"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/db"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/email"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
)

// Services bundles every service for handler wiring.
type Services struct {
	Auth        AuthService
	Users       UserService
	Families    FamilyService
	Documents   DocumentService
	Permissions PermissionService
}

// ServiceDeps carries the infrastructure services are built on.
type ServiceDeps struct {
	Config   *config.Config
	Repos    *repository.Repositories
	EmailSvc *email.Service
	Blobs    blob.Store
	Cache    *db.RedisDB
}

func NewServices(deps ServiceDeps) *Services {
	verifier := NewJWTVerifier(deps.Config.IdentityVerifierConfig)
	var cache DirectoryCache
	if deps.Cache != nil {
		cache = deps.Cache
	}
	perms := NewPermissionService()
	return &Services{
		Auth:  NewAuthService(verifier),
		Users: NewUserService(deps.Repos.UserRepo, cache),
		Families: NewFamilyService(
			deps.Repos.FamilyStore,
			deps.Repos.Families,
			deps.Repos.UserRepo,
			deps.EmailSvc,
			deps.Config.InvitationTTLDays,
			deps.Config.MaxGroupMembersCap,
		),
		Documents:   NewDocumentService(deps.Repos.DocumentStore, deps.Repos.FamilyStore, deps.Repos.UserRepo, deps.Blobs, perms),
		Permissions: perms,
	}
}
