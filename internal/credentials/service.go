package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/openbank/authcore/internal/audit"
	"github.com/openbank/authcore/internal/common"
	"github.com/openbank/authcore/internal/rbac"
	"github.com/openbank/authcore/internal/scopes"
	"github.com/openbank/authcore/internal/store"
	"github.com/openbank/authcore/model"
	"github.com/openbank/authcore/params"
	"gorm.io/gorm"
)

type RegisterDeveloperOptions struct {
	Name     string
	Email    string
	Company  string
	Title    string
	Password string
}

type CreateProjectOptions struct {
	Name         string
	Description  string
	Environment  string
	RedirectURIs []string
	Scopes       []string
	RateLimit    int
	MonthlyQuota int64
}

type EventEmitter interface {
	Emit(event *model.SecurityEvent)
}

type RoleGranter interface {
	GrantRole(ctx context.Context, developerID uint, role rbac.Role, grantedBy uint, expiresAt *time.Time) error
}

// Service owns Developer and Project rows. Project lookups by client id go
// through a read-through cache that is invalidated synchronously on every
// write; a stale read may only ever narrow access, never widen it.
type Service struct {
	developerRepo DeveloperRepository
	projectRepo   ProjectRepository
	projectCache  store.Store[model.Project]
	emitter       EventEmitter
	roles         RoleGranter
}

func NewService(developerRepo DeveloperRepository, projectRepo ProjectRepository, storage store.Storage) *Service {
	return &Service{
		developerRepo: developerRepo,
		projectRepo:   projectRepo,
		projectCache:  store.New[model.Project](storage, params.ProjectCachePrefix),
	}
}

// WithEmitter enables audit events for credential writes.
func (s *Service) WithEmitter(emitter EventEmitter) *Service {
	s.emitter = emitter
	return s
}

// WithRoles enables the default role grant at registration.
func (s *Service) WithRoles(roles RoleGranter) *Service {
	s.roles = roles
	return s
}

func (s *Service) audit(event *model.SecurityEvent) {
	if s.emitter != nil {
		s.emitter.Emit(event)
	}
}

func (s *Service) RegisterDeveloper(ctx context.Context, opts RegisterDeveloperOptions) (*model.Developer, error) {
	if opts.Name == "" {
		return nil, ErrNameEmpty
	}
	if _, err := mail.ParseAddress(opts.Email); err != nil {
		return nil, err
	}
	if len(opts.Password) < params.PasswordMinLength {
		return nil, ErrPasswordTooShort
	}

	passwordHash, err := common.HashSecret(opts.Password)
	if err != nil {
		return nil, err
	}

	developer := model.Developer{
		Name:         opts.Name,
		Email:        opts.Email,
		Company:      opts.Company,
		Title:        opts.Title,
		PasswordHash: passwordHash,
	}
	var mysqlErr *mysql.MySQLError
	if err := s.developerRepo.Create(ctx, &developer); errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return nil, ErrEmailRegistered
	} else if err != nil {
		return nil, err
	}
	if s.roles != nil {
		// Fresh accounts start with the developer role so they can mint
		// tokens for their own projects. A failed grant leaves a working
		// account on the read_only baseline; an admin can grant later.
		if err := s.roles.GrantRole(ctx, developer.ID, rbac.RoleDeveloper, developer.ID, nil); err != nil {
			slog.Warn("Failed to grant default role", "developerID", developer.ID, "error", err)
		}
	}
	return &developer, nil
}

func (s *Service) GetDeveloperByID(ctx context.Context, developerID uint) (*model.Developer, error) {
	developer, err := s.developerRepo.FirstByID(ctx, developerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeveloperNotFound
	}
	return developer, err
}

func (s *Service) GetDeveloperByEmail(ctx context.Context, email string) (*model.Developer, error) {
	developer, err := s.developerRepo.FirstByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeveloperNotFound
	}
	return developer, err
}

// DisableDeveloper soft-disables the account. Rows are never deleted; issued
// tokens and audit history keep referencing them.
func (s *Service) DisableDeveloper(ctx context.Context, developerID uint) error {
	n, err := s.developerRepo.Updates(ctx, developerID, map[string]interface{}{"active": false})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDeveloperNotFound
	}
	return nil
}

// CreateProject mints client credentials for a new OAuth client. The plain
// client secret is returned exactly once; only its hash is stored.
func (s *Service) CreateProject(ctx context.Context, developerID uint, opts CreateProjectOptions) (*model.Project, string, error) {
	if opts.Name == "" {
		return nil, "", ErrNameEmpty
	}
	switch opts.Environment {
	case model.EnvDevelopment, model.EnvStaging, model.EnvProduction:
	default:
		return nil, "", ErrInvalidEnv
	}
	for _, scope := range opts.Scopes {
		if !scopes.IsValid(scope) {
			return nil, "", ErrInvalidScope
		}
	}

	clientID, err := common.GenerateSecret(params.ClientIDLength)
	if err != nil {
		return nil, "", err
	}
	clientSecret, err := common.GenerateSecret(params.ClientSecretLength)
	if err != nil {
		return nil, "", err
	}
	clientID = params.ClientIDPrefix + clientID
	clientSecret = params.ClientSecretPrefix + clientSecret

	secretHash, err := common.HashSecret(clientSecret)
	if err != nil {
		return nil, "", err
	}

	project := model.Project{
		DeveloperID:      developerID,
		Name:             opts.Name,
		Description:      opts.Description,
		Environment:      opts.Environment,
		ClientID:         clientID,
		ClientSecretHash: secretHash,
		RedirectURIs:     opts.RedirectURIs,
		AllowedScopes:    opts.Scopes,
		RateLimitPerMin:  opts.RateLimit,
		MonthlyQuota:     opts.MonthlyQuota,
		Active:           true,
	}
	if err := s.projectRepo.Create(ctx, &project); err != nil {
		return nil, "", err
	}
	return &project, clientSecret, nil
}

// GetProjectByClientID reads through the project cache.
func (s *Service) GetProjectByClientID(ctx context.Context, clientID string) (*model.Project, error) {
	if cached, err := s.projectCache.Get(ctx, clientID); err == nil {
		return &cached, nil
	}
	project, err := s.projectRepo.FirstByClientID(ctx, clientID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.projectCache.Set(ctx, clientID, *project, params.ProjectCacheTTL); err != nil {
		slog.Warn("Failed to cache project", "clientID", clientID, "error", err)
	}
	return project, nil
}

func (s *Service) GetProjectByID(ctx context.Context, projectID uint) (*model.Project, error) {
	project, err := s.projectRepo.FirstByID(ctx, projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	return project, err
}

func (s *Service) ListProjects(ctx context.Context, developerID uint) ([]*model.Project, error) {
	return s.projectRepo.FindByDeveloper(ctx, developerID)
}

// VerifyClientSecret compares a presented secret against the project's
// stored hash in constant time.
func (s *Service) VerifyClientSecret(project *model.Project, clientSecret string) bool {
	return common.VerifySecret(clientSecret, project.ClientSecretHash)
}

// RotateClientSecret replaces the project's secret and returns the new plain
// secret once. The cache entry is dropped before returning so no caller can
// authenticate against the superseded hash.
func (s *Service) RotateClientSecret(ctx context.Context, projectID uint) (string, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return "", err
	}
	clientSecret, err := common.GenerateSecret(params.ClientSecretLength)
	if err != nil {
		return "", err
	}
	clientSecret = params.ClientSecretPrefix + clientSecret
	secretHash, err := common.HashSecret(clientSecret)
	if err != nil {
		return "", err
	}
	if _, err := s.projectRepo.Updates(ctx, projectID, map[string]interface{}{
		"client_secret_hash": secretHash,
		"updated_at":         time.Now(),
	}); err != nil {
		return "", err
	}
	s.invalidateProject(ctx, project.ClientID)
	s.audit(&model.SecurityEvent{
		EventType:   audit.EventSecretRotated,
		Severity:    audit.SeverityInfo,
		DeveloperID: project.DeveloperID,
		ProjectID:   project.ID,
		Success:     true,
	})
	return clientSecret, nil
}

func (s *Service) UpdateProjectScopes(ctx context.Context, projectID uint, newScopes []string) error {
	for _, scope := range newScopes {
		if !scopes.IsValid(scope) {
			return ErrInvalidScope
		}
	}
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	// map-based Updates bypasses the field serializer, so marshal here
	data, err := json.Marshal(newScopes)
	if err != nil {
		return err
	}
	if _, err := s.projectRepo.Updates(ctx, projectID, map[string]interface{}{
		"allowed_scopes": string(data),
	}); err != nil {
		return err
	}
	s.invalidateProject(ctx, project.ClientID)
	return nil
}

func (s *Service) SetProjectActive(ctx context.Context, projectID uint, active bool) error {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err := s.projectRepo.Updates(ctx, projectID, map[string]interface{}{"active": active}); err != nil {
		return err
	}
	s.invalidateProject(ctx, project.ClientID)
	return nil
}

func (s *Service) invalidateProject(ctx context.Context, clientID string) {
	if err := s.projectCache.Delete(ctx, clientID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Failed to invalidate project cache", "clientID", clientID, "error", err)
	}
}
