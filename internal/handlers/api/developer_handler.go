package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/openbank/authcore/internal/credentials"
	"github.com/openbank/authcore/internal/middlewares"
	"github.com/openbank/authcore/model"
)

type DeveloperHandler struct {
	credentials *credentials.Service
}

func NewDeveloperHandler(credentials *credentials.Service) *DeveloperHandler {
	return &DeveloperHandler{credentials: credentials}
}

type registerDeveloperRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Title    string `json:"title"`
	Password string `json:"password"`
}

type developerResponse struct {
	DeveloperID uint   `json:"developer_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company,omitempty"`
	Title       string `json:"title,omitempty"`
}

type createProjectRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Environment  string   `json:"environment"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
	RateLimit    int      `json:"rate_limit_per_min"`
	MonthlyQuota int64    `json:"monthly_quota"`
}

type projectResponse struct {
	ProjectID     uint     `json:"project_id"`
	Name          string   `json:"name"`
	Environment   string   `json:"environment"`
	ClientID      string   `json:"client_id"`
	AllowedScopes []string `json:"allowed_scopes"`
	Active        bool     `json:"active"`
	// ClientSecret is present only in the creation and rotation responses.
	ClientSecret string `json:"client_secret,omitempty"`
}

// PostRegister handles POST /developers, the open registration endpoint.
func (h *DeveloperHandler) PostRegister(ctx *fiber.Ctx) error {
	var req registerDeveloperRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	developer, err := h.credentials.RegisterDeveloper(ctx.Context(), credentials.RegisterDeveloperOptions{
		Name:     req.Name,
		Email:    req.Email,
		Company:  req.Company,
		Title:    req.Title,
		Password: req.Password,
	})
	if errors.Is(err, credentials.ErrEmailRegistered) {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ctx.Status(fiber.StatusCreated).JSON(developerResponse{
		DeveloperID: developer.ID,
		Name:        developer.Name,
		Email:       developer.Email,
		Company:     developer.Company,
		Title:       developer.Title,
	})
}

// PostProject handles POST /developers/me/projects. The plain client secret
// appears in this response and never again.
func (h *DeveloperHandler) PostProject(ctx *fiber.Ctx) error {
	claims := middlewares.TokenClaims(ctx)
	var req createProjectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	project, clientSecret, err := h.credentials.CreateProject(ctx.Context(), claims.DeveloperID, credentials.CreateProjectOptions{
		Name:         req.Name,
		Description:  req.Description,
		Environment:  req.Environment,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
		RateLimit:    req.RateLimit,
		MonthlyQuota: req.MonthlyQuota,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	resp := projectView(project)
	resp.ClientSecret = clientSecret
	return ctx.Status(fiber.StatusCreated).JSON(resp)
}

// GetProjects handles GET /developers/me/projects.
func (h *DeveloperHandler) GetProjects(ctx *fiber.Ctx) error {
	claims := middlewares.TokenClaims(ctx)
	projects, err := h.credentials.ListProjects(ctx.Context(), claims.DeveloperID)
	if err != nil {
		return err
	}
	views := make([]projectResponse, 0, len(projects))
	for _, project := range projects {
		views = append(views, projectView(project))
	}
	return ctx.JSON(views)
}

// PostRotateSecret handles POST /developers/me/projects/:id/rotate. Only
// the owning developer may rotate a project's secret.
func (h *DeveloperHandler) PostRotateSecret(ctx *fiber.Ctx) error {
	claims := middlewares.TokenClaims(ctx)
	projectID, err := ctx.ParamsInt("id")
	if err != nil {
		return fiber.ErrBadRequest
	}
	project, err := h.credentials.GetProjectByID(ctx.Context(), uint(projectID))
	if errors.Is(err, credentials.ErrProjectNotFound) {
		return fiber.ErrNotFound
	}
	if err != nil {
		return err
	}
	if project.DeveloperID != claims.DeveloperID {
		return fiber.ErrForbidden
	}
	clientSecret, err := h.credentials.RotateClientSecret(ctx.Context(), project.ID)
	if err != nil {
		return err
	}
	resp := projectView(project)
	resp.ClientSecret = clientSecret
	return ctx.JSON(resp)
}

func projectView(project *model.Project) projectResponse {
	return projectResponse{
		ProjectID:     project.ID,
		Name:          project.Name,
		Environment:   project.Environment,
		ClientID:      project.ClientID,
		AllowedScopes: project.AllowedScopes,
		Active:        project.Active,
	}
}
