package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/link-access-service/internal/api/dto"
	"github.com/spec-kit/link-access-service/internal/auth"
	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/service"
	apperrors "github.com/spec-kit/link-access-service/pkg/util/errorutil"
)

// LinkService is the link flow as seen by HTTP.
type LinkService interface {
	IssueLink(ctx context.Context, req service.IssueLinkRequest) (*service.IssuedLink, error)
	Redeem(ctx context.Context, value string) (*service.Redemption, error)
}

// LinksHandler exposes link issuance and redemption.
type LinksHandler struct {
	links LinkService
}

// NewLinksHandler constructs handler.
func NewLinksHandler(links LinkService) *LinksHandler {
	return &LinksHandler{links: links}
}

// Issue handles POST /links.
func (h *LinksHandler) Issue(c *fiber.Ctx) error {
	var req dto.IssueLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.SubjectID) == "" || strings.TrimSpace(req.SubjectEmail) == "" {
		return apperrors.NewValidationError("subject_id and subject_email required", nil)
	}

	scope := domain.NoScope()
	if req.Scope != nil && req.Scope.Kind != "" {
		scope = domain.Scope{
			Kind:         domain.ScopeKind(req.Scope.Kind),
			AssignmentID: req.Scope.AssignmentID,
			CourseID:     req.Scope.CourseID,
			WorkerID:     req.Scope.WorkerID,
		}
	}

	link, err := h.links.IssueLink(c.UserContext(), service.IssueLinkRequest{
		SubjectID:      req.SubjectID,
		SubjectEmail:   req.SubjectEmail,
		Scope:          scope,
		RedirectTarget: req.RedirectTo,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMintArgument) {
			return apperrors.NewValidationError(err.Error(), nil)
		}
		return apperrors.MapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.IssueLinkResponse{URL: link.URL, ExpiresAt: link.ExpiresAt},
	})
}

// Redeem handles GET /auth/link. Every failure gets the same response.
func (h *LinksHandler) Redeem(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("Referrer-Policy", "no-referrer")

	res, err := h.links.Redeem(c.UserContext(), c.Query("token"))
	if err != nil {
		return apperrors.NewLinkDenied()
	}

	return c.JSON(fiber.Map{
		"data": dto.RedeemResponse{
			Session: dto.SessionResponse{
				SubjectID:    res.Session.SubjectID,
				AccessToken:  res.Session.AccessSecret,
				RefreshToken: res.Session.RefreshSecret,
				ExpiresAt:    res.Session.ExpiresAt,
			},
			RedirectTo: res.RedirectTarget,
			Scope: dto.ScopeDTO{
				Kind:         string(res.Scope.Kind),
				AssignmentID: res.Scope.AssignmentID,
				CourseID:     res.Scope.CourseID,
				WorkerID:     res.Scope.WorkerID,
			},
		},
	})
}

// Me handles GET /auth/me.
func (h *LinksHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Identity == nil {
		return apperrors.NewUnauthorized("not authenticated")
	}
	return c.JSON(fiber.Map{
		"data": dto.IdentityResponse{
			ID:          principal.Identity.ID,
			Email:       principal.Identity.Email,
			DisplayName: principal.Identity.DisplayName,
		},
	})
}
