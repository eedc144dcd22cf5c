package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront/internal/api/dto"
	"github.com/spec-kit/storefront/internal/auth"
	"github.com/spec-kit/storefront/internal/domain"
	"github.com/spec-kit/storefront/internal/service"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// UsersHandler exposes the auth and profile endpoints.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Signup handles POST /user/local/signup.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	pair, err := h.auth.SignupLocal(c.UserContext(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		UserType: domain.UserType(req.UserType),
		Profile:  req.Profile(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(pair))
}

// Signin handles POST /user/local/signin.
func (h *UsersHandler) Signin(c *fiber.Ctx) error {
	var req dto.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	pair, err := h.auth.SigninLocal(c.UserContext(), service.SigninInput{
		Email:    req.Email,
		Password: req.Password,
		UserType: domain.UserType(req.UserType),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(pair))
}

// Me handles GET /user.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.auth.GetUser(c.UserContext(), principal.Claims.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(user))
}

// Update handles PATCH /user.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.auth.UpdateUser(c.UserContext(), principal.Claims.SubjectID, service.ProfilePatch{
		Name:          req.Name,
		Mobile:        req.Mobile,
		Gender:        req.Gender,
		MaritalStatus: req.MaritalStatus,
		BirthDate:     req.BirthDate,
		Address:       req.Address,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(user))
}

// Delete handles DELETE /user.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.auth.DeleteUser(c.UserContext(), principal.Claims.SubjectID); err != nil {
		return err
	}
	return c.JSON(dto.OK(true))
}

// Logout handles POST /user/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), principal.Claims.SubjectID); err != nil {
		return err
	}
	return c.JSON(dto.OK(true))
}

// Refresh handles POST /user/refresh behind the refresh-token guard.
func (h *UsersHandler) Refresh(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	pair, err := h.auth.RefreshTokens(c.UserContext(), principal.Claims.SubjectID, principal.Token)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(pair))
}

// ValidateToken handles POST /user/validate-token, the HTTP mirror of the
// validate-token message pattern.
func (h *UsersHandler) ValidateToken(c *fiber.Ctx) error {
	var req dto.ValidateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	claims, err := h.auth.ValidateToken(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(claims))
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.ErrMissingToken
	}
	return p, nil
}
