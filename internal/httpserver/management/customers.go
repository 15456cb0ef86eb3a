package management

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/deepaktammali/litellm/internal/app"
	"github.com/deepaktammali/litellm/internal/auth"
	"github.com/deepaktammali/litellm/internal/httpserver/httputil"
	customersvc "github.com/deepaktammali/litellm/internal/services/customer"
	"github.com/deepaktammali/litellm/internal/store"
)

type handler struct {
	container *app.Container
}

type customerResponse struct {
	UserID    string     `json:"user_id"`
	Alias     *string    `json:"alias"`
	Blocked   bool       `json:"blocked"`
	BudgetID  *uuid.UUID `json:"budget_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toCustomerResponse(customer store.Customer) customerResponse {
	return customerResponse{
		UserID:    customer.UserID,
		Alias:     customer.Alias,
		Blocked:   customer.Blocked,
		BudgetID:  customer.BudgetID,
		CreatedAt: customer.CreatedAt,
		UpdatedAt: customer.UpdatedAt,
	}
}

type createCustomerRequest struct {
	UserID   string     `json:"user_id"`
	Alias    *string    `json:"alias"`
	Blocked  bool       `json:"blocked"`
	BudgetID *uuid.UUID `json:"budget_id"`
}

func (h *handler) create(c *fiber.Ctx) error {
	var req createCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "invalid request body", "")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "user_id is required", "user_id")
	}

	created, err := h.container.Customers.Create(c.UserContext(), customersvc.CreateParams{
		UserID:   req.UserID,
		Alias:    req.Alias,
		Blocked:  req.Blocked,
		BudgetID: req.BudgetID,
	})
	if errors.Is(err, customersvc.ErrAlreadyExists) {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "Customer already exists", "user_id")
	}
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to create customer", "")
	}
	return c.JSON(toCustomerResponse(created))
}

func (h *handler) info(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("end_user_id"))
	if userID == "" {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "end_user_id is required", "end_user_id")
	}

	customer, err := h.container.Customers.Get(c.UserContext(), userID)
	var notFound *customersvc.NotFoundError
	if errors.As(err, &notFound) {
		return httputil.WriteError(c, httputil.ErrorTypeNotFound, notFound.Error(), "end_user_id")
	}
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to load customer", "")
	}
	return c.JSON(toCustomerResponse(customer))
}

func (h *handler) list(c *fiber.Ctx) error {
	customers, err := h.container.Customers.List(c.UserContext())
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to list customers", "")
	}
	out := make([]customerResponse, 0, len(customers))
	for _, customer := range customers {
		out = append(out, toCustomerResponse(customer))
	}
	return c.JSON(out)
}

type updateCustomerRequest struct {
	UserID   string     `json:"user_id"`
	Alias    *string    `json:"alias"`
	Blocked  *bool      `json:"blocked"`
	BudgetID *uuid.UUID `json:"budget_id"`
}

func (h *handler) update(c *fiber.Ctx) error {
	var req updateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "invalid request body", "")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "user_id is required", "user_id")
	}

	updated, err := h.container.Customers.Update(c.UserContext(), req.UserID, store.CustomerUpdate{
		Alias:    req.Alias,
		Blocked:  req.Blocked,
		BudgetID: req.BudgetID,
	})
	var notFound *customersvc.NotFoundError
	if errors.As(err, &notFound) {
		return httputil.WriteError(c, httputil.ErrorTypeNotFound, notFound.Error(), "user_id")
	}
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to update customer", "")
	}
	return c.JSON(toCustomerResponse(updated))
}

type customerIDsRequest struct {
	UserIDs []string `json:"user_ids"`
}

func (h *handler) delete(c *fiber.Ctx) error {
	var req customerIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "invalid request body", "")
	}
	if len(req.UserIDs) == 0 {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "user_ids is required", "user_ids")
	}

	deleted, err := h.container.Customers.Delete(c.UserContext(), req.UserIDs)
	var notFound *customersvc.NotFoundError
	if errors.As(err, &notFound) {
		return httputil.WriteError(c, httputil.ErrorTypeNotFound, notFound.Error(), "user_ids")
	}
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to delete customers", "")
	}
	return c.JSON(fiber.Map{"deleted_customers": deleted})
}

func (h *handler) block(c *fiber.Ctx) error {
	return h.setBlocked(c, true)
}

func (h *handler) unblock(c *fiber.Ctx) error {
	return h.setBlocked(c, false)
}

func (h *handler) setBlocked(c *fiber.Ctx, blocked bool) error {
	var req customerIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "invalid request body", "")
	}
	if len(req.UserIDs) == 0 {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "user_ids is required", "user_ids")
	}

	updated, err := h.container.Customers.SetBlocked(c.UserContext(), req.UserIDs, blocked)
	var notFound *customersvc.NotFoundError
	if errors.As(err, &notFound) {
		return httputil.WriteError(c, httputil.ErrorTypeNotFound, notFound.Error(), "user_ids")
	}
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to update customers", "")
	}
	out := make([]customerResponse, 0, len(updated))
	for _, customer := range updated {
		out = append(out, toCustomerResponse(customer))
	}
	return c.JSON(out)
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// createSession exchanges an already-authorized API key for a short-lived
// session token. Disabled unless a session secret is configured.
func (h *handler) createSession(c *fiber.Ctx) error {
	identity, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, httputil.ErrorTypeUnauthorized, "authorization required", "")
	}

	token, err := h.container.Auth.IssueSessionToken(identity)
	if errors.Is(err, auth.ErrSessionDisabled) {
		return httputil.WriteError(c, httputil.ErrorTypeBadRequest, "session tokens are not enabled", "")
	}
	if err != nil {
		return httputil.WriteError(c, httputil.ErrorTypeInternal, "failed to issue session token", "")
	}
	return c.JSON(sessionResponse{Token: token.Token, ExpiresAt: token.ExpiresAt})
}
