package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
)

// ClientHandler handles registration and profile operations.
type ClientHandler struct {
	clients       ports.ClientService
	auth          ports.AuthService
	maxAssetBytes int64
}

func NewClientHandler(clients ports.ClientService, auth ports.AuthService, maxAssetBytes int64) *ClientHandler {
	return &ClientHandler{clients: clients, auth: auth, maxAssetBytes: maxAssetBytes}
}

// Create registers a client with a password.
//
// @Summary      Register a client
// @Tags         clients
// @Accept       json,mpfd
// @Produce      json
// @Param        body   body      registerClientRequest  true   "Client registration details"
// @Param        logo   formData  file                   false  "Company logo"
// @Param        stamp  formData  file                   false  "Company stamp"
// @Success      201    {object}  domain.PublicProfile
// @Failure      400    {object}  errorBody
// @Failure      409    {object}  errorBody
// @Failure      503    {object}  errorBody
// @Router       /clients [post]
func (h *ClientHandler) Create(c echo.Context) error {
	var req registerClientRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	logo, stamp, err := formAssets(c, h.maxAssetBytes)
	if err != nil {
		return err
	}

	profile, err := h.auth.Register(c.Request().Context(), ports.RegisterInput{
		Profile:  req.profile(),
		Password: req.Password,
		Logo:     logo,
		Stamp:    stamp,
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/clients/"+profile.ID)
	return c.JSON(http.StatusCreated, profile)
}

// List returns a page of client profiles.
//
// @Summary      List clients
// @Tags         clients
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (1-based)"
// @Param        limit  query     int  false  "Page size (max 100)"
// @Success      200    {object}  listClientsResponse
// @Failure      400    {object}  errorBody
// @Failure      401    {object}  errorBody
// @Router       /clients [get]
func (h *ClientHandler) List(c echo.Context) error {
	var page, limit int
	if err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("limit", &limit).
		BindError(); err != nil {
		return fmt.Errorf("%w: page and limit must be integers", domain.ErrInvalidInput)
	}

	res, err := h.clients.List(c.Request().Context(), ports.ListClientsFilter{Page: page, Limit: limit})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, listClientsResponse{
		Items:      res.Items,
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	})
}

// Get returns the caller's profile.
//
// @Summary      Get a client profile
// @Tags         clients
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Client id"
// @Success      200  {object}  domain.PublicProfile
// @Failure      401  {object}  errorBody
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /clients/{id} [get]
func (h *ClientHandler) Get(c echo.Context) error {
	profile, err := h.clients.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Update applies a partial profile update and optional asset replacement.
//
// @Summary      Update a client profile
// @Tags         clients
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string               true   "Client id"
// @Param        body   body      updateClientRequest  false  "Fields to change"
// @Param        logo   formData  file                 false  "Replacement logo"
// @Param        stamp  formData  file                 false  "Replacement stamp"
// @Success      200    {object}  domain.PublicProfile
// @Failure      400    {object}  errorBody
// @Failure      403    {object}  errorBody
// @Failure      404    {object}  errorBody
// @Failure      409    {object}  errorBody
// @Router       /clients/{id} [patch]
func (h *ClientHandler) Update(c echo.Context) error {
	var req updateClientRequest
	if isMultipart(c) {
		req = updateClientRequest{
			Email:       optionalFormValue(c, "email"),
			FirstName:   optionalFormValue(c, "first_name"),
			LastName:    optionalFormValue(c, "last_name"),
			PhoneNumber: optionalFormValue(c, "phone_number"),
			Address:     optionalFormValue(c, "address"),
		}
	} else if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	logo, stamp, err := formAssets(c, h.maxAssetBytes)
	if err != nil {
		return err
	}

	input := ports.UpdateClientInput{Fields: req.update(), Logo: logo, Stamp: stamp}
	if input.Fields.IsEmpty() && logo == nil && stamp == nil {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	profile, err := h.clients.Update(c.Request().Context(), c.Param("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Delete removes the caller's account and its stored assets.
//
// @Summary      Delete a client
// @Tags         clients
// @Security     BearerAuth
// @Param        id   path  string  true  "Client id"
// @Success      204
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /clients/{id} [delete]
func (h *ClientHandler) Delete(c echo.Context) error {
	if err := h.clients.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
