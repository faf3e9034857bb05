package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/ports"
)

// ReferenceHandler serves stores and addresses.
type ReferenceHandler struct {
	refs ports.ReferenceService
}

func NewReferenceHandler(refs ports.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{refs: refs}
}

type createStoreRequest struct {
	Name            string  `json:"name"`
	AddressID       *string `json:"address_id"`
	Timezone        *string `json:"timezone"`
	ExternalStoreID *string `json:"external_store_id"`
}

type updateStoreRequest struct {
	Name            ports.Patch[string] `json:"name" swaggertype:"string"`
	AddressID       ports.Patch[string] `json:"address_id" swaggertype:"string"`
	Timezone        ports.Patch[string] `json:"timezone" swaggertype:"string"`
	ExternalStoreID ports.Patch[string] `json:"external_store_id" swaggertype:"string"`
}

type createAddressRequest struct {
	Line1      string   `json:"line1"`
	Line2      *string  `json:"line2"`
	City       *string  `json:"city"`
	Region     *string  `json:"region"`
	PostalCode *string  `json:"postal_code"`
	Country    *string  `json:"country"`
	Lat        *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng        *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
}

type updateAddressRequest struct {
	Line1      ports.Patch[string]  `json:"line1" swaggertype:"string"`
	Line2      ports.Patch[string]  `json:"line2" swaggertype:"string"`
	City       ports.Patch[string]  `json:"city" swaggertype:"string"`
	Region     ports.Patch[string]  `json:"region" swaggertype:"string"`
	PostalCode ports.Patch[string]  `json:"postal_code" swaggertype:"string"`
	Country    ports.Patch[string]  `json:"country" swaggertype:"string"`
	Lat        ports.Patch[float64] `json:"lat" swaggertype:"number"`
	Lng        ports.Patch[float64] `json:"lng" swaggertype:"number"`
}

// ListStores handles GET /stores.
//
// @Summary      List stores
// @Tags         stores
// @Produce      json
// @Param        q            query     string  false  "Name contains"
// @Param        external_id  query     string  false  "External store id"
// @Param        limit        query     int     false  "Page size"
// @Param        offset       query     int     false  "Offset"
// @Success      200          {object}  domain.List[domain.Store]
// @Router       /stores [get]
func (h *ReferenceHandler) ListStores(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.refs.ListStores(c.Request().Context(), ports.StoreFilter{
		Q:          c.QueryParam("q"),
		ExternalID: c.QueryParam("external_id"),
	}, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// GetStore handles GET /stores/:id.
//
// @Summary      Get a store with its address
// @Tags         stores
// @Produce      json
// @Param        id   path      string  true  "Store id"
// @Success      200  {object}  domain.Store
// @Failure      404  {object}  errorBody
// @Router       /stores/{id} [get]
func (h *ReferenceHandler) GetStore(c echo.Context) error {
	s, err := h.refs.GetStore(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// CreateStore handles POST /stores.
//
// @Summary      Create a store
// @Tags         stores
// @Accept       json
// @Produce      json
// @Param        body  body      createStoreRequest  true  "Store"
// @Success      201   {object}  domain.Store
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /stores [post]
func (h *ReferenceHandler) CreateStore(c echo.Context) error {
	var req createStoreRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.refs.CreateStore(c.Request().Context(), ports.CreateStoreInput{
		Name:            req.Name,
		AddressID:       req.AddressID,
		Timezone:        req.Timezone,
		ExternalStoreID: req.ExternalStoreID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateStore handles PATCH /stores/:id.
//
// @Summary      Update a store
// @Tags         stores
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Store id"
// @Param        body  body      updateStoreRequest  true  "Fields to change"
// @Success      200   {object}  domain.Store
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /stores/{id} [patch]
func (h *ReferenceHandler) UpdateStore(c echo.Context) error {
	var req updateStoreRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.refs.UpdateStore(c.Request().Context(), c.Param("id"), ports.StorePatch{
		Name:            req.Name,
		AddressID:       req.AddressID,
		Timezone:        req.Timezone,
		ExternalStoreID: req.ExternalStoreID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

// ListAddresses handles GET /addresses.
//
// @Summary      List addresses
// @Tags         addresses
// @Produce      json
// @Param        city     query     string  false  "City contains"
// @Param        region   query     string  false  "Region contains"
// @Param        country  query     string  false  "Country contains"
// @Param        limit    query     int     false  "Page size"
// @Param        offset   query     int     false  "Offset"
// @Success      200      {object}  domain.List[domain.Address]
// @Router       /addresses [get]
func (h *ReferenceHandler) ListAddresses(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	out, err := h.refs.ListAddresses(c.Request().Context(), ports.AddressFilter{
		City:    c.QueryParam("city"),
		Region:  c.QueryParam("region"),
		Country: c.QueryParam("country"),
	}, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// GetAddress handles GET /addresses/:id.
//
// @Summary      Get an address
// @Tags         addresses
// @Produce      json
// @Param        id   path      string  true  "Address id"
// @Success      200  {object}  domain.Address
// @Failure      404  {object}  errorBody
// @Router       /addresses/{id} [get]
func (h *ReferenceHandler) GetAddress(c echo.Context) error {
	a, err := h.refs.GetAddress(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// CreateAddress handles POST /addresses.
//
// @Summary      Create an address
// @Tags         addresses
// @Accept       json
// @Produce      json
// @Param        body  body      createAddressRequest  true  "Address"
// @Success      201   {object}  domain.Address
// @Failure      400   {object}  errorBody
// @Router       /addresses [post]
func (h *ReferenceHandler) CreateAddress(c echo.Context) error {
	var req createAddressRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.refs.CreateAddress(c.Request().Context(), ports.CreateAddressInput{
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Lat:        req.Lat,
		Lng:        req.Lng,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// UpdateAddress handles PATCH /addresses/:id.
//
// @Summary      Update an address
// @Tags         addresses
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Address id"
// @Param        body  body      updateAddressRequest  true  "Fields to change"
// @Success      200   {object}  domain.Address
// @Failure      400   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Router       /addresses/{id} [patch]
func (h *ReferenceHandler) UpdateAddress(c echo.Context) error {
	var req updateAddressRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.refs.UpdateAddress(c.Request().Context(), c.Param("id"), ports.AddressPatch{
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Lat:        req.Lat,
		Lng:        req.Lng,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
