package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"DipHunter/internal/model"
	"DipHunter/internal/store"
)

// Response is the envelope of every API reply.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListData wraps a list reply.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int         `json:"total"`
}

func dataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func success(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusOK, data)
}

func created(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusCreated, data)
}

func badRequest(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusBadRequest, data)
}

// errorResponse maps domain errors to HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	var (
		ve *model.ValidationError
		ce *model.ConfigurationError
		fe *model.FetchError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return dataResponse(c, http.StatusNotFound, "not found")
	case errors.As(err, &ve):
		return dataResponse(c, http.StatusUnprocessableEntity, ve.Reason)
	case errors.As(err, &ce):
		return dataResponse(c, http.StatusBadRequest, ce.Error())
	case errors.As(err, &fe):
		return dataResponse(c, http.StatusBadGateway, fe.Error())
	default:
		return dataResponse(c, http.StatusInternalServerError, "something went wrong")
	}
}
