package forecast

import (
	"context"
	"errors"
	"fmt"

	"salesforecast-backend/internal/apperrors"
	"salesforecast-backend/internal/auth"
	"salesforecast-backend/internal/logger"
	"salesforecast-backend/internal/scenario"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const defaultDays = 30

var validate = validator.New()

// ForecastRequest: product, city and days may come from the query string or
// the JSON body; the query string wins. The scenario is always the body.
type ForecastRequest struct {
	Product string `json:"product" validate:"required"`
	City    string `json:"city" validate:"required"`
	Days    int    `json:"days" validate:"min=1,max=365"`
	scenario.Params
}

// POST /api/forecast
func ForecastHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}

		var body ForecastRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}
		if v := c.Query("product"); v != "" {
			body.Product = v
		}
		if v := c.Query("city"); v != "" {
			body.City = v
		}
		if c.Query("days") != "" {
			days := c.QueryInt("days", -1)
			if days < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "days must be an integer")
			}
			body.Days = days
		}
		if body.Days == 0 && c.Query("days") == "" {
			body.Days = defaultDays
		}

		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		resp, err := svc.Forecast(c.UserContext(), Request{
			UserID:   userID,
			Product:  body.Product,
			City:     body.City,
			Days:     body.Days,
			Scenario: body.Params,
		})
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(resp)
	}
}

func toFiberError(err error) error {
	var ve *apperrors.ValidationError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "No sales data found for product/city.")
	case errors.As(err, &ve):
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s: %s", ve.Field, ve.Message))
	case errors.Is(err, apperrors.ErrInvalidData):
		return fiber.NewError(fiber.StatusBadRequest, "Sales data missing or invalid for the selection: "+err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "Forecast timed out")
	case errors.Is(err, apperrors.ErrForecastFailed):
		logger.Warnf("forecast: %v", err)
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	logger.Errorf("forecast: %v", err)
	return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
}
