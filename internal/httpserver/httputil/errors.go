package httputil

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ErrorType classifies consumer-facing failures.
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeBadRequest   ErrorType = "bad_request"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
)

// StatusFor maps an error type to its HTTP status code.
func StatusFor(typ ErrorType) int {
	switch typ {
	case ErrorTypeNotFound:
		return fiber.StatusNotFound
	case ErrorTypeBadRequest:
		return fiber.StatusBadRequest
	case ErrorTypeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorBody is the uniform JSON error envelope. Every endpoint emits exactly
// this key set on failure, regardless of where the failure originated.
type ErrorBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    string  `json:"code"`
}

// WriteError serializes the canonical error envelope and sets the matching
// HTTP status. The status code is mirrored into the body as a decimal string.
func WriteError(c *fiber.Ctx, typ ErrorType, msg, param string) error {
	status := StatusFor(typ)
	if msg == "" {
		msg = http.StatusText(status)
	}
	var paramPtr *string
	if param != "" {
		paramPtr = &param
	}
	return c.Status(status).JSON(fiber.Map{
		"error": ErrorBody{
			Message: msg,
			Type:    string(typ),
			Param:   paramPtr,
			Code:    strconv.Itoa(status),
		},
	})
}
