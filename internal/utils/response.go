package utils

import "github.com/gofiber/fiber/v2"

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}

	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendPage sends a list payload alongside its pagination block. Data is always
// present, even when empty.
func SendPage(c *fiber.Ctx, data interface{}, pagination interface{}) error {
	return c.Status(fiber.StatusOK).JSON(struct {
		Success    bool        `json:"success"`
		Data       interface{} `json:"data"`
		Pagination interface{} `json:"pagination"`
	}{
		Success:    true,
		Data:       data,
		Pagination: pagination,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorDetail(c, status, message, nil)
}

// SendErrorDetail sends an error response. When cause is non-nil its text is
// included in the error field.
func SendErrorDetail(c *fiber.Ctx, status int, message string, cause error) error {
	if message == "" {
		message = "error"
	}

	payload := APIResponse{
		Success: false,
		Message: message,
	}
	if cause != nil {
		payload.Error = cause.Error()
	}

	return c.Status(status).JSON(payload)
}
