package server

import "github.com/gofiber/fiber/v3"

// ErrorDetail 是所有错误响应的统一负载。
type ErrorDetail struct {
	Code             string   `json:"code"`
	Message          string   `json:"message"`
	AvailableServers []string `json:"available_servers,omitempty"`
}

// ErrorResponse 包装 ErrorDetail，保证错误 JSON 顶层只有 error 一个键。
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func renderError(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

func renderServerNotFound(c fiber.Ctx, server string, available []string) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:             "SERVER_NOT_FOUND",
			Message:          "Server '" + server + "' not found",
			AvailableServers: available,
		},
	})
}
