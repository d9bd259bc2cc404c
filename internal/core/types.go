package core

import (
	"errors"
)

// Response описывает унифицированный результат выполнения команды.
type Response struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Коды ошибок ответа.
const (
	CodeExternalCommandFailed = "external_command_failed"
	CodeDecodeFailed          = "decode_failed"
	CodeCommandNotAllowed     = "command_not_allowed"
	CodeBadRequest            = "bad_request"
	CodeInternal              = "internal_error"
)

var errInvalidArguments = errors.New("invalid arguments")

// OK заворачивает данные в успешный ответ.
func OK(data interface{}) Response {
	return Response{Status: "ok", Data: data}
}

// Fail строит ответ с ошибкой.
func Fail(code string, err error) Response {
	resp := Response{Status: "error", ErrorCode: code}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
