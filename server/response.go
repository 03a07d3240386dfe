package server

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/middleware"
	"github.com/Digital-Creators-Team/spin-rewards/types"
	"github.com/gin-gonic/gin"
)

const ErrUndefinedErrorCode = -99

// ErrorDetail is an alias for types.ErrorDetail
// @Description Error payload details
type ErrorDetail = types.ErrorDetail

// ErrorResponse is an alias for types.ErrorResponse
// @Description Standardized error response
type ErrorResponse = types.ErrorResponse

// SuccessResponse is a type alias for types.SuccessResponse[T]
// @Description Standardized success response
type SuccessResponse[T any] = types.SuccessResponse[T]

// BaseResponse is a type alias for SuccessResponse[interface{}] for swagger
// @Description Standard API response wrapper
type BaseResponse = SuccessResponse[interface{}]

// Success sends a success response
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, types.SuccessResponse[interface{}]{
		StatusCode: statusCode,
		IsSuccess:  true,
		Data:       data,
	})
}

// OK sends a 200 OK response
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data)
}

// Created sends a 201 Created response
func Created(c *gin.Context, data interface{}) {
	Success(c, http.StatusCreated, data)
}

// Error sends an error response. AppErrors anywhere in the chain contribute
// their code, kind and user-facing message.
func Error(c *gin.Context, statusCode int, err error) {
	detail := types.ErrorDetail{
		ErrorMessage: err.Error(),
		ErrorCode:    ErrUndefinedErrorCode,
		RequestID:    middleware.GetRequestID(c),
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		detail.ErrorMessage = appErr.Message
		detail.ErrorCode = appErr.Code
		detail.ErrorKind = string(errors.Kind(appErr))
	}

	c.JSON(statusCode, types.NewErrorResponse(statusCode, c.Request.URL.Path, detail))
}

// ErrorWithMessage sends an error response with a custom message
func ErrorWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, types.NewErrorResponse(statusCode, c.Request.URL.Path, types.ErrorDetail{
		ErrorMessage: message,
		ErrorCode:    ErrUndefinedErrorCode,
		RequestID:    middleware.GetRequestID(c),
	}))
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, errors.Wrap(err, errors.ErrInvalidRequest, "Invalid request body"))
}

// InternalError sends a 500 Internal Server Error response
func InternalError(c *gin.Context, err error) {
	Error(c, http.StatusInternalServerError, err)
}

// HandleAppError maps err to its HTTP status and sends it.
func HandleAppError(c *gin.Context, err error) {
	if stderrors.Is(err, context.DeadlineExceeded) {
		Error(c, http.StatusRequestTimeout, errors.Wrap(err, errors.ErrTransport, "Request timeout"))
		return
	}
	if errors.IsAppError(err) {
		Error(c, errors.HTTPStatusFromCode(errors.GetCode(err)), err)
		return
	}
	InternalError(c, err)
}
