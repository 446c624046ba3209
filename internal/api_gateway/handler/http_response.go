package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pfin-cycle-ledger/internal/api_gateway/middleware"
)

// Response is the envelope of every API body
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo describes the page of a listing
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

func newMeta(page, perPage int, totalItems int64) *MetaInfo {
	meta := &MetaInfo{Page: page, PerPage: perPage, TotalItems: int(totalItems)}
	if perPage > 0 {
		meta.TotalPages = int((totalItems + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

func send(c *gin.Context, statusCode int, response *Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	send(c, statusCode, &Response{Data: data})
}

func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	send(c, statusCode, &Response{Error: &ErrorInfo{Code: code, Message: message}})
}

// RespondWithPaginatedData sends one page of a listing; total counts every item of the listing
func RespondWithPaginatedData(c *gin.Context, statusCode int, data interface{}, page, perPage int, total int64) {
	send(c, statusCode, &Response{Data: data, Meta: newMeta(page, perPage, total)})
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondAccepted is used for work queued to the cycle processor
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// RespondValidationError is a 400 carrying a domain specific code such as IMBALANCED_ENTRY
func RespondValidationError(c *gin.Context, code, message string) {
	RespondWithError(c, http.StatusBadRequest, code, message)
}

func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, "CONFLICT", message)
}

// RespondInternalError hides the cause; handlers log it before calling this
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}
