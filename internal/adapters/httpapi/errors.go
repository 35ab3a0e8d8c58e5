package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mikey/email-classifier/internal/core"
)

// User facing messages
const (
	msgMissingInput   = "Envie um texto ou arquivo para análise."
	msgAmbiguousInput = "Envie apenas um texto ou um arquivo, não ambos."
	msgEmptyText      = "Texto vazio para análise."
	msgEmptyFile      = "Arquivo vazio."
	msgUnsupported    = "Formato não suportado"
	msgExtraction     = "Não foi possível extrair texto do arquivo"
	msgUploadTooLarge = "Arquivo excede o tamanho máximo permitido."
	msgInvalidForm    = "Formulário inválido."
	msgRateLimited    = "Limite temporário de requisições excedido. Aguarde alguns instantes e tente novamente."
	msgCredential     = "Credencial do serviço de classificação não configurada."
	msgUpstream       = "Falha ao consultar o serviço de classificação"
	msgInternal       = "internal server error"
	msgInvalidSince   = "Parâmetro since inválido; use uma duração como 24h."
)

// ErrorResponse is the mapping of an error onto the HTTP surface
type ErrorResponse struct {
	StatusCode int
	Code       string
	Detail     string
	RetryAfter int
}

type detailBody struct {
	Detail string `json:"detail"`
}

// MapError maps classification errors to HTTP error responses
func MapError(err error) ErrorResponse {
	code := core.ErrorCode(err)

	var rateLimit *core.RateLimitError
	switch {
	case errors.As(err, &rateLimit):
		return ErrorResponse{StatusCode: http.StatusTooManyRequests, Code: code, Detail: msgRateLimited, RetryAfter: rateLimit.RetryAfter}
	case errors.Is(err, core.ErrEmptyInput):
		return badRequest(code, msgEmptyText)
	case errors.Is(err, core.ErrEmptyFile):
		return badRequest(code, msgEmptyFile)
	case errors.Is(err, core.ErrUnsupportedFormat):
		return badRequest(code, withReason(msgUnsupported, err, core.ErrUnsupportedFormat))
	case errors.Is(err, core.ErrExtractionFailure):
		return badRequest(code, withReason(msgExtraction, err, core.ErrExtractionFailure))
	case errors.Is(err, core.ErrCredentialMissing):
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: code, Detail: msgCredential}
	case core.IsCompletionError(err):
		return ErrorResponse{StatusCode: http.StatusBadGateway, Code: code, Detail: msgUpstream + ": " + err.Error()}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: code, Detail: msgInternal}
	}
}

// HandleError sends the mapped error response and aborts the chain
func HandleError(c *gin.Context, err error) {
	resp := MapError(err)
	if resp.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	_ = c.Error(err)
	respondDetail(c, resp.StatusCode, resp.Detail)
}

func respondDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, detailBody{Detail: detail})
}

func badRequest(code, detail string) ErrorResponse {
	return ErrorResponse{StatusCode: http.StatusBadRequest, Code: code, Detail: detail}
}

// withReason appends whatever err adds on top of its sentinel
func withReason(message string, err, sentinel error) string {
	reason := strings.TrimPrefix(err.Error(), sentinel.Error())
	reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
	if reason == "" {
		return message + "."
	}
	return message + ": " + reason
}
