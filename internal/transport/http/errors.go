package httptransport

import (
	"errors"
	"net/http"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/security"
	"mailrelay/backend/internal/service"
)

// 通用错误消息
const (
	MsgInvalidRequest  = "Invalid mail request!"
	MsgRequestTooLarge = "Request body too large"
	MsgMailNotSent     = service.MessageNotSent
	MsgInternalError   = "Internal server error"
)

// 校验错误 -> 返回给调用方的具体原因
var validationMessages = map[error]string{
	domain.ErrMissingSubject:   "subject is required",
	domain.ErrMissingText:      "text is required",
	domain.ErrMissingRecipient: "recipient is required",
	domain.ErrInvalidEmail:     "recipient is not a valid email address",
	domain.ErrEmailTooLong:     "recipient address is too long",
	domain.ErrInvalidDomain:    "recipient domain is invalid",
	domain.ErrSubjectTooLong:   "subject is too long",
	domain.ErrHeaderInjection:  "subject must be a single line",
	domain.ErrTextTooLong:      "text is too long",

	security.ErrContentRejected: "mail content was rejected by the content filter",
}

// GetErrorMessage 校验错误的原因说明，未知错误返回空串
func GetErrorMessage(err error) string {
	for target, msg := range validationMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return ""
}

// statusFor 业务错误对应的 HTTP 状态码和对外消息
//
// 传输层错误的细节只写日志，对外统一为 MsgMailNotSent。
func statusFor(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, MsgInvalidRequest
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, MsgRequestTooLarge
	case errors.Is(err, service.ErrDeliveryFailed):
		return http.StatusInternalServerError, MsgMailNotSent
	default:
		return http.StatusInternalServerError, MsgInternalError
	}
}
