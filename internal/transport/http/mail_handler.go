package httptransport

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/service"
)

// MailSender 发信服务
type MailSender interface {
	SendMail(ctx context.Context, req domain.MailRequest) (*service.Result, error)
}

// MailHandler 发信接口处理器
type MailHandler struct {
	relay  MailSender
	logger *zap.Logger
}

// NewMailHandler 创建发信接口处理器
func NewMailHandler(relay MailSender, logger *zap.Logger) *MailHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailHandler{relay: relay, logger: logger}
}

// SendMail godoc
// @Summary 发送邮件
// @Description 校验请求并通过上游 SMTP 发送一封纯文本邮件；TEST 模式下只记录日志并回显邮件
// @Tags Mail
// @Accept json
// @Produce json
// @Param request body domain.MailRequest true "subject, text, recipient（兼容 to）"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 429 {object} Response
// @Failure 500 {object} Response
// @Router /api/mail [post]
func (h *MailHandler) SendMail(c *gin.Context) {
	var req domain.MailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Error(c, http.StatusRequestEntityTooLarge, MsgRequestTooLarge)
			return
		}
		h.logger.Debug("Malformed mail request body", zap.Error(err))
		BadRequest(c, MsgInvalidRequest, "request body must be a JSON object")
		return
	}

	result, err := h.relay.SendMail(c.Request.Context(), req)
	if err != nil {
		switch status, msg := statusFor(err); status {
		case http.StatusBadRequest:
			BadRequest(c, msg, GetErrorMessage(err))
		case http.StatusInternalServerError:
			InternalError(c, msg)
		default:
			Error(c, status, msg)
		}
		return
	}

	if result.Mail != nil {
		SuccessWithMail(c, result.Message, result.Mail)
		return
	}
	Success(c, result.Message)
}
