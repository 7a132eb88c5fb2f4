package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
//
// 保持旧版客户端依赖的 {success, message} 形状，TEST 模式下 mail 字段回显构造好的邮件。
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Mail    interface{} `json:"mail,omitempty"`
}

// Success 成功响应（200）
func Success(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: msg,
	})
}

// SuccessWithMail 成功响应并回显邮件
func SuccessWithMail(c *gin.Context, msg string, mail interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: msg,
		Mail:    mail,
	})
}

// BadRequest 请求参数错误（400），detail 说明具体原因
func BadRequest(c *gin.Context, msg, detail string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Message: msg,
		Error:   detail,
	})
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, msg)
}

// Error 通用错误响应
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, Response{
		Success: false,
		Message: msg,
	})
}
