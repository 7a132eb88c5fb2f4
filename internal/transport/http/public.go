package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HelloResponse /api/hello 的固定返回
type HelloResponse struct {
	Message        string `json:"message"`
	Author         string `json:"author"`
	AuthorHomepage string `json:"authorHomepage"`
	Service        string `json:"service"`
	Version        string `json:"version"`
}

// PublicHandler 公开API处理器（无需认证）
type PublicHandler struct {
	hello HelloResponse
}

// NewPublicHandler 创建公开API处理器
func NewPublicHandler(version string) *PublicHandler {
	return &PublicHandler{
		hello: HelloResponse{
			Message:        "Close the world, .txen eht nepO",
			Author:         "Yigid BALABAN <fyb@fybx.dev>",
			AuthorHomepage: "https://fybx.dev/",
			Service:        "mailrelay",
			Version:        version,
		},
	}
}

// Hello godoc
// @Summary 服务标识
// @Description 返回固定的服务标识，与运行状态无关
// @Tags Public
// @Produce json
// @Success 200 {object} HelloResponse
// @Router /api/hello [get]
func (h *PublicHandler) Hello(c *gin.Context) {
	c.JSON(http.StatusOK, h.hello)
}

// Health 静态存活检查
func (h *PublicHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
