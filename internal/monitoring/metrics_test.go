package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("记录发信结果", func(t *testing.T) {
		m := NewMetrics(nil)

		m.RecordMail("PROD", "sent", 120*time.Millisecond)
		m.RecordMail("PROD", "sent", 80*time.Millisecond)
		m.RecordMail("PROD", "failed", time.Second)
		m.RecordMail("TEST", "logged", 0)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.MailTotal.WithLabelValues("PROD", "sent")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.MailTotal.WithLabelValues("PROD", "failed")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.MailTotal.WithLabelValues("TEST", "logged")))
		// logged 不调用传输层，没有耗时样本
		assert.Equal(t, 2, testutil.CollectAndCount(m.MailSendDuration))
	})

	t.Run("记录限流和访问拒绝", func(t *testing.T) {
		m := NewMetrics(nil)

		m.RecordRateLimitBlock("mail")
		m.RecordRateLimitBlock("mail")
		m.RecordRateLimitBlock("global")
		m.RecordRateLimitError("global")
		m.RecordAccessDenied()
		m.RecordPanic()
		m.RecordSinkMessage()

		assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimitBlocks.WithLabelValues("mail")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitBlocks.WithLabelValues("global")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitErrors.WithLabelValues("global")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.AccessDenied))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.PanicsTotal))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkMessages))
	})

	t.Run("记录 HTTP 请求", func(t *testing.T) {
		m := NewMetrics(nil)

		m.RecordHTTPRequest("POST", "/api/mail", "200", 10*time.Millisecond)
		m.RecordHTTPRequest("POST", "/api/mail", "429", time.Millisecond)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/mail", "429")))
		assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
	})

	t.Run("独立注册表互不冲突", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewMetrics(nil)
			NewMetrics(nil)
		})
	})

	t.Run("HTTP 处理器输出指标", func(t *testing.T) {
		m := NewMetrics(nil)
		m.RecordAccessDenied()

		srv := httptest.NewServer(m.HTTPHandler())
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "mailrelay_access_denied_total 1")
		assert.Contains(t, string(body), "mailrelay_uptime_seconds")
		assert.Contains(t, string(body), "go_goroutines")
	})
}
