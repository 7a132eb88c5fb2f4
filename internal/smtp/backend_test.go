package smtp_test

import (
	"fmt"
	netsmtp "net/smtp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailrelay/backend/internal/smtp"
	"mailrelay/backend/internal/smtp/smtptest"
)

func TestBackend_ReceivesMessage(t *testing.T) {
	srv := smtptest.Start(t)

	body := "From: sender@x.com\r\n" +
		"To: r@x.com\r\n" +
		"Subject: hello\r\n" +
		"\r\n" +
		"world\r\n"

	addr := fmt.Sprintf("%s:%d", srv.Host, srv.Port)
	err := netsmtp.SendMail(addr, nil, "Sender@x.com", []string{"R@x.com"}, []byte(body))
	require.NoError(t, err)

	msgs := srv.WaitMessages(t, 1, 5*time.Second)
	require.Len(t, msgs, 1)
	assert.Equal(t, "sender@x.com", msgs[0].From)
	assert.Equal(t, []string{"r@x.com"}, msgs[0].Recipients)
	assert.Equal(t, "hello", msgs[0].Parsed.Subject)
	assert.Equal(t, "world\r\n", msgs[0].Parsed.Text)
}

func TestBackend_Retention(t *testing.T) {
	srv := smtptest.Start(t, smtp.WithRetention(2))
	addr := fmt.Sprintf("%s:%d", srv.Host, srv.Port)

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf("Subject: m%d\r\n\r\nbody\r\n", i)
		require.NoError(t, netsmtp.SendMail(addr, nil, "a@x.com", []string{"b@x.com"}, []byte(body)))
	}

	require.Eventually(t, func() bool {
		msgs := srv.Backend().Messages()
		return len(msgs) == 2 && msgs[1].Parsed.Subject == "m2"
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "m1", srv.Backend().Messages()[0].Parsed.Subject)
}

func TestBackend_RejectsInvalidRecipient(t *testing.T) {
	srv := smtptest.Start(t)
	addr := fmt.Sprintf("%s:%d", srv.Host, srv.Port)

	err := netsmtp.SendMail(addr, nil, "a@x.com", []string{"nobody"}, []byte("Subject: x\r\n\r\nx\r\n"))
	assert.Error(t, err)
	assert.Empty(t, srv.Backend().Messages())
}

func TestBackend_OnMessage(t *testing.T) {
	var count atomic.Int32
	srv := smtptest.Start(t, smtp.WithOnMessage(func(*smtp.Message) { count.Add(1) }))
	addr := fmt.Sprintf("%s:%d", srv.Host, srv.Port)

	require.NoError(t, netsmtp.SendMail(addr, nil, "a@x.com", []string{"b@x.com"}, []byte("Subject: x\r\n\r\nx\r\n")))

	require.Eventually(t, func() bool { return count.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
}
