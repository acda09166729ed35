package mail

import (
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKYCReviewEscapes(t *testing.T) {
	subject, body, err := RenderKYCReview(KYCReviewData{
		ProviderName: "Acme <School>",
		Title:        "Action required",
		Message:      "Please resubmit.",
		Remarks:      "PAN image is blurred",
		Link:         "https://feebook.example/provider/kyc/status",
	})
	require.NoError(t, err)
	assert.Equal(t, "FeeBook verification: Action required", subject)
	assert.Contains(t, body, "Acme &lt;School&gt;")
	assert.Contains(t, body, "Reviewer remarks: PAN image is blurred")

	_, body, err = RenderKYCReview(KYCReviewData{Title: "Verified"})
	require.NoError(t, err)
	assert.NotContains(t, body, "Reviewer remarks")
}

func TestSMTPSenderSend(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	s := NewSMTPSender(SMTPConfig{Host: "smtp.local", Port: "2525", Sender: "no-reply@feebook.test"})
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Nil(t, a)
		assert.Equal(t, []string{"owner@acme.test"}, to)
		return nil
	}

	require.NoError(t, s.Send("owner@acme.test", "Hello", "<p>x</p>"))
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.True(t, strings.HasPrefix(string(gotMsg), "From: no-reply@feebook.test\r\nTo: owner@acme.test\r\nSubject: Hello\r\n"))
	assert.True(t, strings.HasSuffix(string(gotMsg), "\r\n\r\n<p>x</p>"))
}
