package emailsvc

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/services/logger"
)

type sgRequest struct {
	Auth string
	Path string
	Body struct {
		From struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"from"`
		Personalizations []struct {
			Subject string `json:"subject"`
			To      []struct {
				Email string `json:"email"`
			} `json:"to"`
			CC []struct {
				Email string `json:"email"`
			} `json:"cc"`
		} `json:"personalizations"`
		Content []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"content"`
		Attachments []struct {
			Content     string `json:"content"`
			Type        string `json:"type"`
			Filename    string `json:"filename"`
			Disposition string `json:"disposition"`
		} `json:"attachments"`
	}
}

func newSendgridServer(t *testing.T, status int) (*[]sgRequest, *sync.Mutex) {
	var (
		mu   sync.Mutex
		reqs []sgRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sgRequest
		req.Auth = r.Header.Get("Authorization")
		req.Path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&req.Body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		w.WriteHeader(status)
		if status >= http.StatusBadRequest {
			_, _ = io.WriteString(w, `{"errors":[{"message":"bad from address"}]}`)
		}
	}))

	orig := host
	host = srv.URL
	t.Cleanup(func() {
		host = orig
		srv.Close()
	})
	return &reqs, &mu
}

func newSendgridTestService(logs io.Writer) *sendgridService {
	conf := &core.Config{AppName: "LabTrack", DefaultFromEmail: "noreply@labtrack.test", SendgridAPIKey: "sg-key", TestMode: true}
	return NewSendgridService(conf, logsvc.NewRollbarLogger(log.New(logs, "", 0), conf))
}

func TestSendgridService_SendMessages(t *testing.T) {
	reqs, mu := newSendgridServer(t, http.StatusAccepted)
	svc := newSendgridTestService(io.Discard)

	report := &core.EmailMessage{
		To:      []mail.Address{{Name: "HOD", Address: "hod@nbkr.test"}},
		Cc:      []mail.Address{{Address: "office@nbkr.test"}},
		Subject: "Section A report",
		BodyStr: "Attached.",
	}
	require.NoError(t, report.Attach(strings.NewReader("xlsx bytes"), "report.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))

	attachmentOnly := &core.EmailMessage{To: []mail.Address{{Address: "anil@nbkr.test"}}, Subject: "Upload"}
	require.NoError(t, attachmentOnly.Attach(strings.NewReader("%PDF-1.4"), "exp1.pdf", "application/pdf"))

	nobody := &core.EmailMessage{Subject: "nobody", BodyStr: "dropped"}

	svc.SendMessages(report, attachmentOnly, nobody)
	svc.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *reqs, 2, "a message without recipients is not posted")

	bySubject := map[string]sgRequest{}
	for _, r := range *reqs {
		assert.Equal(t, "Bearer sg-key", r.Auth)
		assert.Equal(t, endpoint, r.Path)
		assert.Equal(t, "LabTrack", r.Body.From.Name)
		assert.Equal(t, "noreply@labtrack.test", r.Body.From.Email)
		require.Len(t, r.Body.Personalizations, 1)
		bySubject[r.Body.Personalizations[0].Subject] = r
	}

	got, ok := bySubject["[LabTrack] Section A report"]
	require.True(t, ok, "subject is prefixed with the app name")
	p := got.Body.Personalizations[0]
	require.Len(t, p.To, 1)
	assert.Equal(t, "hod@nbkr.test", p.To[0].Email)
	require.Len(t, p.CC, 1)
	assert.Equal(t, "office@nbkr.test", p.CC[0].Email)
	require.Len(t, got.Body.Content, 1)
	assert.Equal(t, "text/plain", got.Body.Content[0].Type)
	assert.Equal(t, "Attached.", got.Body.Content[0].Value)
	require.Len(t, got.Body.Attachments, 1)
	at := got.Body.Attachments[0]
	assert.Equal(t, "report.xlsx", at.Filename)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", at.Type)
	assert.Equal(t, "attachment", at.Disposition)
	assert.Equal(t, report.Attachments[0].Content.String(), at.Content)

	got, ok = bySubject["[LabTrack] Upload"]
	require.True(t, ok)
	require.Len(t, got.Body.Content, 1)
	assert.Equal(t, " ", got.Body.Content[0].Value, "attachment-only mail still carries a text part")
	require.Len(t, got.Body.Attachments, 1)
	assert.Equal(t, "exp1.pdf", got.Body.Attachments[0].Filename)
}

func TestSendgridService_SendMessages_rejected(t *testing.T) {
	reqs, mu := newSendgridServer(t, http.StatusBadRequest)
	logs := new(bytes.Buffer)
	svc := newSendgridTestService(logs)

	svc.SendMessages(&core.EmailMessage{To: []mail.Address{{Address: "hod@nbkr.test"}}, Subject: "Hi", BodyStr: "Hello"})
	svc.Wait()

	mu.Lock()
	assert.Len(t, *reqs, 1)
	mu.Unlock()
	assert.Contains(t, logs.String(), "sending email to <hod@nbkr.test>")
	assert.Contains(t, logs.String(), "sendgrid status 400")
	assert.Contains(t, logs.String(), "bad from address")
}
