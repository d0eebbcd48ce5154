package senders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendClient_SendsPerRecipient(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

		var body ResendSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.To, 1)
		assert.Equal(t, "Davetiye", body.Subject)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := &ResendClient{APIKey: "re_test", MailFrom: "davet@davetjet.com", BaseURL: srv.URL}
	err := c.SendEmail(context.Background(), []string{"a@test.com", "b@test.com"}, "Davetiye", "", "<p>hi</p>")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
}

func TestResendClient_NoKeyIsNoop(t *testing.T) {
	c := &ResendClient{}
	assert.NoError(t, c.SendEmail(context.Background(), []string{"a@test.com"}, "s", "", ""))
}

func TestResendClient_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
	}))
	defer srv.Close()

	c := &ResendClient{APIKey: "re_test", BaseURL: srv.URL}
	assert.Error(t, c.SendEmail(context.Background(), []string{"a@test.com"}, "s", "", ""))
}

func TestNetgsmClient_BatchBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)

		var body NetgsmSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DAVETJET", body.MsgHeader)
		assert.Equal(t, "TR", body.Encoding)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "5461234567", body.Messages[0].No)

		json.NewEncoder(w).Encode(SMSResult{Code: "00", JobID: "12345"})
	}))
	defer srv.Close()

	c := &NetgsmClient{Username: "user", Password: "pass", AppName: "DAVETJET", BaseURL: srv.URL}
	res, err := c.SendSMS(context.Background(), []string{"5461234567", "5321234567"}, "Davet", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "12345", res.JobID)
}

func TestNetgsmClient_GatewayErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SMSResult{Code: "30", Description: "invalid header"})
	}))
	defer srv.Close()

	c := &NetgsmClient{Username: "user", Password: "pass", BaseURL: srv.URL}
	res, err := c.SendSMS(context.Background(), []string{"5461234567"}, "Davet", "")
	assert.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "30", res.Code)
}

func TestNetgsmClient_EmptyBatchIsNoop(t *testing.T) {
	c := &NetgsmClient{Username: "user", Password: "pass"}
	res, err := c.SendSMS(context.Background(), nil, "Davet", "")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestClients_ConcurrentSendsShareOneValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SMSResult{Code: "00"})
	}))
	defer srv.Close()

	email := &ResendClient{APIKey: "re_test", BaseURL: srv.URL}
	sms := &NetgsmClient{Username: "user", Password: "pass", BaseURL: srv.URL}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, email.SendEmail(context.Background(), []string{"a@test.com"}, "s", "", ""))
			_, err := sms.SendSMS(context.Background(), []string{"5461234567"}, "Davet", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Sends with no configured client never write to the shared value.
	assert.Nil(t, email.Client)
	assert.Nil(t, sms.Client)
}

func TestWhatsAppClient_Body(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123456/messages", r.URL.Path)
		assert.Equal(t, "Bearer wa_test", r.Header.Get("Authorization"))

		var body WhatsAppSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "whatsapp", body.MessagingProduct)
		assert.Equal(t, "+905461234567", body.To)
		assert.Equal(t, "Davet mesajı", body.Text.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := &WhatsAppClient{Token: "wa_test", PhoneID: "123456", BaseURL: srv.URL}
	require.NoError(t, c.SendWhatsApp(context.Background(), "5461234567", "Davet mesajı"))
}
