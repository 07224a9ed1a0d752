package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campaignwala/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func TestHTTPSMSSender_SendOTP(t *testing.T) {
	t.Run("gateway accepts", func(t *testing.T) {
		var got smsRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(smsResponse{Success: true})
		}))
		defer srv.Close()

		s := NewHTTPSMSSender(config.SMSConfig{APIURL: srv.URL, APIKey: "k", SenderID: "CMPWLA", Timeout: time.Second}, zap.NewNop())

		err := s.SendOTP(context.Background(), "9876543210", "4821")
		assert.NoError(t, err)
		assert.Equal(t, "9876543210", got.Number)
		assert.Equal(t, "Your Campaign Waala OTP is: 4821. Valid for 10 minutes.", got.Message)
	})

	t.Run("gateway refuses", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(smsResponse{Success: false, Message: "invalid number"})
		}))
		defer srv.Close()

		s := NewHTTPSMSSender(config.SMSConfig{APIURL: srv.URL, APIKey: "k", Timeout: time.Second}, zap.NewNop())

		err := s.SendOTP(context.Background(), "9876543210", "4821")
		assert.ErrorContains(t, err, "invalid number")
	})

	t.Run("not configured", func(t *testing.T) {
		s := NewHTTPSMSSender(config.SMSConfig{}, zap.NewNop())
		assert.ErrorIs(t, s.SendOTP(context.Background(), "9876543210", "4821"), ErrSMSNotConfigured)
	})
}

func TestSMTPMailer_SendOTP(t *testing.T) {
	otp := &config.OTPConfig{CodeTTL: 10 * time.Minute}

	t.Run("not configured", func(t *testing.T) {
		m := NewSMTPMailer(config.SMTPConfig{}, otp, zap.NewNop())
		assert.ErrorIs(t, m.SendOTP(context.Background(), "a@b.in", "Asha", "4821", PurposeLogin), ErrEmailNotConfigured)
	})

	t.Run("builds message and reports dial errors", func(t *testing.T) {
		m := NewSMTPMailer(config.SMTPConfig{Sender: "noreply@campaignwala.in"}, otp, zap.NewNop())

		var sent []*gomail.Message
		m.dial = func(msgs ...*gomail.Message) error {
			sent = append(sent, msgs...)
			return nil
		}
		require.NoError(t, m.SendOTP(context.Background(), "asha@example.com", "Asha", "4821", PurposeChangePassword))
		require.Len(t, sent, 1)
		assert.Equal(t, []string{"asha@example.com"}, sent[0].GetHeader("To"))
		assert.Equal(t, []string{"Campaign Waala - Password Change Verification"}, sent[0].GetHeader("Subject"))

		m.dial = func(...*gomail.Message) error { return errors.New("connection refused") }
		assert.ErrorContains(t, m.SendOTP(context.Background(), "asha@example.com", "Asha", "4821", PurposeLogin), "connection refused")
	})
}
