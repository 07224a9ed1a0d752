package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/campaignwala/backend/internal/config"
	"go.uber.org/zap"
)

type smsRequest struct {
	APIKey  string `json:"apiKey"`
	Sender  string `json:"sender"`
	Number  string `json:"number"`
	Message string `json:"message"`
}

type smsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HTTPSMSSender posts OTP messages to an SMS gateway's JSON endpoint.
type HTTPSMSSender struct {
	cfg    config.SMSConfig
	client *http.Client
	logger *zap.Logger
}

func NewHTTPSMSSender(cfg config.SMSConfig, logger *zap.Logger) *HTTPSMSSender {
	return &HTTPSMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("sms"),
	}
}

func (s *HTTPSMSSender) SendOTP(ctx context.Context, phoneNumber, code string) error {
	if s.cfg.APIURL == "" || s.cfg.APIKey == "" {
		return ErrSMSNotConfigured
	}

	body, err := json.Marshal(smsRequest{
		APIKey:  s.cfg.APIKey,
		Sender:  s.cfg.SenderID,
		Number:  phoneNumber,
		Message: fmt.Sprintf("Your Campaign Waala OTP is: %s. Valid for 10 minutes.", code),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("sms gateway unreachable", zap.String("phone", phoneNumber), zap.Error(err))
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	var out smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode sms gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		s.logger.Error("sms gateway rejected message",
			zap.String("phone", phoneNumber), zap.Int("status", resp.StatusCode), zap.String("message", out.Message))
		return fmt.Errorf("sms gateway: %s", out.Message)
	}

	s.logger.Info("OTP sms sent", zap.String("phone", phoneNumber))
	return nil
}
