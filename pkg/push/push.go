package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope           = "https://www.googleapis.com/auth/firebase.messaging"
	defaultFCMEndpoint = "https://fcm.googleapis.com"
	defaultTimeout     = 10 * time.Second
)

// ErrTokenUnregistered reports a device token FCM no longer accepts.
// Callers should forget the token.
var ErrTokenUnregistered = errors.New("push: device token is no longer registered")

// Notification is a single push message addressed to one device token.
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers push notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// FCMConfig configures the Firebase Cloud Messaging sender.
type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON []byte
	Endpoint        string
	Timeout         time.Duration
	// HTTPClient overrides the OAuth2-authorised client (tests).
	HTTPClient *http.Client
}

// FCMSender talks to the FCM HTTP v1 API with service-account credentials.
type FCMSender struct {
	client    *http.Client
	endpoint  string
	projectID string
}

// NewFCMSender builds an FCM sender. Credentials come from the JSON blob, the
// file, or application default credentials, in that order.
func NewFCMSender(ctx context.Context, cfg FCMConfig) (*FCMSender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := cfg.HTTPClient
	projectID := strings.TrimSpace(cfg.ProjectID)
	if client == nil {
		creds, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if projectID == "" {
			projectID = creds.ProjectID
		}
		client = oauth2.NewClient(ctx, creds.TokenSource)
		client.Timeout = timeout
	}
	if projectID == "" {
		return nil, errors.New("push: fcm project id is required")
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultFCMEndpoint
	}

	return &FCMSender{
		client:    client,
		endpoint:  endpoint,
		projectID: projectID,
	}, nil
}

func loadCredentials(ctx context.Context, cfg FCMConfig) (*google.Credentials, error) {
	data := cfg.CredentialsJSON
	if len(data) == 0 && strings.TrimSpace(cfg.CredentialsFile) != "" {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("push: read credentials: %w", err)
		}
		data = raw
	}
	if len(data) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, data, fcmScope)
		if err != nil {
			return nil, fmt.Errorf("push: parse credentials: %w", err)
		}
		return creds, nil
	}
	creds, err := google.FindDefaultCredentials(ctx, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("push: default credentials: %w", err)
	}
	return creds, nil
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send posts one message to FCM.
func (s *FCMSender) Send(ctx context.Context, n Notification) error {
	token := strings.TrimSpace(n.Token)
	if token == "" {
		return errors.New("push: device token is required")
	}

	payload, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Token:        token,
		Notification: &fcmNotification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
	}})
	if err != nil {
		return fmt.Errorf("push: encode message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.endpoint, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var fcmErr fcmErrorResponse
	if json.Unmarshal(body, &fcmErr) == nil {
		for _, detail := range fcmErr.Error.Details {
			if detail.ErrorCode == "UNREGISTERED" {
				return ErrTokenUnregistered
			}
		}
		if fcmErr.Error.Status == "NOT_FOUND" {
			return ErrTokenUnregistered
		}
		if fcmErr.Error.Message != "" {
			return fmt.Errorf("push: fcm %d %s: %s", resp.StatusCode, fcmErr.Error.Status, fcmErr.Error.Message)
		}
	}
	return fmt.Errorf("push: fcm responded with status %d", resp.StatusCode)
}

// LogSender records push messages in the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log}
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.Debug("push delivered to log",
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.Int("data_keys", len(n.Data)),
	)
	return nil
}
