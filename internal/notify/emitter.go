package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Emitter posts bundled summaries to whatever renders notifications for the
// user. Notify with an existing id replaces the previous summary; Cancel
// dismisses it.
type Emitter interface {
	Notify(ctx context.Context, s Summary) error
	Cancel(ctx context.Context, id int) error
}

// LogEmitter writes summaries to the process log. It is the default sink when
// no webhook is configured.
type LogEmitter struct{}

// Notify logs the summary.
func (LogEmitter) Notify(_ context.Context, s Summary) error {
	log.WithFields(log.Fields{
		"id":      s.ID,
		"package": s.AppPackage,
		"count":   s.Count,
	}).Infof("bundle: %s — %s", s.Title, s.Text)
	return nil
}

// Cancel logs the dismissal.
func (LogEmitter) Cancel(_ context.Context, id int) error {
	log.WithField("id", id).Info("bundle dismissed")
	return nil
}

// WebhookEmitter POSTs summaries to a configured endpoint, typically the
// device bridge that renders them as OS notifications.
type WebhookEmitter struct {
	url    string
	client *http.Client
}

// NewWebhookEmitter constructs a WebhookEmitter for the given endpoint.
func NewWebhookEmitter(url string) *WebhookEmitter {
	return &WebhookEmitter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// webhookPayload is the wire format for summary posts.
type webhookPayload struct {
	Channel     string   `json:"channel"`
	ChannelName string   `json:"channel_name"`
	Summary     *Summary `json:"summary,omitempty"`
	CancelID    *int     `json:"cancel_id,omitempty"`
}

// Notify posts the summary.
func (e *WebhookEmitter) Notify(ctx context.Context, s Summary) error {
	return e.post(ctx, webhookPayload{
		Channel:     ChannelID,
		ChannelName: ChannelName,
		Summary:     &s,
	})
}

// Cancel posts a dismissal for the given summary id.
func (e *WebhookEmitter) Cancel(ctx context.Context, id int) error {
	return e.post(ctx, webhookPayload{
		Channel:  ChannelID,
		CancelID: &id,
	})
}

func (e *WebhookEmitter) post(ctx context.Context, payload webhookPayload) error {
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("notify: marshal payload: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("notify: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := e.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("notify: post summary: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook status %d", resp.StatusCode)
	}
	return nil
}
