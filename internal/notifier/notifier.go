package notifier

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Notification is the payload the push gateway expects.
type Notification struct {
	Title   string      `json:"title"`
	Body    string      `json:"body"`
	URL     string      `json:"url,omitempty"`
	Scope   string      `json:"scope"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

// Dispatcher posts notifications to the push gateway. Callers treat it as
// best-effort: a claim must never fail because the gateway is down.
type Dispatcher struct {
	endpoint   string
	serviceKey string
	client     *http.Client
}

func New(endpoint, serviceKey string) *Dispatcher {
	return &Dispatcher{
		endpoint:   endpoint,
		serviceKey: serviceKey,
		client: &http.Client{
			Timeout: time.Second * 5,
		},
	}
}

func (d *Dispatcher) Push(ctx context.Context, n *Notification) error {
	if d.endpoint == "" {
		return errors.New("push endpoint is not configured")
	}
	body, err := sonic.ConfigDefault.Marshal(n)
	if err != nil {
		return errors.New("marshalling notification error: " + err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New("building notification request error: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if d.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.serviceKey)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return errors.New("sending notification error: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("push gateway responded with status " + resp.Status)
	}
	return nil
}
