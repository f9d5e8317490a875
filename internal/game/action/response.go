package action

import "context"

// ButtonRef is a follow-up button attached to a display response. The
// hosting chat surface resolves TriggerID when the button is pressed; the
// engine never chains into the target here.
type ButtonRef struct {
	Label     string `json:"label"`
	TriggerID string `json:"triggerId"`
}

// Response is one renderable message produced by an execution.
type Response struct {
	Title    string     `json:"title,omitempty"`
	Body     string     `json:"body,omitempty"`
	ImageURL string     `json:"imageUrl,omitempty"`
	Button   *ButtonRef `json:"button,omitempty"`
}

// HasContent reports whether the response carries anything worth
// rendering.
func (r Response) HasContent() bool {
	return r.Title != "" || r.Body != "" || r.ImageURL != "" || r.Button != nil
}

// Sender delivers deferred follow-up responses after the primary response
// has been returned. Delivery is best effort: failures are logged and
// never retried.
type Sender interface {
	Send(ctx context.Context, tenantID, playerID string, resp Response) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, tenantID, playerID string, resp Response) error

func (f SenderFunc) Send(ctx context.Context, tenantID, playerID string, resp Response) error {
	return f(ctx, tenantID, playerID, resp)
}
