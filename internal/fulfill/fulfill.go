package fulfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moltbook/ivxp/internal/models"
)

// Fulfiller produces a deliverable for a paid order. Real service fulfillment
// plugs in behind this interface; the stub below stands in for it.
type Fulfiller interface {
	Fulfill(ctx context.Context, req models.ServiceRequest) (*models.Deliverable, error)
}

// Stub renders a canned markdown deliverable after a fixed delay.
type Stub struct {
	delay time.Duration
}

// NewStub creates new Stub instance
func NewStub(delay time.Duration) *Stub {
	return &Stub{delay: delay}
}

// Fulfill produces the deliverable
func (s *Stub) Fulfill(ctx context.Context, req models.ServiceRequest) (*models.Deliverable, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	format := req.DeliveryFormat
	if format == "" {
		format = "markdown"
	}

	content := fmt.Sprintf(`# %s: %s

## Summary
Service completed for: %s

## Details
[Service content would be generated here based on the service type]

---
*Delivered via %s*
`, title(req.Type), truncate(req.Description, 50), req.Description, models.ProtocolVersion)

	return &models.Deliverable{
		Type:    req.Type + "_deliverable",
		Format:  format,
		Content: content,
	}, nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// truncate cuts s to at most n runes, never splitting a rune
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
