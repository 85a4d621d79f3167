package fulfill

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/moltbook/ivxp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_Fulfill(t *testing.T) {
	stub := NewStub(0)

	deliverable, err := stub.Fulfill(context.Background(), models.ServiceRequest{
		Type:        "research",
		Description: "survey of agent payment protocols",
		BudgetUSDC:  50,
	})
	require.NoError(t, err)

	assert.Equal(t, "research_deliverable", deliverable.Type)
	assert.Equal(t, "markdown", deliverable.Format)
	assert.Contains(t, deliverable.Content, "# Research:")
	assert.Contains(t, deliverable.Content, "survey of agent payment protocols")
}

func TestStub_Fulfill_TruncatesLongDescription(t *testing.T) {
	stub := NewStub(0)
	long := strings.Repeat("x", 200)

	deliverable, err := stub.Fulfill(context.Background(), models.ServiceRequest{
		Type:        "research",
		Description: long,
	})
	require.NoError(t, err)
	assert.Contains(t, deliverable.Content, "# Research: "+long[:50]+"\n")
}

func TestStub_Fulfill_TruncatesOnRuneBoundary(t *testing.T) {
	stub := NewStub(0)
	long := strings.Repeat("é", 60)

	deliverable, err := stub.Fulfill(context.Background(), models.ServiceRequest{
		Type:        "research",
		Description: long,
	})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(deliverable.Content))
	assert.Contains(t, deliverable.Content, "# Research: "+strings.Repeat("é", 50)+"\n")
}

func TestStub_Fulfill_KeepsRequestedFormat(t *testing.T) {
	stub := NewStub(0)

	deliverable, err := stub.Fulfill(context.Background(), models.ServiceRequest{
		Type:           "code_review",
		Description:    "review worker pool shutdown",
		DeliveryFormat: "text",
	})
	require.NoError(t, err)
	assert.Equal(t, "text", deliverable.Format)
}

func TestStub_Fulfill_CancelledContext(t *testing.T) {
	stub := NewStub(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stub.Fulfill(ctx, models.ServiceRequest{Type: "research"})
	assert.ErrorIs(t, err, context.Canceled)
}
