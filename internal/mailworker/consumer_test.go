package mailworker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wagslane/go-rabbitmq"

	"github.com/hopeana/dispatcher/internal/mailworker"
	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/services/dispatch"
	"github.com/hopeana/dispatcher/pkg/messaging"
)

type mockSender struct{ mock.Mock }

func (m *mockSender) SendBulk(ctx context.Context, chunk dispatch.Chunk) (dispatch.ChunkResult, error) {
	args := m.Called(ctx, chunk)
	res, _ := args.Get(0).(dispatch.ChunkResult)
	return res, args.Error(1)
}

func delivery(t *testing.T, evt messaging.BulkEmailEvent, redelivered bool) rabbitmq.Delivery {
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	return rabbitmq.Delivery{Delivery: amqp.Delivery{Body: body, Redelivered: redelivered}}
}

var event = messaging.BulkEmailEvent{
	FromEmail:  "hello@hopeana.app",
	FromName:   "Hopeana",
	Subject:    "Your Daily Dose of Motivation",
	TemplateID: "tpl-1",
	Recipients: []messaging.Recipient{
		{Email: "ada@example.com", DynamicData: map[string]string{"quoteContent": "Begin anywhere."}},
	},
}

func TestReceiveBulk(t *testing.T) {
	tests := []struct {
		name        string
		res         dispatch.ChunkResult
		err         error
		redelivered bool
		want        rabbitmq.Action
	}{
		{"delivered", dispatch.ChunkResult{Success: true}, nil, false, rabbitmq.Ack},
		{"rejected", dispatch.ChunkResult{Error: "bad address"}, nil, false, rabbitmq.NackDiscard},
		{"first failure requeues", dispatch.ChunkResult{}, errors.New("smtp down"), false, rabbitmq.NackRequeue},
		{"second failure discards", dispatch.ChunkResult{}, errors.New("smtp down"), true, rabbitmq.NackDiscard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{}
			sender.On("SendBulk", mock.Anything, mock.MatchedBy(func(c dispatch.Chunk) bool {
				return c.Envelope.TemplateID == "tpl-1" &&
					len(c.Recipients) == 1 &&
					c.Recipients[0].DynamicData["quoteContent"] == "Begin anywhere."
			})).Return(tt.res, tt.err).Once()
			t.Cleanup(func() { sender.AssertExpectations(t) })

			c := mailworker.NewConsumer(sender, zerolog.Nop(), metrics.NewMetrics("worker_test"))
			assert.Equal(t, tt.want, c.ReceiveBulk(delivery(t, event, tt.redelivered)))
		})
	}
}

func TestReceiveBulk_BadPayload(t *testing.T) {
	sender := &mockSender{}
	c := mailworker.NewConsumer(sender, zerolog.Nop(), metrics.NewMetrics("worker_test"))

	got := c.ReceiveBulk(rabbitmq.Delivery{Delivery: amqp.Delivery{Body: []byte("{")}})

	assert.Equal(t, rabbitmq.NackDiscard, got)
	sender.AssertNotCalled(t, "SendBulk", mock.Anything, mock.Anything)
}
