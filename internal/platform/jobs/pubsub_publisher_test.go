package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/favianyip/shunharvest/internal/domain"
	"github.com/favianyip/shunharvest/internal/services"
)

func TestPubSubOrderPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubOrderPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderPublisher: %v", err)
	}
	defer publisher.Stop()

	event := services.OrderEvent{
		Type:          services.OrderEventCreated,
		OrderID:       "ord_test",
		Status:        domain.OrderStatusProcessing,
		PaymentRef:    "cs_test_1",
		PaymentMethod: string(domain.PaymentMethodCard),
		Total:         37600,
		Currency:      "SGD",
		NeedsReview:   true,
		OccurredAt:    time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != event.OrderID || payload.Total != 37600 || payload.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected payload %#v", payload)
	}
	attrs := messages[0].Attributes
	if attrs["type"] != services.OrderEventCreated || attrs["orderId"] != "ord_test" {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
	if attrs["needsReview"] != "true" {
		t.Fatalf("expected needsReview attribute, got %q", attrs["needsReview"])
	}
	if _, ok := attrs["customerEmail"]; ok {
		t.Fatalf("customer email must not be exposed as an attribute")
	}
	if messages[0].OrderingKey != "ord_test" {
		t.Fatalf("expected ordering key ord_test, got %q", messages[0].OrderingKey)
	}
}

func TestNewPubSubOrderPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubOrderPublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
