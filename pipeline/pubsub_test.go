package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPubSubExport(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	topic, err := client.CreateTopic(ctx, "items")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "items-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	exp := NewPubSubWithTopic[article](topic)
	require.NoError(t, exp.Open(ctx))
	require.NoError(t, exp.Write(ctx, article{URL: "https://example.com/1", Title: "one"}))

	recvCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	got := make(chan *pubsub.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			select {
			case got <- msg:
			default:
			}
			cancel()
		})
	}()

	select {
	case msg := <-got:
		var item article
		require.NoError(t, json.Unmarshal(msg.Data, &item))
		require.Equal(t, "https://example.com/1", item.URL)
	case <-recvCtx.Done():
		t.Fatal("message was not delivered")
	}

	require.NoError(t, exp.Close(ctx))
}
