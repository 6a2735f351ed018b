package syncsvc

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/insights_backend/config"
	"bitbucket.org/mmdatafocus/insights_backend/models"
	"bitbucket.org/mmdatafocus/insights_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

// PubSubPushEnvelope is the push-delivery wrapper Google sends; Data is
// base64 on the wire, which encoding/json decodes into the byte slice.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// SyncTriggerPayload asks the worker to run one domain (or all, when Domain
// is empty) over an optional explicit window.
type SyncTriggerPayload struct {
	Domain   models.SyncDomain `json:"domain"`
	FromDate string            `json:"from_date"`
	ToDate   string            `json:"to_date"`
}

func PublishSyncTrigger(ctx context.Context, payload SyncTriggerPayload) error {
	topicName := strings.TrimSpace(os.Getenv("SYNC_TRIGGER_TOPIC"))
	if topicName == "" {
		topicName = "insights-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("SYNC_TRIGGER_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler always acks with 204: malformed pushes would otherwise
// redeliver forever, and sync runs are idempotent anyway.
func PubSubPushHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_SYNC_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncTriggerPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.Domain != "" && !models.IsValidSyncDomain(payload.Domain) {
			c.Status(204)
			return
		}

		ctx := utils.SetTriggeredByInContext(c.Request.Context(), models.SyncTriggeredPubSub)
		window, err := ParseWindow(payload.FromDate, payload.ToDate, svc.timezone)
		if err != nil {
			c.Status(204)
			return
		}
		if payload.Domain == "" {
			svc.RunAll(ctx, window)
		} else {
			svc.RunDomain(ctx, payload.Domain, window)
		}
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
