package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Account security event types.
const (
	EventUserRegistered = "user.registered"
	EventUserVerified   = "user.verified"
	EventPasswordReset  = "password.reset"
)

// Event is the JSON message published for each account security event.
// It never carries secrets.
type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

// Publisher emits account security events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   publishAPI
	topicARN string
}

// NewPublisher returns a Publisher for topicARN. An empty topic yields a
// publisher that drops every event.
func NewPublisher(awsCfg aws.Config, endpointURL, topicARN string) Publisher {
	if topicARN == "" {
		return Nop{}
	}
	var clientOpts []func(*sns.Options)
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	return &publisher{client: sns.NewFromConfig(awsCfg, clientOpts...), topicARN: topicARN}
}

func (p *publisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", e.Type, err)
	}
	return nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
