package event

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

type SNSPublisher[T Identifiable] struct {
	Client   SNSClient
	TopicArn string
}

func NewSNSPublisher[T Identifiable](ctx context.Context, topicArn string) (*SNSPublisher[T], error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &SNSPublisher[T]{
		Client:   sns.NewFromConfig(cfg),
		TopicArn: topicArn,
	}, nil
}

func (s *SNSPublisher[T]) Publish(ctx context.Context, e T) error {
	var b bytes.Buffer
	encoder := base64.NewEncoder(base64.StdEncoding, &b)
	jsonEncoder := json.NewEncoder(encoder)
	if err := jsonEncoder.Encode(e); err != nil {
		return err
	}
	encoder.Close()
	m := b.String()
	result, err := s.Client.Publish(ctx, &sns.PublishInput{
		Message:  &m,
		TopicArn: &s.TopicArn,
	})
	if err != nil {
		return err
	}
	logger.Info("SNS event publish response", "message_id", result.MessageId, "event", e.Identifier())
	return nil
}

func (s *SNSPublisher[T]) Close() error {
	return nil
}

func (s *SNSPublisher[T]) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = "SNS Publisher " + s.TopicArn
	if _, err := s.Client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
		TopicArn: &s.TopicArn,
	}); err != nil {
		return rsp.BuildErrorResponse(err)
	}
	return rsp.BuildUpResponse()
}
