package dynamo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-session-auth/internal/domain"
)

// SessionRepo provides typed DynamoDB operations for the sessions table.
// Expired items are reaped by the table TTL on expires_at; readers still
// check expiry themselves since TTL deletion is lazy.
type SessionRepo struct {
	client    API
	tableName string
}

func NewSessionRepo(client API, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldSessionID, sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldSessionID, sessionID),
	})
	return err
}

// DeleteByEmail removes every session bound to the account address. It keeps
// going past individual failures and returns the first one.
func (r *SessionRepo) DeleteByEmail(ctx context.Context, email string) error {
	var (
		firstErr error
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(indexEmail),
			KeyConditionExpression:    aws.String("#e = :e"),
			ExpressionAttributeNames:  map[string]string{"#e": fieldEmail},
			ExpressionAttributeValues: map[string]types.AttributeValue{":e": strVal(domain.NormalizeEmail(email))},
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			sid, ok := item[fieldSessionID].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := r.Delete(ctx, sid.Value); err != nil {
				slog.Warn("failed to delete session", "session_id", sid.Value, "err", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return firstErr
		}
		startKey = out.LastEvaluatedKey
	}
}
