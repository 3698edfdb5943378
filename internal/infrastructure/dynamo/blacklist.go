package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-identity-api/internal/domain"
)

// BlacklistRepo stores revoked refresh tokens keyed by jti. The table is
// append-only: entries are only ever written, never updated or deleted by
// the application; DynamoDB TTL on expires_at ages them out once the token
// would have expired anyway. Concurrent revokes of the same jti are
// last-writer-wins, which is fine — membership checks are monotonic.
type BlacklistRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewBlacklistRepo(client *dynamodb.Client, tableName string) *BlacklistRepo {
	return &BlacklistRepo{client: client, tableName: tableName}
}

func (r *BlacklistRepo) Add(ctx context.Context, rt *domain.RevokedToken) error {
	item, err := attributevalue.MarshalMap(rt)
	if err != nil {
		return fmt.Errorf("marshal revoked token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *BlacklistRepo) Contains(ctx context.Context, tokenID string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token_id", tokenID),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}
