package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
)

// AccountRepo provides typed DynamoDB operations over the users,
// security_profiles, user_presence and unique_keys tables. The tables
// travel together because account creation and secret consumption are
// TransactWriteItems units spanning them.
//
// Email and username uniqueness is enforced by guard items in the
// unique_keys table written with attribute_not_exists conditions inside the
// creation transaction — two concurrent creates with the same email cannot
// both commit. Callers pass emails already normalized via
// domain.NormalizeEmail.
type AccountRepo struct {
	client *dynamodb.Client
	tables config.DynamoTables
}

func NewAccountRepo(client *dynamodb.Client, tables config.DynamoTables) *AccountRepo {
	return &AccountRepo{client: client, tables: tables}
}

// Create atomically writes the user, its security profile, its presence
// side profile and both uniqueness guards. Returns domain.ErrValidation
// when the email or username is already taken.
func (r *AccountRepo) Create(ctx context.Context, u *domain.User, p *domain.SecurityProfile, pr *domain.Presence) error {
	return r.create(ctx, u, p, pr, true)
}

// CreateFederated is Create without the username guard: federated usernames
// are provider display names, not unique handles.
func (r *AccountRepo) CreateFederated(ctx context.Context, u *domain.User, p *domain.SecurityProfile, pr *domain.Presence) error {
	return r.create(ctx, u, p, pr, false)
}

func (r *AccountRepo) create(ctx context.Context, u *domain.User, p *domain.SecurityProfile, pr *domain.Presence, guardUsername bool) error {
	userItem, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	profileItem, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal security profile: %w", err)
	}
	stripEmptySecretKeys(profileItem)
	presenceItem, err := attributevalue.MarshalMap(pr)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}

	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(r.tables.Users),
			Item:                userItem,
			ConditionExpression: aws.String("attribute_not_exists(user_id)"),
		}},
		{Put: &types.Put{
			TableName: aws.String(r.tables.SecurityProfiles),
			Item:      profileItem,
		}},
		{Put: &types.Put{
			TableName: aws.String(r.tables.Presence),
			Item:      presenceItem,
		}},
		r.guardPut("email#" + u.Email),
	}
	if guardUsername {
		items = append(items, r.guardPut("username#"+u.Username))
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionalFailure(err) {
			return fmt.Errorf("email or username already registered: %w", domain.ErrValidation)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *AccountRepo) guardPut(keyValue string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(r.tables.UniqueKeys),
		Item:                strKey("key_value", keyValue),
		ConditionExpression: aws.String("attribute_not_exists(key_value)"),
	}}
}

func (r *AccountRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.Users),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tables.Users),
		IndexName:                 aws.String(indexEmail),
		KeyConditionExpression:    aws.String("email = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user by email: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *AccountRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tables.Users),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *AccountRepo) GetProfile(ctx context.Context, userID string) (*domain.SecurityProfile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tables.SecurityProfiles),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("security profile %s: %w", userID, domain.ErrNotFound)
	}
	var p domain.SecurityProfile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile creates the security profile if it does not exist yet.
// Idempotent: a concurrent or earlier creation wins and is not an error.
func (r *AccountRepo) EnsureProfile(ctx context.Context, p *domain.SecurityProfile) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal security profile: %w", err)
	}
	stripEmptySecretKeys(item)
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tables.SecurityProfiles),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil && !isConditionalFailure(err) {
		return fmt.Errorf("ensure security profile: %w", err)
	}
	return nil
}

// EnsurePresence creates the presence side profile if it does not exist
// yet. Same idempotency contract as EnsureProfile.
func (r *AccountRepo) EnsurePresence(ctx context.Context, pr *domain.Presence) error {
	item, err := attributevalue.MarshalMap(pr)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tables.Presence),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil && !isConditionalFailure(err) {
		return fmt.Errorf("ensure presence: %w", err)
	}
	return nil
}

// UpdateProfile applies a partial update to the security profile; removes
// lists attributes to delete (secret hashes clear via REMOVE so the sparse
// GSIs stay consistent).
func (r *AccountRepo) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}, removes ...string) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates, removes...)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tables.SecurityProfiles),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// SetPendingSecret overwrites the slot for kind with a new hash and expiry.
// Any prior active secret of that kind is invalidated by the overwrite.
func (r *AccountRepo) SetPendingSecret(ctx context.Context, userID string, kind domain.SecretKind, hash string, expiry int64) error {
	hashField, expiryField := secretFields(kind)
	return r.UpdateProfile(ctx, userID, map[string]interface{}{
		hashField:   hash,
		expiryField: expiry,
	})
}

// FindProfileBySecretHash resolves a profile from a stored secret hash via
// the kind's sparse GSI. Consumed secrets are absent from the index, so a
// reused token simply misses.
func (r *AccountRepo) FindProfileBySecretHash(ctx context.Context, kind domain.SecretKind, hash string) (*domain.SecurityProfile, error) {
	index := indexPasswordResetHash
	hashField, _ := secretFields(kind)
	if kind == domain.SecretEmailVerification {
		index = indexEmailVerifyHash
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tables.SecurityProfiles),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#h = :h"),
		ExpressionAttributeNames:  map[string]string{"#h": hashField},
		ExpressionAttributeValues: map[string]types.AttributeValue{":h": &types.AttributeValueMemberS{Value: hash}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("secret hash: %w", domain.ErrNotFound)
	}
	var p domain.SecurityProfile
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ConsumePasswordReset sets the new password hash and clears the reset
// secret in one transaction. The condition on the stored hash makes the
// secret single-use: a concurrent consume of the same token fails the
// whole unit and nothing is written.
func (r *AccountRepo) ConsumePasswordReset(ctx context.Context, userID, secretHash, newPasswordHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(r.tables.SecurityProfiles),
				Key:                 strKey("user_id", userID),
				UpdateExpression:    aws.String("SET #u = :now REMOVE #h, #e"),
				ConditionExpression: aws.String("#h = :hash"),
				ExpressionAttributeNames: map[string]string{
					"#u": fieldUpdatedAt,
					"#h": fieldPasswordResetHash,
					"#e": fieldPasswordResetExpiry,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":now":  &types.AttributeValueMemberS{Value: now},
					":hash": &types.AttributeValueMemberS{Value: secretHash},
				},
			}},
			{Update: &types.Update{
				TableName:        aws.String(r.tables.Users),
				Key:              strKey("user_id", userID),
				UpdateExpression: aws.String("SET #p = :p, #u = :now"),
				ExpressionAttributeNames: map[string]string{
					"#p": fieldPasswordHash,
					"#u": fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":p":   &types.AttributeValueMemberS{Value: newPasswordHash},
					":now": &types.AttributeValueMemberS{Value: now},
				},
			}},
		},
	})
	if err != nil {
		if isConditionalFailure(err) {
			return fmt.Errorf("reset secret already consumed: %w", domain.ErrInvalidOrExpiredToken)
		}
		return fmt.Errorf("consume password reset: %w", err)
	}
	return nil
}

// ConsumeEmailVerification marks the account verified and clears the
// verification secret in one transaction. Conditions guard both halves:
// the secret must still match and the account must not already be verified.
func (r *AccountRepo) ConsumeEmailVerification(ctx context.Context, userID, secretHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(r.tables.SecurityProfiles),
				Key:                 strKey("user_id", userID),
				UpdateExpression:    aws.String("SET #u = :now REMOVE #h, #e"),
				ConditionExpression: aws.String("#h = :hash"),
				ExpressionAttributeNames: map[string]string{
					"#u": fieldUpdatedAt,
					"#h": fieldEmailVerifyHash,
					"#e": fieldEmailVerifyExpiry,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":now":  &types.AttributeValueMemberS{Value: now},
					":hash": &types.AttributeValueMemberS{Value: secretHash},
				},
			}},
			{Update: &types.Update{
				TableName:           aws.String(r.tables.Users),
				Key:                 strKey("user_id", userID),
				UpdateExpression:    aws.String("SET #v = :t, #u = :now"),
				ConditionExpression: aws.String("#v = :f"),
				ExpressionAttributeNames: map[string]string{
					"#v": fieldIsVerified,
					"#u": fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":t":   &types.AttributeValueMemberBOOL{Value: true},
					":f":   &types.AttributeValueMemberBOOL{Value: false},
					":now": &types.AttributeValueMemberS{Value: now},
				},
			}},
		},
	})
	if err != nil {
		if isConditionalFailure(err) {
			return fmt.Errorf("verification secret already consumed: %w", domain.ErrInvalidOrExpiredToken)
		}
		return fmt.Errorf("consume email verification: %w", err)
	}
	return nil
}

func secretFields(kind domain.SecretKind) (hashField, expiryField string) {
	if kind == domain.SecretPasswordReset {
		return fieldPasswordResetHash, fieldPasswordResetExpiry
	}
	return fieldEmailVerifyHash, fieldEmailVerifyExpiry
}

// stripEmptySecretKeys removes empty-string secret hash attributes before a
// put. The hashes are sparse GSI hash keys and DynamoDB rejects empty
// strings in index key attributes.
func stripEmptySecretKeys(item map[string]types.AttributeValue) {
	for _, f := range []string{fieldPasswordResetHash, fieldEmailVerifyHash} {
		if s, ok := item[f].(*types.AttributeValueMemberS); ok && s.Value == "" {
			delete(item, f)
		}
	}
}
