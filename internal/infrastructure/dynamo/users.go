package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-session-auth/internal/domain"
)

// API is the subset of the DynamoDB client the repositories use.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// UserRepo provides typed DynamoDB operations for the users table.
//
// Every account has a companion lock item keyed "email#<address>" whose
// owner_id points at the account. Create and Delete write both in one
// transaction, which is how e-mail uniqueness is enforced.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// Create stores a new account. Returns ErrConflict when the e-mail is taken.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	lock := map[string]types.AttributeValue{
		fieldUserID:  strVal(emailLockPrefix + u.Email),
		fieldOwnerID: strVal(u.UserID),
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                lock,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	if err != nil {
		if transactionConflict(err) {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail resolves the lock item for the normalized address and loads the
// owning account, both with strongly consistent reads.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, emailLockPrefix+domain.NormalizeEmail(email)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	owner, ok := out.Item[fieldOwnerID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, owner.Value)
}

// GetByResetToken finds the account holding token via the sparse
// reset_token-index GSI, then re-reads it consistently so a token consumed
// since the index was updated is not returned.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexResetToken),
		KeyConditionExpression:    aws.String("#t = :t"),
		ExpressionAttributeNames:  map[string]string{"#t": fieldResetToken},
		ExpressionAttributeValues: map[string]types.AttributeValue{":t": strVal(token)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("reset token not found: %w", domain.ErrNotFound)
	}
	owner, ok := out.Items[0][fieldUserID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("reset token not found: %w", domain.ErrNotFound)
	}
	u, err := r.Get(ctx, owner.Value)
	if err != nil {
		return nil, err
	}
	if u.ResetToken != token {
		return nil, fmt.Errorf("reset token not found: %w", domain.ErrNotFound)
	}
	return u, nil
}

// SetOTP stores a pending code on an unverified account, replacing any
// previous one.
func (r *UserRepo) SetOTP(ctx context.Context, userID, code string, expiresAt int64) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldOTP:          code,
		fieldOTPExpiresAt: expiresAt,
		fieldUpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.condition(
		map[string]string{"#cu": fieldUserID, "#cv": fieldVerified},
		map[string]types.AttributeValue{":cf": boolVal(false)},
	)
	err = r.update(ctx, userID, ue, "attribute_exists(#cu) AND #cv = :cf")
	if old, failed := conditionFailed(err); failed {
		if old == nil {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("email already verified: %w", domain.ErrAlreadyVerified)
	}
	return err
}

// MarkVerified flips the account to verified and clears its OTP, provided the
// account is still unverified and still holds code.
func (r *UserRepo) MarkVerified(ctx context.Context, userID, code string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldVerified:  true,
		fieldUpdatedAt: time.Now().UTC(),
	}, fieldOTP, fieldOTPExpiresAt)
	if err != nil {
		return err
	}
	ue.condition(
		map[string]string{"#cv": fieldVerified, "#co": fieldOTP},
		map[string]types.AttributeValue{":cf": boolVal(false), ":co": strVal(code)},
	)
	err = r.update(ctx, userID, ue, "#cv = :cf AND #co = :co")
	if old, failed := conditionFailed(err); failed {
		if old == nil {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		if v, ok := old[fieldVerified].(*types.AttributeValueMemberBOOL); ok && v.Value {
			return fmt.Errorf("email already verified: %w", domain.ErrAlreadyVerified)
		}
		return fmt.Errorf("otp superseded: %w", domain.ErrMismatch)
	}
	return err
}

// SetResetToken stores a pending reset token, replacing any previous one.
func (r *UserRepo) SetResetToken(ctx context.Context, userID, token string, expiresAt int64) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldResetToken:          token,
		fieldResetTokenExpiresAt: expiresAt,
		fieldUpdatedAt:           time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.condition(map[string]string{"#cu": fieldUserID}, nil)
	err = r.update(ctx, userID, ue, "attribute_exists(#cu)")
	if _, failed := conditionFailed(err); failed {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return err
}

// UpdatePassword replaces the hash and clears any reset token. When
// resetToken is non-empty the write only applies while that token is still
// pending and unexpired at `at`, which makes the token single-use.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID, hash string, at time.Time, resetToken string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldPasswordHash:      hash,
		fieldPasswordUpdatedAt: at.UTC(),
		fieldUpdatedAt:         at.UTC(),
	}, fieldResetToken, fieldResetTokenExpiresAt)
	if err != nil {
		return err
	}
	cond := "attribute_exists(#cu)"
	names := map[string]string{"#cu": fieldUserID}
	var values map[string]types.AttributeValue
	if resetToken != "" {
		cond += " AND #ct = :ct AND #ce > :cn"
		names["#ct"] = fieldResetToken
		names["#ce"] = fieldResetTokenExpiresAt
		values = map[string]types.AttributeValue{":ct": strVal(resetToken), ":cn": numVal(at.Unix())}
	}
	ue.condition(names, values)
	err = r.update(ctx, userID, ue, cond)
	if old, failed := conditionFailed(err); failed {
		if old == nil {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("reset token consumed or expired: %w", domain.ErrInvalidToken)
	}
	return err
}

// Delete removes the account and releases its e-mail lock.
func (r *UserRepo) Delete(ctx context.Context, u *domain.User) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                 aws.String(r.tableName),
				Key:                       strKey(fieldUserID, emailLockPrefix+u.Email),
				ConditionExpression:       aws.String("attribute_not_exists(#o) OR #o = :o"),
				ExpressionAttributeNames:  map[string]string{"#o": fieldOwnerID},
				ExpressionAttributeValues: map[string]types.AttributeValue{":o": strVal(u.UserID)},
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey(fieldUserID, u.UserID),
			}},
		},
	})
	if err != nil {
		if transactionConflict(err) {
			return fmt.Errorf("email lock owned by another account: %w", domain.ErrConflict)
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (r *UserRepo) update(ctx context.Context, userID string, ue *updateExpr, condition string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldUserID, userID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String(condition),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	return err
}
