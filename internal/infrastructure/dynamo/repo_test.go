package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-session-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func keyIs(id string) interface{} {
	return mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		s, ok := in.Key[fieldUserID].(*types.AttributeValueMemberS)
		return ok && s.Value == id
	})
}

func TestUserRepo_Create_WritesLockAndUser(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 2 {
			return false
		}
		lock := in.TransactItems[0].Put.Item[fieldUserID].(*types.AttributeValueMemberS)
		owner := in.TransactItems[0].Put.Item[fieldOwnerID].(*types.AttributeValueMemberS)
		return lock.Value == "email#a@b.com" && owner.Value == "u1"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	err := repo.Create(context.Background(), &domain.User{UserID: "u1", Email: "a@b.com"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}, {Code: aws.String("None")}},
	})

	err := repo.Create(context.Background(), &domain.User{UserID: "u1", Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepo_GetByEmail_FollowsLock(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("GetItem", mock.Anything, keyIs("email#a@b.com")).Return(&dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{fieldUserID: strVal("email#a@b.com"), fieldOwnerID: strVal("u1")},
	}, nil)
	api.On("GetItem", mock.Anything, keyIs("u1")).Return(&dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{fieldUserID: strVal("u1"), "email": strVal("a@b.com"), "name": strVal("Alice")},
	}, nil)

	u, err := repo.GetByEmail(context.Background(), "  A@B.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "Alice", u.Name)
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.GetByEmail(context.Background(), "nobody@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_GetByResetToken_StaleIndex(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{fieldUserID: strVal("u1"), fieldResetToken: strVal("tok")}},
	}, nil)
	api.On("GetItem", mock.Anything, keyIs("u1")).Return(&dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{fieldUserID: strVal("u1")},
	}, nil)

	_, err := repo.GetByResetToken(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_SetOTP_AlreadyVerified(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{
		Item: map[string]types.AttributeValue{fieldUserID: strVal("u1"), fieldVerified: boolVal(true)},
	})

	err := repo.SetOTP(context.Background(), "u1", "123456", 100)
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

func TestUserRepo_SetOTP_Missing(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	err := repo.SetOTP(context.Background(), "u1", "123456", 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_MarkVerified_Expressions(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "#cv = :cf AND #co = :co" &&
			in.ExpressionAttributeNames["#co"] == fieldOTP
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, repo.MarkVerified(context.Background(), "u1", "123456"))
	api.AssertExpectations(t)
}

func TestUserRepo_MarkVerified_CodeReplaced(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{
		Item: map[string]types.AttributeValue{fieldUserID: strVal("u1"), fieldVerified: boolVal(false), fieldOTP: strVal("999999")},
	})

	err := repo.MarkVerified(context.Background(), "u1", "123456")
	assert.ErrorIs(t, err, domain.ErrMismatch)
}

func TestUserRepo_UpdatePassword_TokenConsumed(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		_, hasToken := in.ExpressionAttributeValues[":ct"]
		return hasToken
	})).Return(nil, &types.ConditionalCheckFailedException{
		Item: map[string]types.AttributeValue{fieldUserID: strVal("u1")},
	})

	err := repo.UpdatePassword(context.Background(), "u1", "hash", time.Now(), "tok")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestUserRepo_UpdatePassword_WithoutToken(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return aws.ToString(in.ConditionExpression) == "attribute_exists(#cu)"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, repo.UpdatePassword(context.Background(), "u1", "hash", time.Now(), ""))
	api.AssertExpectations(t)
}

func TestSessionRepo_Get_NotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewSessionRepo(api, "sessions")
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionRepo_DeleteByEmail_PagesAndContinues(t *testing.T) {
	api := new(mockAPI)
	repo := NewSessionRepo(api, "sessions")
	page2Key := map[string]types.AttributeValue{fieldSessionID: strVal("s2")}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{{fieldSessionID: strVal("s1")}, {fieldSessionID: strVal("s2")}},
		LastEvaluatedKey: page2Key,
	}, nil).Once()
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{fieldSessionID: strVal("s3")}},
	}, nil).Once()

	boom := errors.New("throttled")
	sidIs := func(id string) interface{} {
		return mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
			return in.Key[fieldSessionID].(*types.AttributeValueMemberS).Value == id
		})
	}
	api.On("DeleteItem", mock.Anything, sidIs("s1")).Return(&dynamodb.DeleteItemOutput{}, nil)
	api.On("DeleteItem", mock.Anything, sidIs("s2")).Return(nil, boom)
	api.On("DeleteItem", mock.Anything, sidIs("s3")).Return(&dynamodb.DeleteItemOutput{}, nil)

	err := repo.DeleteByEmail(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, boom)
	api.AssertNumberOfCalls(t, "DeleteItem", 3)
}
