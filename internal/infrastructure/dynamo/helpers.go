package dynamo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a rendered UpdateExpression plus its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts field->value pairs into a SET clause and the
// removes list into a REMOVE clause. Keys are sorted so the output is stable.
func buildUpdateExpr(updates map[string]interface{}, removes ...string) (*updateExpr, error) {
	if len(updates) == 0 && len(removes) == 0 {
		return nil, errors.New("no fields to update")
	}
	ue := &updateExpr{
		Names:  make(map[string]string),
		Values: make(map[string]types.AttributeValue),
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	if len(keys) > 0 {
		sets := make([]string, 0, len(keys))
		for i, k := range keys {
			nameKey := fmt.Sprintf("#f%d", i)
			valueKey := fmt.Sprintf(":v%d", i)
			av, err := attributevalue.Marshal(updates[k])
			if err != nil {
				return nil, fmt.Errorf("marshal field %s: %w", k, err)
			}
			ue.Names[nameKey] = k
			ue.Values[valueKey] = av
			sets = append(sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
		}
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		rs := make([]string, 0, len(removes))
		for i, k := range removes {
			nameKey := fmt.Sprintf("#r%d", i)
			ue.Names[nameKey] = k
			rs = append(rs, nameKey)
		}
		clauses = append(clauses, "REMOVE "+strings.Join(rs, ", "))
	}
	ue.Expr = strings.Join(clauses, " ")
	return ue, nil
}

// condition adds a ConditionExpression's placeholders to the update's maps.
// Condition placeholders use the #c/:c prefixes so they never collide with
// the ones produced by buildUpdateExpr.
func (ue *updateExpr) condition(names map[string]string, values map[string]types.AttributeValue) {
	for k, v := range names {
		ue.Names[k] = v
	}
	for k, v := range values {
		ue.Values[k] = v
	}
}

func strVal(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }
func numVal(n int64) types.AttributeValue { return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)} }
func boolVal(b bool) types.AttributeValue { return &types.AttributeValueMemberBOOL{Value: b} }

// conditionFailed reports whether err is a failed ConditionExpression and, if
// so, returns the item as it was before the write (nil when it did not exist).
func conditionFailed(err error) (map[string]types.AttributeValue, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf.Item, true
	}
	return nil, false
}

// transactionConflict reports whether a TransactWriteItems call was cancelled
// because one of its conditions failed.
func transactionConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, r := range tce.CancellationReasons {
		if aws.ToString(r.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
