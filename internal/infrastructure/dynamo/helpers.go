package dynamo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a prepared SET/REMOVE update expression.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET
// expression, optionally followed by a REMOVE clause for the given fields.
// REMOVE (rather than writing empty strings) keeps sparse GSIs on secret
// hashes consistent: a consumed secret disappears from its index.
func buildUpdateExpr(updates map[string]interface{}, removes ...string) (*updateExpr, error) {
	if len(updates) == 0 && len(removes) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	names := make(map[string]string)
	values := make(map[string]types.AttributeValue)

	var sets []string
	i := 0
	for k, v := range updates {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		names[nameKey] = k
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		values[valueKey] = av
		sets = append(sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}

	var rems []string
	for j, k := range removes {
		nameKey := fmt.Sprintf("#r%d", j)
		names[nameKey] = k
		rems = append(rems, nameKey)
	}

	var expr string
	if len(sets) > 0 {
		expr = "SET " + strings.Join(sets, ", ")
	}
	if len(rems) > 0 {
		if expr != "" {
			expr += " "
		}
		expr += "REMOVE " + strings.Join(rems, ", ")
	}
	if len(values) == 0 {
		values = nil
	}
	return &updateExpr{Expr: expr, Names: names, Values: values}, nil
}

// isConditionalFailure reports whether err is a failed condition check,
// either on a single write or inside a cancelled transaction.
func isConditionalFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
