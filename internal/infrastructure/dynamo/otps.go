package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/campus-market-api/internal/domain"
	"github.com/campus-market-api/internal/pkg/id"
)

// OtpRepo manages the OTP ledger table.
// PK: email, SK: otp_id (ULID). The ULID sort key makes "newest record" a
// descending query and "issued within the trailing window" a key-range count.
//
// Attempt increments and consumption go through conditional updates so two
// racing verifications cannot both act on the same stale read.
type OtpRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOtpRepo(client *dynamodb.Client, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

func (r *OtpRepo) Put(ctx context.Context, c *domain.OtpCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// LatestActive returns the most recently created unconsumed record for email,
// or domain.ErrNotFound when none exists. Consumed records are filtered out
// here, which is what makes a successful verification single-use.
func (r *OtpRepo) LatestActive(ctx context.Context, email string) (*domain.OtpCode, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#e = :e"),
		FilterExpression:       aws.String("#u = :false"),
		ExpressionAttributeNames: map[string]string{
			"#e": fieldEmail,
			"#u": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":     &types.AttributeValueMemberS{Value: email},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(25),
	}
	// FilterExpression applies after the page is read, so keep paging until an
	// unconsumed record shows up or the partition is exhausted.
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		if len(out.Items) > 0 {
			var c domain.OtpCode
			if err := attributevalue.UnmarshalMap(out.Items[0], &c); err != nil {
				return nil, err
			}
			return &c, nil
		}
		if out.LastEvaluatedKey == nil {
			return nil, fmt.Errorf("no active otp for %s: %w", email, domain.ErrNotFound)
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// CountSince counts every record created for email at or after since,
// consumed or not. Issued codes count against the rate ceiling regardless of
// what happened to them afterwards.
func (r *OtpRepo) CountSince(ctx context.Context, email string, since time.Time) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#e = :e AND #o >= :floor"),
		ExpressionAttributeNames: map[string]string{
			"#e": fieldEmail,
			"#o": fieldOtpID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":     &types.AttributeValueMemberS{Value: email},
			":floor": &types.AttributeValueMemberS{Value: id.At(since)},
		},
		Select: types.SelectCount,
	}
	total := 0
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
		if out.LastEvaluatedKey == nil {
			return total, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// IncrementAttempts bumps the attempt counter from expected to expected+1.
// The write is conditional on the record still being unconsumed and the
// counter still holding the value the caller read; a lost race surfaces as
// domain.ErrConflict instead of a silently overwritten count.
func (r *OtpRepo) IncrementAttempts(ctx context.Context, email, otpID string, expected int) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldEmail, email, fieldOtpID, otpID),
		UpdateExpression:    aws.String("SET #a = :next"),
		ConditionExpression: aws.String("#u = :false AND #a = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
			"#u": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":next":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expected+1)},
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expected)},
			":false":    &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	return mapConditionFailure(err)
}

// Consume marks the record used. Conditional on it not being used already, so
// only one of two racing correct submissions can win.
func (r *OtpRepo) Consume(ctx context.Context, email, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldEmail, email, fieldOtpID, otpID),
		UpdateExpression:    aws.String("SET #u = :true"),
		ConditionExpression: aws.String("#u = :false"),
		ExpressionAttributeNames: map[string]string{
			"#u": fieldUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	return mapConditionFailure(err)
}

func mapConditionFailure(err error) error {
	var ccfe *types.ConditionalCheckFailedException
	if errors.As(err, &ccfe) {
		return fmt.Errorf("otp record changed concurrently: %w", domain.ErrConflict)
	}
	return err
}
