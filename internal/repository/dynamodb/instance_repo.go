package dynamodb

import (
	"context"
	"fmt"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"
	repository "rcmos/internal/repository/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type instanceRepository struct {
	client    Client
	tableName string
	logger    logger.Logger
}

func NewInstanceRepository(client Client, tables Tables, log logger.Logger) repository.InstanceRepository {
	return &instanceRepository{
		client:    client,
		tableName: tables.Instances,
		logger:    log.With(logger.String("component", "instance_repository")),
	}
}

func (r *instanceRepository) Create(ctx context.Context, instance *domain.Instance) error {
	item, err := attributevalue.MarshalMap(instance)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(instance_id)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return repository.ErrInstanceExists
		}
		r.logger.Error("failed to create instance",
			logger.String("instance_id", instance.InstanceID),
			logger.Error(err))
		return domain.Transport("create instance", err)
	}
	return nil
}

func (r *instanceRepository) Get(ctx context.Context, instanceID string) (*domain.Instance, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            map[string]types.AttributeValue{"instance_id": &types.AttributeValueMemberS{Value: instanceID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, domain.Transport("get instance", err)
	}
	if len(out.Item) == 0 {
		return nil, repository.InstanceNotFound(instanceID)
	}

	var instance domain.Instance
	if err := attributevalue.UnmarshalMap(out.Item, &instance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &instance, nil
}

func (r *instanceRepository) Update(ctx context.Context, instance *domain.Instance) error {
	expected := instance.Version
	next := instance.Clone()
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UnixMilli()

	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": numberValue(expected),
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			r.logger.Warn("optimistic lock failed - instance was modified by another worker",
				logger.String("instance_id", instance.InstanceID),
				logger.Int64("expected_version", expected))
			return fmt.Errorf("%w: instance_id=%s", repository.ErrOptimisticLockFailed, instance.InstanceID)
		}
		return domain.Transport("update instance", err)
	}

	instance.Version = next.Version
	instance.UpdatedAt = next.UpdatedAt
	return nil
}
