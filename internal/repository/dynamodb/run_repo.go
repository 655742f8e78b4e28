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

// Client is the subset of the DynamoDB API the repositories use.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type Tables struct {
	Runs      string
	Mappings  string
	Instances string
}

type runRepository struct {
	client Client
	tables Tables
	logger logger.Logger
}

// NewRunRepository creates the DynamoDB run store. Runs are keyed by run_id,
// mappings by idempotency_key.
func NewRunRepository(client Client, tables Tables, log logger.Logger) repository.RunRepository {
	return &runRepository{
		client: client,
		tables: tables,
		logger: log.With(logger.String("component", "run_repository")),
	}
}

func (r *runRepository) CreateRunIfAbsent(ctx context.Context, key string, run *domain.Run) (*domain.Run, bool, error) {
	if existing, err := r.lookup(ctx, key); err == nil {
		return existing, false, nil
	} else if !repository.IsNotFoundError(err) {
		return nil, false, err
	}

	runItem, err := attributevalue.MarshalMap(run)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal run: %w", err)
	}
	mappingItem, err := attributevalue.MarshalMap(domain.IdempotencyMapping{
		Key:       key,
		RunID:     run.RunID,
		CreatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal idempotency mapping: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tables.Mappings),
				Item:                mappingItem,
				ConditionExpression: aws.String("attribute_not_exists(idempotency_key)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tables.Runs),
				Item:                runItem,
				ConditionExpression: aws.String("attribute_not_exists(run_id)"),
			}},
		},
	})
	if err != nil {
		if cancelledByCondition(err) {
			r.logger.Info("lost idempotency race, reading winner",
				logger.String("run_id", run.RunID))
			existing, lookupErr := r.lookup(ctx, key)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, false, nil
		}
		r.logger.Error("failed to create run", logger.String("run_id", run.RunID), logger.Error(err))
		return nil, false, domain.Transport("create run", err)
	}

	r.logger.Info("run created", logger.String("run_id", run.RunID))
	return run, true, nil
}

func (r *runRepository) lookup(ctx context.Context, key string) (*domain.Run, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tables.Mappings),
		Key:            map[string]types.AttributeValue{"idempotency_key": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, domain.Transport("get idempotency mapping", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: idempotency key", domain.ErrNotFound)
	}

	var mapping domain.IdempotencyMapping
	if err := attributevalue.UnmarshalMap(out.Item, &mapping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency mapping: %w", err)
	}
	return r.Get(ctx, mapping.RunID)
}

func (r *runRepository) Get(ctx context.Context, runID string) (*domain.Run, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tables.Runs),
		Key:            runKey(runID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.Error("failed to get run", logger.String("run_id", runID), logger.Error(err))
		return nil, domain.Transport("get run", err)
	}
	if len(out.Item) == 0 {
		return nil, repository.RunNotFound(runID)
	}

	var run domain.Run
	if err := attributevalue.UnmarshalMap(out.Item, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func (r *runRepository) MarkRunning(ctx context.Context, runID string) (*domain.Run, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tables.Runs),
		Key:                      runKey(runID),
		UpdateExpression:         aws.String("SET #status = :running, updated_at = :now"),
		ConditionExpression:      aws.String("#status = :queued"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":running": &types.AttributeValueMemberS{Value: string(domain.RunStatusRunning)},
			":queued":  &types.AttributeValueMemberS{Value: string(domain.RunStatusQueued)},
			":now":     numberValue(time.Now().UnixMilli()),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if !isConditionFailure(err) {
			return nil, domain.Transport("mark run running", err)
		}
		current, getErr := r.Get(ctx, runID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status.IsTerminal() {
			return current, repository.ErrAlreadyTerminal
		}
		return current, nil
	}

	var run domain.Run
	if err := attributevalue.UnmarshalMap(out.Attributes, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func (r *runRepository) UpdateTerminal(ctx context.Context, runID string, outcome domain.TerminalOutcome) (*domain.Run, error) {
	if err := outcome.Validate(); err != nil {
		return nil, err
	}

	values := map[string]types.AttributeValue{
		":status":  &types.AttributeValueMemberS{Value: string(outcome.Status)},
		":running": &types.AttributeValueMemberS{Value: string(domain.RunStatusRunning)},
		":now":     numberValue(time.Now().UnixMilli()),
	}
	update := "SET #status = :status, updated_at = :now"
	if outcome.Status == domain.RunStatusSucceeded {
		output, err := attributevalue.MarshalMap(outcome.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output: %w", err)
		}
		values[":output"] = &types.AttributeValueMemberM{Value: output}
		update += ", output_payload = :output"
	} else {
		values[":code"] = &types.AttributeValueMemberS{Value: outcome.ErrorCode}
		values[":msg"] = &types.AttributeValueMemberS{Value: outcome.ErrorMsg}
		update += ", error_code = :code, error_msg = :msg"
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tables.Runs),
		Key:                       runKey(runID),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("#status = :running"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if !isConditionFailure(err) {
			r.logger.Error("failed to update run", logger.String("run_id", runID), logger.Error(err))
			return nil, domain.Transport("update terminal", err)
		}
		current, getErr := r.Get(ctx, runID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status.IsTerminal() {
			return current, repository.ErrAlreadyTerminal
		}
		return nil, domain.ValidateTransition(current.Status, outcome.Status)
	}

	var run domain.Run
	if err := attributevalue.UnmarshalMap(out.Attributes, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

func runKey(runID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"run_id": &types.AttributeValueMemberS{Value: runID}}
}

func numberValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)}
}
