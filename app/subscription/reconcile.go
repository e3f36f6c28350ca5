package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

// Reconciler receives payment events that were verified but not applied,
// so an operator can fix the account by hand.
type Reconciler interface {
	Report(ctx context.Context, ev models.FailedPaymentEvent) error
}

// LogReconciler writes failed events to the error log.
type LogReconciler struct {
	logger zerolog.Logger
}

func NewLogReconciler() *LogReconciler {
	return &LogReconciler{logger: logging.Component("reconcile")}
}

func (r *LogReconciler) Report(_ context.Context, ev models.FailedPaymentEvent) error {
	r.logger.Error().
		Str("event_id", ev.EventID).
		Str("event_type", ev.EventType).
		Str("account_id", ev.AccountID).
		Str("plan", ev.PlanName).
		Str("price", ev.Price).
		Str("reason", ev.Reason).
		Msg("payment event needs reconciliation")
	return nil
}

// SQSAPI is the part of the SQS client used for reconciliation.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSReconciler queues failed events as JSON messages.
type SQSReconciler struct {
	client   SQSAPI
	queueURL string
}

func NewSQSReconciler(client SQSAPI, queueURL string) *SQSReconciler {
	return &SQSReconciler{client: client, queueURL: queueURL}
}

// NewSQSReconcilerFromEnv loads AWS credentials from the default chain.
func NewSQSReconcilerFromEnv(ctx context.Context, queueURL string) (*SQSReconciler, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SQS: %w", err)
	}
	return NewSQSReconciler(sqs.NewFromConfig(awsCfg), queueURL), nil
}

func (r *SQSReconciler) Report(ctx context.Context, ev models.FailedPaymentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal failed event: %w", err)
	}
	_, err = r.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(r.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send reconciliation message: %w", err)
	}
	return nil
}

// MultiReconciler reports to every sink and joins their errors.
type MultiReconciler []Reconciler

func (m MultiReconciler) Report(ctx context.Context, ev models.FailedPaymentEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
