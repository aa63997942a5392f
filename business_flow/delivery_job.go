package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/queue"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	"github.com/amirphl/sms-gateway-bridge/models"
	"github.com/amirphl/sms-gateway-bridge/repository"
	"github.com/amirphl/sms-gateway-bridge/utils"
)

// JobState is the lifecycle of one delivery
type JobState string

const (
	JobStatePending           JobState = "pending"
	JobStateRunning           JobState = "running"
	JobStateSucceeded         JobState = "succeeded"
	JobStateScheduled         JobState = "scheduled"
	JobStatePermanentlyFailed JobState = "permanently_failed"
)

// RetryPolicy decides whether and when a failed attempt runs again
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy retries three times after 60, 120 and 180 seconds
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: utils.DefaultMaxDeliveryRetries, Backoff: utils.DefaultRetryBackoff}
}

// ShouldRetry reports whether attempt (1-based) may be followed by another one.
// Retryable gateway errors and account store failures qualify.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt > p.MaxRetries {
		return false
	}
	if ge, ok := services.AsGatewayError(err); ok {
		return ge.Retryable()
	}
	return IsAccountFetchFailed(err)
}

// Delay is the wait before the attempt that follows attempt
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.Backoff * time.Duration(attempt)
}

// JobResult describes what one run of the delivery job did
type JobResult struct {
	State     JobState
	Attempt   int
	GatewayID string
	ErrorKind services.GatewayErrorKind
	NextDelay time.Duration
	Err       error
}

// DeliveryJob sends one queued message and applies the retry policy
type DeliveryJob struct {
	resolver   CredentialResolver
	client     services.GatewayClient
	q          queue.Queue
	failedRepo repository.FailedTaskRepository
	policy     RetryPolicy
	logger     *log.Logger
	now        utils.Clock
}

func NewDeliveryJob(
	resolver CredentialResolver,
	client services.GatewayClient,
	q queue.Queue,
	failedRepo repository.FailedTaskRepository,
	policy RetryPolicy,
	logger *log.Logger,
	now utils.Clock,
) *DeliveryJob {
	if policy.Backoff <= 0 {
		policy.Backoff = utils.DefaultRetryBackoff
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = utils.UTCNow
	}
	return &DeliveryJob{
		resolver:   resolver,
		client:     client,
		q:          q,
		failedRepo: failedRepo,
		policy:     policy,
		logger:     logger,
		now:        now,
	}
}

// Run adapts Handle to the worker; only permanent failures are reported as errors
func (j *DeliveryJob) Run(ctx context.Context, task *queue.Task) error {
	res := j.Handle(ctx, task)
	if res.State == JobStatePermanentlyFailed {
		return res.Err
	}
	return nil
}

// Handle performs one delivery attempt
func (j *DeliveryJob) Handle(ctx context.Context, task *queue.Task) JobResult {
	if task == nil || task.Kind != queue.KindDeliverSMS || task.DeliverSMS == nil {
		return j.finish(JobResult{State: JobStatePermanentlyFailed, Err: fmt.Errorf("%w: expected %s", queue.ErrPayloadMissing, queue.KindDeliverSMS)})
	}
	p := task.DeliverSMS
	res := JobResult{State: JobStateRunning, Attempt: task.Attempt}

	creds, err := j.resolver.Resolve(ctx, p.AccountID)
	if err != nil {
		// store failures are retried; missing, unconfigured or undecryptable accounts are not
		res.Err = err
		return j.retryOrFail(ctx, task, res)
	}

	ack, err := j.client.SendMessage(ctx, *creds, toGatewayMessage(*p))
	if err == nil {
		res.State = JobStateSucceeded
		res.GatewayID = ack.ID
		j.logger.Printf("delivery succeeded task_id=%s account_id=%d message_id=%s attempt=%d gateway_id=%s state=%s",
			task.ID, p.AccountID, p.MessageID, task.Attempt, ack.ID, ack.State)
		return j.finish(res)
	}

	res.Err = err
	if ge, ok := services.AsGatewayError(err); ok {
		res.ErrorKind = ge.Kind
	}
	return j.retryOrFail(ctx, task, res)
}

// retryOrFail re-enqueues the task with backoff when the policy allows it and
// records a permanent failure otherwise
func (j *DeliveryJob) retryOrFail(ctx context.Context, task *queue.Task, res JobResult) JobResult {
	p := task.DeliverSMS
	err := res.Err
	if j.policy.ShouldRetry(task.Attempt, err) {
		delay := j.policy.Delay(task.Attempt)
		if qerr := j.q.Enqueue(ctx, task.Retry(), delay); qerr != nil {
			res.State = JobStatePermanentlyFailed
			res.Err = errors.Join(err, fmt.Errorf("retry enqueue: %w", qerr))
			j.fail(ctx, task, res)
			return j.finish(res)
		}
		res.State = JobStateScheduled
		res.NextDelay = delay
		j.logger.Printf("WARNING delivery retry scheduled task_id=%s account_id=%d message_id=%s attempt=%d kind=%s delay=%s err=%v",
			task.ID, p.AccountID, p.MessageID, task.Attempt, res.ErrorKind, delay, err)
		return j.finish(res)
	}

	res.State = JobStatePermanentlyFailed
	j.fail(ctx, task, res)
	return j.finish(res)
}

func (j *DeliveryJob) finish(res JobResult) JobResult {
	deliveryJobsTotal.WithLabelValues(string(res.State)).Inc()
	return res
}

// fail logs the permanent failure with full context and records it in the failed task ledger
func (j *DeliveryJob) fail(ctx context.Context, task *queue.Task, res JobResult) {
	p := task.DeliverSMS
	masked := make([]string, 0, len(p.Recipients))
	for _, r := range p.Recipients {
		masked = append(masked, utils.MaskPhone(r))
	}
	j.logger.Printf("CRITICAL delivery permanently failed task_id=%s account_id=%d message_id=%s attempt=%d kind=%s recipients=%v message_length=%d err=%v",
		task.ID, p.AccountID, p.MessageID, task.Attempt, res.ErrorKind, masked, len([]rune(p.Message)), res.Err)

	if j.failedRepo == nil {
		return
	}

	errorKind := string(res.ErrorKind)
	var be *BusinessError
	if errorKind == "" && errors.As(res.Err, &be) {
		errorKind = be.Code
	}

	payload, _ := json.Marshal(task)
	row := &models.FailedTask{
		TaskID:     task.ID,
		Kind:       string(task.Kind),
		AccountID:  p.AccountID,
		MessageID:  p.MessageID,
		Recipients: models.PhoneNumbers(p.Recipients),
		Attempts:   task.Attempt,
		ErrorKind:  errorKind,
		Error:      errorString(res.Err),
		Payload:    string(payload),
		FailedAt:   j.now(),
	}
	if err := j.failedRepo.Save(context.WithoutCancel(ctx), row); err != nil {
		j.logger.Printf("ERROR failed to record failed task task_id=%s err=%v", task.ID, err)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
