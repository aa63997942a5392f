package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/queue"
	"github.com/amirphl/sms-gateway-bridge/models"
	"github.com/amirphl/sms-gateway-bridge/repository"
	"github.com/amirphl/sms-gateway-bridge/utils"
)

// IncomingSMSJob persists a verified inbound message. Failures are logged and
// swallowed; the task is never retried.
type IncomingSMSJob struct {
	accountRepo  repository.AccountRepository
	incomingRepo repository.IncomingSMSRepository
	logger       *log.Logger
	now          utils.Clock
}

func NewIncomingSMSJob(accountRepo repository.AccountRepository, incomingRepo repository.IncomingSMSRepository, logger *log.Logger, now utils.Clock) *IncomingSMSJob {
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = utils.UTCNow
	}
	return &IncomingSMSJob{
		accountRepo:  accountRepo,
		incomingRepo: incomingRepo,
		logger:       logger,
		now:          now,
	}
}

// Run always returns nil
func (j *IncomingSMSJob) Run(ctx context.Context, task *queue.Task) error {
	j.Handle(ctx, task)
	return nil
}

// Handle stores the message and returns the saved row, or nil when nothing was stored
func (j *IncomingSMSJob) Handle(ctx context.Context, task *queue.Task) *models.IncomingSMS {
	if task == nil || task.ProcessIncomingSMS == nil {
		j.logger.Printf("ERROR incoming sms task without payload")
		incomingSMSTotal.WithLabelValues("invalid").Inc()
		return nil
	}
	in := task.ProcessIncomingSMS

	var p dto.IncomingSMSPayload
	if err := json.Unmarshal(in.Payload, &p); err != nil {
		j.logger.Printf("ERROR incoming sms payload undecodable task_id=%s err=%v", task.ID, err)
		incomingSMSTotal.WithLabelValues("invalid").Inc()
		return nil
	}
	if p.PhoneNumber == "" || p.Message == "" {
		j.logger.Printf("ERROR incoming sms missing sender or message task_id=%s", task.ID)
		incomingSMSTotal.WithLabelValues("invalid").Inc()
		return nil
	}

	j.logger.Printf("processing incoming sms task_id=%s sender=%s sim=%v received_at=%s gateway_msg_id=%s",
		task.ID, utils.MaskPhone(p.PhoneNumber), utils.Deref(p.SimNumber), p.ReceivedAt, p.MessageID)

	row := &models.IncomingSMS{
		Sender:     p.PhoneNumber,
		Body:       p.Message,
		ReceivedAt: j.receivedAt(p.ReceivedAt),
		SimSlot:    p.SimNumber,
		RawPayload: string(in.Payload),
	}
	if p.MessageID != "" {
		row.GatewayMessageID = utils.ToPtr(p.MessageID)
	}
	if in.DeviceID != "" {
		row.DeviceID = utils.ToPtr(in.DeviceID)
		account, err := j.accountRepo.ByGatewayUsername(ctx, in.DeviceID)
		if err != nil {
			j.logger.Printf("WARNING incoming sms account lookup failed device_id=%s err=%v", in.DeviceID, err)
		} else if account != nil {
			row.AccountID = utils.ToPtr(account.ID)
		}
	}

	if err := j.incomingRepo.Save(ctx, row); err != nil {
		j.logger.Printf("ERROR incoming sms save failed task_id=%s sender=%s gateway_msg_id=%s err=%v",
			task.ID, utils.MaskPhone(p.PhoneNumber), p.MessageID, err)
		incomingSMSTotal.WithLabelValues("error").Inc()
		return nil
	}

	incomingSMSTotal.WithLabelValues("stored").Inc()
	return row
}

func (j *IncomingSMSJob) receivedAt(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t.UTC()
		}
		j.logger.Printf("WARNING incoming sms unparsable receivedAt=%q, using now", raw)
	}
	return j.now()
}
