package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/models"
	"github.com/amirphl/sms-gateway-bridge/repository"
	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/xuri/excelize/v2"
)

const (
	defaultInboxPageSize = 20
	maxInboxPageSize     = 100
	maxInboxExportRows   = 10000
	inboxSheetName       = "incoming_sms"
)

// InboxFlow lists and exports the messages received for an account
type InboxFlow interface {
	ListIncoming(ctx context.Context, accountID uint, req *dto.ListIncomingSMSRequest) (*dto.ListIncomingSMSResponse, error)
	ExportIncoming(ctx context.Context, accountID uint, sender *string) (*dto.ExportIncomingSMSResponse, error)
}

type InboxFlowImpl struct {
	incomingRepo repository.IncomingSMSRepository
}

func NewInboxFlow(incomingRepo repository.IncomingSMSRepository) InboxFlow {
	return &InboxFlowImpl{incomingRepo: incomingRepo}
}

func (f *InboxFlowImpl) ListIncoming(ctx context.Context, accountID uint, req *dto.ListIncomingSMSRequest) (*dto.ListIncomingSMSResponse, error) {
	if req == nil {
		req = &dto.ListIncomingSMSRequest{}
	}
	page := req.Page
	if page == 0 {
		page = 1
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultInboxPageSize
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	if limit < 1 || limit > maxInboxPageSize {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter := inboxFilter(accountID, req.Sender)
	total, err := f.incomingRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("INBOX_FETCH_FAILED", "Failed to count incoming messages", err)
	}

	rows, err := f.incomingRepo.ByFilter(ctx, filter, "received_at DESC, id DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("INBOX_FETCH_FAILED", "Failed to fetch incoming messages", err)
	}

	items := make([]dto.IncomingSMSItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, dto.IncomingSMSItem{
			ID:               r.ID,
			Sender:           r.Sender,
			Body:             r.Body,
			ReceivedAt:       r.ReceivedAt.UTC().Format(time.RFC3339),
			SimSlot:          r.SimSlot,
			GatewayMessageID: r.GatewayMessageID,
			DeviceID:         r.DeviceID,
		})
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &dto.ListIncomingSMSResponse{
		Message: "Incoming messages retrieved",
		Items:   items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}

// ExportIncoming writes the newest messages of the account into a single-sheet workbook
func (f *InboxFlowImpl) ExportIncoming(ctx context.Context, accountID uint, sender *string) (*dto.ExportIncomingSMSResponse, error) {
	rows, err := f.incomingRepo.ByFilter(ctx, inboxFilter(accountID, sender), "received_at DESC, id DESC", maxInboxExportRows, 0)
	if err != nil {
		return nil, NewBusinessError("INBOX_FETCH_FAILED", "Failed to fetch incoming messages", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), inboxSheetName); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	header := []string{"sender", "body", "received_at", "sim_slot", "gateway_message_id"}
	_ = xl.SetSheetRow(inboxSheetName, "A1", &header)

	for i, r := range rows {
		simSlot := ""
		if r.SimSlot != nil {
			simSlot = strconv.Itoa(*r.SimSlot)
		}
		record := []string{
			r.Sender,
			r.Body,
			r.ReceivedAt.UTC().Format(time.RFC3339),
			simSlot,
			utils.Deref(r.GatewayMessageID),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(inboxSheetName, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	return &dto.ExportIncomingSMSResponse{
		Filename: fmt.Sprintf("incoming_sms_%d_%s.xlsx", accountID, utils.UTCNow().Format("20060102")),
		Content:  buf.Bytes(),
	}, nil
}

func inboxFilter(accountID uint, sender *string) models.IncomingSMSFilter {
	filter := models.IncomingSMSFilter{AccountID: utils.ToPtr(accountID)}
	if sender != nil && strings.TrimSpace(*sender) != "" {
		filter.Sender = utils.ToPtr(strings.TrimSpace(*sender))
	}
	return filter
}
