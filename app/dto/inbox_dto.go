package dto

// ListIncomingSMSRequest is a paginated inbox query
type ListIncomingSMSRequest struct {
	Page   int     `query:"page" validate:"omitempty,min=1"`
	Limit  int     `query:"limit" validate:"omitempty,min=1,max=100"`
	Sender *string `query:"sender" validate:"omitempty,max=32"`
}

// IncomingSMSItem is one received message
type IncomingSMSItem struct {
	ID               uint    `json:"id"`
	Sender           string  `json:"sender"`
	Body             string  `json:"body"`
	ReceivedAt       string  `json:"received_at"`
	SimSlot          *int    `json:"sim_slot,omitempty"`
	GatewayMessageID *string `json:"gateway_message_id,omitempty"`
	DeviceID         *string `json:"device_id,omitempty"`
}

// ListIncomingSMSResponse is a page of the account inbox
type ListIncomingSMSResponse struct {
	Message    string            `json:"message"`
	Items      []IncomingSMSItem `json:"items"`
	Pagination PaginationInfo    `json:"pagination"`
}

// ExportIncomingSMSResponse holds a generated spreadsheet
type ExportIncomingSMSResponse struct {
	Filename string
	Content  []byte
}
