package businessflow

import (
	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/services"
)

// ClientMetadata holds request information used in audit logs
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) String() string {
	if cm == nil {
		return "-"
	}
	return "ip=" + cm.IPAddress + " request_id=" + cm.RequestID
}

// toRecipientDTOs maps the gateway per-recipient states
func toRecipientDTOs(in []services.GatewayRecipientState) []dto.RecipientStateDTO {
	if len(in) == 0 {
		return nil
	}
	out := make([]dto.RecipientStateDTO, 0, len(in))
	for _, r := range in {
		out = append(out, dto.RecipientStateDTO{PhoneNumber: r.PhoneNumber, State: r.State, Error: r.Error})
	}
	return out
}
