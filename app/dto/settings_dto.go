package dto

// UpdateGatewaySettingsRequest sets all three gateway fields, or clears them when all are empty
type UpdateGatewaySettingsRequest struct {
	BaseURL  *string `json:"base_url,omitempty" validate:"omitempty,max=2048"`
	Username *string `json:"username,omitempty" validate:"omitempty,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,max=255"`
}

// GatewaySettingsResponse never includes the password
type GatewaySettingsResponse struct {
	Message    string  `json:"message"`
	BaseURL    *string `json:"base_url,omitempty"`
	Username   *string `json:"username,omitempty"`
	Configured bool    `json:"configured"`
	UpdatedAt  string  `json:"updated_at"`
}
