package models

// PermissionReport is the camera collaborator's answer to a permission
// request, pushed over HTTP.
type PermissionReport struct {
	Granted bool `json:"granted"`
}

// SelectTargetRequest names the stock line the next intent targets, whether
// it came from the scanner or the manual product picker.
type SelectTargetRequest struct {
	StockLineID string `json:"stockLineId"`
}

// MutationFormRequest carries partial mutation-form edits. Nil fields are
// left untouched so the UI can patch one field at a time.
type MutationFormRequest struct {
	Action   *string `json:"action,omitempty"`
	Quantity *string `json:"quantity,omitempty"`
	Reason   *string `json:"reason,omitempty"`
}
