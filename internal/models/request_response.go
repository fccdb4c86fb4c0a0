package models

// Request models
type OpenDraftRequest struct {
	Kind TransactionKind `json:"kind" binding:"required,oneof=receipt delivery"`
	// RecordID selects the receipt or delivery being edited; zero opens a new one
	RecordID int64 `json:"recordId"`
	// ReceiptID is the source receipt of a new delivery
	ReceiptID int64             `json:"receiptId"`
	Header    TransactionHeader `json:"header"`
}

type RegisterDiametersRequest struct {
	Diameters string `json:"diameters" binding:"required"`
}

type DetailInput struct {
	Dia    int    `json:"dia" binding:"required,gt=0"`
	Rolls  int    `json:"rolls" binding:"gte=0"`
	Weight string `json:"weight"`
}

type AddItemRequest struct {
	ColorID int           `json:"colorId" binding:"gte=0"`
	Details []DetailInput `json:"details" binding:"dive"`
}

type SetColorRequest struct {
	ColorID int `json:"colorId" binding:"gte=0"`
}

type UpdateDetailRequest struct {
	ColorID int     `json:"colorId" binding:"gte=0"`
	Dia     int     `json:"dia" binding:"required,gt=0"`
	Rolls   *int    `json:"rolls"`
	Weight  *string `json:"weight"`
}

type RemoveItemQuery struct {
	ColorID int `form:"colorId" binding:"gte=0"`
	Dia     int `form:"dia" binding:"required,gt=0"`
}

type UpdateHeaderRequest struct {
	Header TransactionHeader `json:"header"`
}

// Response models
type CellResponse struct {
	Dia     int    `json:"dia"`
	Rolls   int    `json:"rolls"`
	Weight  string `json:"weight"`
	Present bool   `json:"present"`
}

type RowResponse struct {
	Index   int            `json:"index"`
	ColorID int            `json:"colorId"`
	Cells   []CellResponse `json:"cells"`
	Rolls   int            `json:"totalRolls"`
	Weight  string         `json:"totalWeight"`
}

type SummaryResponse struct {
	TotalRolls  int    `json:"totalRolls"`
	TotalWeight string `json:"totalWeight"`
}

type DraftResponse struct {
	Status    string            `json:"status"`
	DraftID   string            `json:"draftId"`
	Kind      TransactionKind   `json:"kind"`
	RecordID  int64             `json:"recordId,omitempty"`
	ReceiptID int64             `json:"receiptId,omitempty"`
	Header    TransactionHeader `json:"header"`
	Bounded   bool              `json:"bounded"`
	Diameters []int             `json:"diameters"`
	Rows      []RowResponse     `json:"rows"`
	Summary   SummaryResponse   `json:"summary"`
}

type ReferenceListResponse struct {
	Status string      `json:"status"`
	Kind   string      `json:"kind"`
	Items  []Reference `json:"items"`
}

type SubmitResponse struct {
	Status   string          `json:"status"`
	Kind     TransactionKind `json:"kind"`
	RecordID int64           `json:"recordId"`
	Lines    int             `json:"lines"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
