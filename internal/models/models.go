package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rongwang/fabricstock/internal/ledger"
)

// ReferenceKind names a reference data collection served by the inventory API
type ReferenceKind string

const (
	ReferenceFabrics   ReferenceKind = "fabrics"
	ReferenceColors    ReferenceKind = "colors"
	ReferenceStores    ReferenceKind = "stores"
	ReferenceCompanies ReferenceKind = "companies"
)

// Valid reports whether k is a known reference collection
func (k ReferenceKind) Valid() bool {
	switch k {
	case ReferenceFabrics, ReferenceColors, ReferenceStores, ReferenceCompanies:
		return true
	}
	return false
}

// TransactionKind distinguishes receipts (incoming) from deliveries (outgoing)
type TransactionKind string

const (
	KindReceipt  TransactionKind = "receipt"
	KindDelivery TransactionKind = "delivery"
)

// Valid reports whether k is a known transaction kind
func (k TransactionKind) Valid() bool {
	return k == KindReceipt || k == KindDelivery
}

// Reference is an {id, name} pair for fabrics, colors, stores and companies
type Reference struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// FlexInt decodes from either a JSON number or a numeric string. The
// inventory API is not consistent about which one it sends for ids and
// diameters.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	v, err := parseFlex(data)
	if err != nil {
		return err
	}
	*f = FlexInt(v)
	return nil
}

// FlexID is FlexInt for record ids, which may exceed an int.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	v, err := parseFlex(data)
	if err != nil {
		return err
	}
	*f = FlexID(v)
	return nil
}

func parseFlex(data []byte) (int64, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", string(data))
	}
	return v, nil
}

// TransactionDetail is a flat (color, diameter) quantity line
type TransactionDetail struct {
	ColorID FlexInt         `db:"color_id" json:"color_id"`
	Dia     FlexInt         `db:"dia" json:"dia"`
	Rolls   FlexInt         `db:"rolls" json:"rolls"`
	Weight  decimal.Decimal `db:"weight" json:"weight"`
}

// TransactionHeader holds the master fields of a receipt or delivery
type TransactionHeader struct {
	CompanyID int64  `db:"company_id" json:"company_id"`
	StoreID   int64  `db:"store_id" json:"store_id"`
	FabricID  int64  `db:"fabric_id" json:"fabric_id"`
	ReceiptID int64  `db:"receipt_id" json:"receipt_id,omitempty"` // deliveries only
	Number    string `db:"number" json:"number"`
	Date      string `db:"date" json:"date"`
	Remarks   string `db:"remarks" json:"remarks"`
}

// Transaction is a receipt or delivery with its detail lines
type Transaction struct {
	ID        int64           `db:"id" json:"id"`
	Kind      TransactionKind `db:"-" json:"-"`
	TransactionHeader
	Details   []TransactionDetail `db:"-" json:"details"`
	CreatedAt time.Time           `db:"created_at" json:"-"`
	UpdatedAt time.Time           `db:"updated_at" json:"-"`
}

// UnmarshalJSON accepts the record id and the header ids as numbers or
// numeric strings.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var wire struct {
		plain
		ID        FlexID `json:"id"`
		CompanyID FlexID `json:"company_id"`
		StoreID   FlexID `json:"store_id"`
		FabricID  FlexID `json:"fabric_id"`
		ReceiptID FlexID `json:"receipt_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*t = Transaction(wire.plain)
	t.ID = int64(wire.ID)
	t.CompanyID = int64(wire.CompanyID)
	t.StoreID = int64(wire.StoreID)
	t.FabricID = int64(wire.FabricID)
	t.ReceiptID = int64(wire.ReceiptID)
	return nil
}

// ToFlat converts wire details to the ledger's flat shape
func ToFlat(details []TransactionDetail) []ledger.FlatDetail {
	out := make([]ledger.FlatDetail, 0, len(details))
	for _, d := range details {
		out = append(out, ledger.FlatDetail{
			ColorID: int(d.ColorID),
			Dia:     int(d.Dia),
			Rolls:   int(d.Rolls),
			Weight:  d.Weight,
		})
	}
	return out
}

// FromFlat converts ledger cells to wire details
func FromFlat(flat []ledger.FlatDetail) []TransactionDetail {
	out := make([]TransactionDetail, 0, len(flat))
	for _, fd := range flat {
		out = append(out, TransactionDetail{
			ColorID: FlexInt(fd.ColorID),
			Dia:     FlexInt(fd.Dia),
			Rolls:   FlexInt(fd.Rolls),
			Weight:  fd.Weight.Round(2),
		})
	}
	return out
}
