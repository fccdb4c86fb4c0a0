package api

import (
	"github.com/rongwang/fabricstock/internal/ledger"
	"github.com/rongwang/fabricstock/internal/models"
	"github.com/rongwang/fabricstock/internal/service"
)

func toDraftResponse(view *service.DraftView) models.DraftResponse {
	rows := make([]models.RowResponse, 0, len(view.Grid.Rows))
	for _, r := range view.Grid.Rows {
		cells := make([]models.CellResponse, 0, len(r.Cells))
		for _, cell := range r.Cells {
			cells = append(cells, models.CellResponse{
				Dia:     cell.Dia,
				Rolls:   cell.Rolls,
				Weight:  ledger.FormatWeight(cell.Weight),
				Present: cell.Present,
			})
		}
		rows = append(rows, models.RowResponse{
			Index:   r.Index,
			ColorID: r.ColorID,
			Cells:   cells,
			Rolls:   r.Subtotal.Rolls,
			Weight:  ledger.FormatWeight(r.Subtotal.Weight),
		})
	}

	return models.DraftResponse{
		Status:    "success",
		DraftID:   view.ID,
		Kind:      view.Kind,
		RecordID:  view.RecordID,
		ReceiptID: view.ReceiptID,
		Header:    view.Header,
		Bounded:   view.Bounded,
		Diameters: view.Grid.Diameters,
		Rows:      rows,
		Summary:   toSummaryResponse(view.Grid.Summary),
	}
}

func toSummaryResponse(s ledger.Summary) models.SummaryResponse {
	return models.SummaryResponse{
		TotalRolls:  s.TotalRolls,
		TotalWeight: ledger.FormatWeight(s.TotalWeight),
	}
}

func toLineItem(req models.AddItemRequest) (ledger.LineItem, error) {
	item := ledger.LineItem{ColorID: req.ColorID, Details: make([]ledger.Detail, 0, len(req.Details))}
	for _, d := range req.Details {
		weight, err := ledger.ParseWeight(d.Weight)
		if err != nil {
			return ledger.LineItem{}, err
		}
		item.Details = append(item.Details, ledger.Detail{Dia: d.Dia, Rolls: d.Rolls, Weight: weight})
	}
	return item, nil
}

func toDetailUpdate(req models.UpdateDetailRequest) (ledger.DetailUpdate, error) {
	u := ledger.DetailUpdate{Rolls: req.Rolls}
	if req.Weight != nil {
		weight, err := ledger.ParseWeight(*req.Weight)
		if err != nil {
			return ledger.DetailUpdate{}, err
		}
		u.Weight = &weight
	}
	return u, nil
}
