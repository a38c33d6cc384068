package services

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"

	"mandi-price-api/internal/models"
)

// Summary runs GetCropPrices and reduces the result to per-crop modal price statistics.
func (s *PriceService) Summary(ctx context.Context, q models.PriceQuery) (*models.SummaryResponse, error) {
	resp, err := s.GetCropPrices(ctx, q)
	if err != nil {
		return nil, err
	}

	crops, err := Summarize(resp.Data)
	if err != nil {
		return nil, &models.OrchestrationError{Message: "failed to summarise prices", Err: err}
	}

	return &models.SummaryResponse{
		Success:   resp.Success,
		State:     resp.State,
		District:  resp.District,
		CropName:  resp.CropName,
		Crops:     crops,
		FetchedAt: resp.FetchedAt,
		Message:   resp.Message,
	}, nil
}

// Summarize groups records by crop, in first-seen order, and computes modal
// price spread across markets.
func Summarize(records []models.PriceRecord) ([]models.CropSummary, error) {
	type group struct {
		unit   string
		modals stats.Float64Data
	}

	var order []string
	groups := make(map[string]*group)
	for _, rec := range records {
		g, ok := groups[rec.CropName]
		if !ok {
			g = &group{unit: rec.Unit}
			groups[rec.CropName] = g
			order = append(order, rec.CropName)
		}
		g.modals = append(g.modals, rec.ModalPrice)
	}

	summaries := make([]models.CropSummary, 0, len(order))
	for _, crop := range order {
		g := groups[crop]

		minModal, err := g.modals.Min()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", crop, err)
		}
		maxModal, err := g.modals.Max()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", crop, err)
		}
		mean, err := g.modals.Mean()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", crop, err)
		}
		median, err := g.modals.Median()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", crop, err)
		}
		mean, _ = stats.Round(mean, 2)
		median, _ = stats.Round(median, 2)

		summaries = append(summaries, models.CropSummary{
			CropName:    crop,
			Markets:     len(g.modals),
			MinModal:    minModal,
			MaxModal:    maxModal,
			MeanModal:   mean,
			MedianModal: median,
			Unit:        g.unit,
		})
	}
	return summaries, nil
}
