package service

import (
	"context"

	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

type paymentReader interface {
	PaymentStatistics(ctx context.Context) ([]models.PaymentStatistics, error)
	Outstanding(ctx context.Context) ([]models.OutstandingAttendance, error)
}

// PaymentService reports on course fees.
type PaymentService struct {
	payments paymentReader
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(payments paymentReader) *PaymentService {
	return &PaymentService{payments: payments}
}

// PaymentSummary holds per-method statistics and the totals over both methods.
type PaymentSummary struct {
	Methods    []models.PaymentStatistics `json:"methods"`
	TotalCount int                        `json:"total_count"`
	TotalSum   float64                    `json:"total_sum"`
}

// Statistics aggregates payments of active attendances that are not free of charge.
func (s *PaymentService) Statistics(ctx context.Context) (*PaymentSummary, error) {
	stats, err := s.payments.PaymentStatistics(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment statistics")
	}
	summary := &PaymentSummary{Methods: stats}
	for _, method := range stats {
		summary.TotalCount += method.Count
		summary.TotalSum += method.Sum
	}
	return summary, nil
}

// Outstanding lists active attendances with an unpaid balance.
func (s *PaymentService) Outstanding(ctx context.Context) ([]models.OutstandingAttendance, error) {
	outstanding, err := s.payments.Outstanding(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outstanding payments")
	}
	return outstanding, nil
}
