// Package schedule строит график погашения остатка долга равными взносами.
package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/agrocredit-system/internal/model"
)

// ErrInvalidInstallmentCount возвращается, если число взносов меньше единицы.
var ErrInvalidInstallmentCount = errors.New("installment count must be positive")

// Build разбивает остаток долга на installmentCount равных взносов с шагом
// periodDays от startDate. Каждый взнос округляется до двух знаков, а разница
// округления относится на последний взнос, поэтому сумма всех amount_due
// в точности равна remainingBalance. Момент времени передаётся параметром
// startDate, глобальные часы не читаются.
func Build(orderID, farmerID uuid.UUID, remainingBalance decimal.Decimal, installmentCount int, periodDays int, startDate time.Time) ([]model.RepaymentSchedule, error) {
	if installmentCount < 1 {
		return nil, ErrInvalidInstallmentCount
	}

	perInstallment := remainingBalance.Div(decimal.NewFromInt(int64(installmentCount))).Round(2)

	schedules := make([]model.RepaymentSchedule, 0, installmentCount)
	allocated := decimal.Zero

	for i := 1; i <= installmentCount; i++ {
		amountDue := perInstallment
		if i == installmentCount {
			amountDue = remainingBalance.Sub(allocated)
		}
		allocated = allocated.Add(amountDue)

		schedules = append(schedules, model.RepaymentSchedule{
			OrderID:           orderID,
			FarmerID:          farmerID,
			InstallmentNumber: i,
			DueDate:           startDate.AddDate(0, 0, periodDays*i),
			AmountDue:         amountDue,
			AmountPaid:        decimal.Zero,
			Status:            model.RepaymentStatusPending,
		})
	}

	return schedules, nil
}

// DeriveStatus выводит статус взноса из соотношения оплаченной и причитающейся
// сумм. Это единственное место, где статус вычисляется: все пути записи обязаны
// пользоваться этой функцией, а не дублировать правило.
// Переплата допускается: взнос просто помечается paid с amount_paid > amount_due.
func DeriveStatus(amountPaid, amountDue decimal.Decimal, current model.RepaymentStatus) model.RepaymentStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return model.RepaymentStatusPaid
	case amountPaid.GreaterThan(decimal.Zero):
		return model.RepaymentStatusPartial
	default:
		return current
	}
}
