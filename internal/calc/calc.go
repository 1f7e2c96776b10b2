// Package calc содержит чистые функции расчёта стоимости заказа и первоначального взноса.
package calc

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/agrocredit-system/internal/model"
)

// DefaultUpfrontFraction — доля стоимости заказа, вносимая при оформлении.
const DefaultUpfrontFraction = "0.5"

// DownPaymentMismatchError возвращается, когда предложенный первоначальный
// взнос не равен требуемой сумме в точности. Частичный первоначальный взнос
// при оформлении заказа не принимается.
type DownPaymentMismatchError struct {
	Required decimal.Decimal
}

func (e *DownPaymentMismatchError) Error() string {
	return fmt.Sprintf("down payment must equal exactly the required amount (%s)", e.Required.StringFixed(2))
}

// Calculator выполняет денежные расчёты по заказу. Все суммы — decimal,
// двоичные числа с плавающей точкой для денег не используются.
type Calculator struct {
	upfrontFraction decimal.Decimal
}

// NewCalculator создаёт калькулятор с указанной долей первоначального взноса.
func NewCalculator(upfrontFraction decimal.Decimal) *Calculator {
	return &Calculator{upfrontFraction: upfrontFraction}
}

// Total возвращает полную стоимость заказа: сумму quantity × pricePerUnit по всем позициям.
// Пустой список даёт ноль. Значения позиций не валидируются, это забота вызывающего.
func (c *Calculator) Total(items []model.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Quantity.Mul(it.PricePerUnit))
	}
	return total
}

// RequiredDownPayment возвращает требуемый первоначальный взнос,
// округлённый до двух знаков.
func (c *Calculator) RequiredDownPayment(total decimal.Decimal) decimal.Decimal {
	return total.Mul(c.upfrontFraction).Round(2)
}

// RemainingAfterUpfront возвращает остаток долга после первоначального взноса.
func (c *Calculator) RemainingAfterUpfront(total, required decimal.Decimal) decimal.Decimal {
	return total.Sub(required)
}

// ValidateDownPayment проверяет, что полученный первоначальный взнос в точности
// равен требуемому. При расхождении возвращает DownPaymentMismatchError с требуемой суммой.
func (c *Calculator) ValidateDownPayment(total, received decimal.Decimal) error {
	required := c.RequiredDownPayment(total)
	if !received.Equal(required) {
		return &DownPaymentMismatchError{Required: required}
	}
	return nil
}
