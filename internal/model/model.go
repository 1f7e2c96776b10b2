// Package model содержит доменные сущности сервиса агрокредитования.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// Valid проверяет, что роль принадлежит множеству допустимых значений.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Profile представляет профиль зарегистрированного пользователя.
type Profile struct {
	ID          uuid.UUID
	Role        Role
	FullName    string
	PhoneNumber *string
	NationalID  *string
	CreatedAt   time.Time
}

// Farmer описывает фермера в реестре агента. Фермер может не иметь
// собственной учётной записи, тогда UserID пуст.
type Farmer struct {
	ID            uuid.UUID
	UserID        *uuid.UUID
	FullName      string
	PhoneNumber   string
	NationalID    string
	IsRegistered  bool
	LinkedAgentID *uuid.UUID
	CreatedAt     time.Time
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusRejected OrderStatus = "rejected"
)

// OrderItem описывает одну позицию заказа.
type OrderItem struct {
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// Order описывает заказ на удобрения с кредитной схемой оплаты:
// фиксированная доля стоимости вносится сразу, остаток гасится по графику взносов.
type Order struct {
	ID                  uuid.UUID
	FarmerID            uuid.UUID
	AgentID             *uuid.UUID
	TotalCost           decimal.Decimal
	DownPaymentRequired decimal.Decimal
	DownPaymentReceived decimal.Decimal
	RemainingBalance    decimal.Decimal
	Status              OrderStatus
	Items               []OrderItem
	ApprovedBy          *uuid.UUID
	ApprovedAt          *time.Time
	ApprovalComment     *string
	CreatedAt           time.Time
}

// PaymentType описывает тип платежа по заказу.
type PaymentType string

const (
	PaymentTypeDownPayment PaymentType = "down_payment"
	PaymentTypeInstallment PaymentType = "installment"
)

// Valid проверяет, что тип платежа принадлежит множеству допустимых значений.
func (p PaymentType) Valid() bool {
	return p == PaymentTypeDownPayment || p == PaymentTypeInstallment
}

// Payment представляет неизменяемую запись о полученных средствах.
// Платёж никогда не редактируется и не удаляется: исправления вносятся
// новым платежом, а не правкой истории.
type Payment struct {
	ID                  uuid.UUID
	OrderID             uuid.UUID
	FarmerID            uuid.UUID
	Amount              decimal.Decimal
	PaymentType         PaymentType
	RecordedBy          uuid.UUID
	RepaymentScheduleID *uuid.UUID
	CreatedAt           time.Time
}

// RepaymentStatus описывает статус погашения одного взноса графика.
type RepaymentStatus string

const (
	RepaymentStatusPending RepaymentStatus = "pending"
	RepaymentStatusPartial RepaymentStatus = "partial"
	RepaymentStatusPaid    RepaymentStatus = "paid"
)

// RepaymentSchedule описывает один плановый взнос по заказу.
type RepaymentSchedule struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	FarmerID          uuid.UUID
	InstallmentNumber int
	DueDate           time.Time
	AmountDue         decimal.Decimal
	AmountPaid        decimal.Decimal
	Status            RepaymentStatus
	CreatedAt         time.Time
}

// Decision описывает решение администратора по заказу.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid проверяет, что решение принадлежит множеству допустимых значений.
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}
