// Package service реализует бизнес-логику сервиса агрокредитования.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/agrocredit-system/internal/calc"
	"github.com/mmeshcher/agrocredit-system/internal/model"
	"github.com/mmeshcher/agrocredit-system/internal/schedule"
)

// ErrInvalidAmount возвращается, если сумма платежа не положительна.
var (
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrInvalidPaymentType возвращается при неизвестном типе платежа.
	ErrInvalidPaymentType = errors.New("unknown payment type")
	// ErrInvalidDecision возвращается при неизвестном решении по заказу.
	ErrInvalidDecision = errors.New("unknown decision")
	// ErrInvalidRole возвращается при неизвестной роли пользователя.
	ErrInvalidRole = errors.New("unknown role")
	// ErrTimeout возвращается, если обращение к хранилищу не уложилось в бюджет операции.
	ErrTimeout = errors.New("storage operation timed out")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateProfile(ctx context.Context, p model.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetProfiles(ctx context.Context) ([]model.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	CreateFarmer(ctx context.Context, f model.Farmer) (*model.Farmer, error)
	GetFarmersByAgent(ctx context.Context, agentID uuid.UUID) ([]model.Farmer, error)
	CreateOrder(ctx context.Context, o model.Order, schedules []model.RepaymentSchedule, initialPayment *model.Payment) (*model.Order, []model.RepaymentSchedule, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrders(ctx context.Context) ([]model.Order, error)
	GetOrdersByFarmer(ctx context.Context, farmerID uuid.UUID) ([]model.Order, error)
	GetOrdersByAgent(ctx context.Context, agentID uuid.UUID) ([]model.Order, error)
	GetPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
	GetSchedulesByOrder(ctx context.Context, orderID uuid.UUID) ([]model.RepaymentSchedule, error)
	RecordPayment(ctx context.Context, p model.Payment) (*model.Payment, *model.RepaymentSchedule, *model.Order, error)
	Decide(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, approverID uuid.UUID, decidedAt time.Time, comment *string) (*model.Order, error)
}

// Service содержит бизнес-логику сервиса агрокредитования.
type Service struct {
	repo                  Repository
	calculator            *calc.Calculator
	installmentCount      int
	installmentPeriodDays int
	storageTimeout        time.Duration
	now                   func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и калькулятором заказа.
func NewService(repo Repository, calculator *calc.Calculator, installmentCount, installmentPeriodDays int, storageTimeout time.Duration) *Service {
	return &Service{
		repo:                  repo,
		calculator:            calculator,
		installmentCount:      installmentCount,
		installmentPeriodDays: installmentPeriodDays,
		storageTimeout:        storageTimeout,
		now:                   time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// storageCtx ограничивает обращение к хранилищу бюджетом операции,
// чтобы сбой соединения не приводил к бесконечному ожиданию.
func (s *Service) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storageTimeout)
}

func (s *Service) wrapStorage(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return err
}

// CreateProfile сохраняет профиль пользователя, проверяя корректность роли.
func (s *Service) CreateProfile(ctx context.Context, p model.Profile) error {
	if !p.Role.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, p.Role)
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	if err := s.repo.CreateProfile(ctx, p); err != nil {
		return s.wrapStorage("create profile", err)
	}
	return nil
}

// GetProfile возвращает профиль пользователя по идентификатору.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return nil, s.wrapStorage("get profile", err)
	}
	return p, nil
}

// GetProfiles возвращает все профили пользователей.
func (s *Service) GetProfiles(ctx context.Context) ([]model.Profile, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	profiles, err := s.repo.GetProfiles(ctx)
	if err != nil {
		return nil, s.wrapStorage("get profiles", err)
	}
	return profiles, nil
}

// DeleteProfile удаляет профиль пользователя.
func (s *Service) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	if err := s.repo.DeleteProfile(ctx, id); err != nil {
		return s.wrapStorage("delete profile", err)
	}
	return nil
}

// RegisterFarmer регистрирует фермера в реестре указанного агента.
func (s *Service) RegisterFarmer(ctx context.Context, f model.Farmer) (*model.Farmer, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	created, err := s.repo.CreateFarmer(ctx, f)
	if err != nil {
		return nil, s.wrapStorage("create farmer", err)
	}
	return created, nil
}

// GetFarmersByAgent возвращает фермеров, привязанных к агенту.
func (s *Service) GetFarmersByAgent(ctx context.Context, agentID uuid.UUID) ([]model.Farmer, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	farmers, err := s.repo.GetFarmersByAgent(ctx, agentID)
	if err != nil {
		return nil, s.wrapStorage("get farmers", err)
	}
	return farmers, nil
}

// CreateOrderInput описывает входные данные оформления заказа.
type CreateOrderInput struct {
	FarmerID            uuid.UUID
	AgentID             *uuid.UUID
	Items               []model.OrderItem
	DownPaymentReceived decimal.Decimal
	RecordedBy          uuid.UUID
}

// CreatedOrder содержит результат оформления заказа: сам заказ и график погашения.
type CreatedOrder struct {
	Order     *model.Order
	Schedules []model.RepaymentSchedule
}

// CreateOrder оформляет заказ: рассчитывает стоимость, проверяет первоначальный
// взнос на точное равенство требуемой сумме, строит график погашения остатка
// и сохраняет всё одной транзакцией вместе с платежом первоначального взноса.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error) {
	total := s.calculator.Total(in.Items)

	if err := s.calculator.ValidateDownPayment(total, in.DownPaymentReceived); err != nil {
		return nil, err
	}

	required := s.calculator.RequiredDownPayment(total)
	remaining := s.calculator.RemainingAfterUpfront(total, required)

	order := model.Order{
		ID:                  uuid.New(),
		FarmerID:            in.FarmerID,
		AgentID:             in.AgentID,
		TotalCost:           total,
		DownPaymentRequired: required,
		DownPaymentReceived: in.DownPaymentReceived,
		RemainingBalance:    remaining,
		Status:              model.OrderStatusPending,
		Items:               in.Items,
	}

	// При нулевом остатке график не нужен: взносов с нулевой суммой не бывает.
	var schedules []model.RepaymentSchedule
	if remaining.GreaterThan(decimal.Zero) {
		var err error
		schedules, err = schedule.Build(order.ID, in.FarmerID, remaining, s.installmentCount, s.installmentPeriodDays, s.now())
		if err != nil {
			return nil, err
		}
	}

	var initialPayment *model.Payment
	if in.DownPaymentReceived.GreaterThan(decimal.Zero) {
		initialPayment = &model.Payment{
			OrderID:     order.ID,
			FarmerID:    in.FarmerID,
			Amount:      in.DownPaymentReceived,
			PaymentType: model.PaymentTypeDownPayment,
			RecordedBy:  in.RecordedBy,
		}
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	createdOrder, createdSchedules, err := s.repo.CreateOrder(ctx, order, schedules, initialPayment)
	if err != nil {
		return nil, s.wrapStorage("create order", err)
	}

	return &CreatedOrder{Order: createdOrder, Schedules: createdSchedules}, nil
}

// RecordPaymentInput описывает входные данные проводки платежа.
type RecordPaymentInput struct {
	OrderID             uuid.UUID
	Amount              decimal.Decimal
	PaymentType         model.PaymentType
	RecordedBy          uuid.UUID
	RepaymentScheduleID *uuid.UUID
}

// RecordedPayment содержит результат проводки платежа: сам платёж и обновлённые
// взнос графика (если платёж был привязан) и заказ.
type RecordedPayment struct {
	Payment  *model.Payment
	Schedule *model.RepaymentSchedule
	Order    *model.Order
}

// RecordPayment проводит платёж по заказу. Сумма должна быть положительной,
// тип платежа — известным; прочие проверки выполняет хранилище в одной
// транзакции. Платёж не меняет статус заказа: решение по заказу — отдельная
// явная операция Decide.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*RecordedPayment, error) {
	if !in.Amount.GreaterThan(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if !in.PaymentType.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPaymentType, in.PaymentType)
	}

	payment := model.Payment{
		OrderID:             in.OrderID,
		Amount:              in.Amount,
		PaymentType:         in.PaymentType,
		RecordedBy:          in.RecordedBy,
		RepaymentScheduleID: in.RepaymentScheduleID,
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	created, updatedSchedule, updatedOrder, err := s.repo.RecordPayment(ctx, payment)
	if err != nil {
		return nil, s.wrapStorage("record payment", err)
	}

	return &RecordedPayment{Payment: created, Schedule: updatedSchedule, Order: updatedOrder}, nil
}

// OrderDetail содержит заказ вместе с историей платежей и графиком погашения.
type OrderDetail struct {
	Order     *model.Order
	Payments  []model.Payment
	Schedules []model.RepaymentSchedule
}

// GetOrderDetail возвращает заказ, его платежи и график погашения.
func (s *Service) GetOrderDetail(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, s.wrapStorage("get order", err)
	}

	payments, err := s.repo.GetPaymentsByOrder(ctx, id)
	if err != nil {
		return nil, s.wrapStorage("get payments", err)
	}

	schedules, err := s.repo.GetSchedulesByOrder(ctx, id)
	if err != nil {
		return nil, s.wrapStorage("get repayment schedules", err)
	}

	return &OrderDetail{Order: order, Payments: payments, Schedules: schedules}, nil
}

// ListOrders возвращает заказы, видимые пользователю: фермер видит свои,
// агент — оформленные им, администратор — все. Пользователь передаётся явно,
// глобального состояния сессии в сервисе нет.
func (s *Service) ListOrders(ctx context.Context, viewer model.Profile) ([]model.Order, error) {
	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	var (
		orders []model.Order
		err    error
	)

	switch viewer.Role {
	case model.RoleFarmer:
		orders, err = s.repo.GetOrdersByFarmer(ctx, viewer.ID)
	case model.RoleAgent:
		orders, err = s.repo.GetOrdersByAgent(ctx, viewer.ID)
	case model.RoleAdmin:
		orders, err = s.repo.GetOrders(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, viewer.Role)
	}

	if err != nil {
		return nil, s.wrapStorage("list orders", err)
	}
	return orders, nil
}

// Decide записывает решение по заказу: одобрение или отклонение с комментарием.
// Повторное решение допускается, действует последнее; платежи статус заказа
// никогда не меняют.
func (s *Service) Decide(ctx context.Context, orderID uuid.UUID, decision model.Decision, approverID uuid.UUID, comment *string) (*model.Order, error) {
	if !decision.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDecision, decision)
	}

	ctx, cancel := s.storageCtx(ctx)
	defer cancel()

	updated, err := s.repo.Decide(ctx, orderID, model.OrderStatus(decision), approverID, s.now(), comment)
	if err != nil {
		return nil, s.wrapStorage("decide order", err)
	}
	return updated, nil
}
