// Package handler содержит HTTP-обработчики API сервиса агрокредитования.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/agrocredit-system/internal/calc"
	"github.com/mmeshcher/agrocredit-system/internal/identity"
	"github.com/mmeshcher/agrocredit-system/internal/middleware"
	"github.com/mmeshcher/agrocredit-system/internal/model"
	"github.com/mmeshcher/agrocredit-system/internal/repository"
	"github.com/mmeshcher/agrocredit-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateProfile(ctx context.Context, p model.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	GetProfiles(ctx context.Context) ([]model.Profile, error)
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	RegisterFarmer(ctx context.Context, f model.Farmer) (*model.Farmer, error)
	GetFarmersByAgent(ctx context.Context, agentID uuid.UUID) ([]model.Farmer, error)
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*service.CreatedOrder, error)
	ListOrders(ctx context.Context, viewer model.Profile) ([]model.Order, error)
	GetOrderDetail(ctx context.Context, id uuid.UUID) (*service.OrderDetail, error)
	RecordPayment(ctx context.Context, in service.RecordPaymentInput) (*service.RecordedPayment, error)
	Decide(ctx context.Context, orderID uuid.UUID, decision model.Decision, approverID uuid.UUID, comment *string) (*model.Order, error)
}

// Identity определяет контракт внешнего провайдера учётных записей.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (uuid.UUID, error)
	SignIn(ctx context.Context, email, password string) (uuid.UUID, error)
}

// Handler реализует HTTP-обработчики API сервиса агрокредитования.
type Handler struct {
	service        Service
	identity       Identity
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, id Identity, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		identity:       id,
		logger:         logger,
		authMiddleware: auth,
	}
}

type registerRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	FullName    string  `json:"full_name"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	NationalID  *string `json:"national_id,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileResponse struct {
	ID          uuid.UUID `json:"id"`
	Role        string    `json:"role"`
	FullName    string    `json:"full_name"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	NationalID  *string   `json:"national_id,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// Register регистрирует пользователя у провайдера учётных записей и создаёт профиль.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	role := model.Role(req.Role)
	if req.Email == "" || req.Password == "" || req.FullName == "" || !role.Valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.identity.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	profile := model.Profile{
		ID:          userID,
		Role:        role,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		NationalID:  req.NationalID,
	}

	if err := h.service.CreateProfile(r.Context(), profile); err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("create profile error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, role)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("get profile error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, profile.ID, profile.Role)
	w.WriteHeader(http.StatusOK)
}

// Logout завершает сессию пользователя, сбрасывая cookie авторизации.
// Состояние сессии на сервере не хранится.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type orderItemPayload struct {
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

type createOrderRequest struct {
	FarmerID            uuid.UUID          `json:"farmer_id"`
	Items               []orderItemPayload `json:"items"`
	DownPaymentReceived decimal.Decimal    `json:"down_payment_received"`
}

type orderResponse struct {
	ID                  uuid.UUID          `json:"id"`
	FarmerID            uuid.UUID          `json:"farmer_id"`
	AgentID             *uuid.UUID         `json:"agent_id,omitempty"`
	TotalCost           decimal.Decimal    `json:"total_cost"`
	DownPaymentRequired decimal.Decimal    `json:"down_payment_required"`
	DownPaymentReceived decimal.Decimal    `json:"down_payment_received"`
	RemainingBalance    decimal.Decimal    `json:"remaining_balance"`
	Status              string             `json:"status"`
	Items               []orderItemPayload `json:"items"`
	ApprovedBy          *uuid.UUID         `json:"approved_by,omitempty"`
	ApprovedAt          *string            `json:"approved_at,omitempty"`
	ApprovalComment     *string            `json:"approval_comment,omitempty"`
	CreatedAt           string             `json:"created_at"`
}

type scheduleResponse struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           uuid.UUID       `json:"order_id"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           string          `json:"due_date"`
	AmountDue         decimal.Decimal `json:"amount_due"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	Status            string          `json:"status"`
}

type paymentResponse struct {
	ID                  uuid.UUID       `json:"id"`
	OrderID             uuid.UUID       `json:"order_id"`
	Amount              decimal.Decimal `json:"amount"`
	PaymentType         string          `json:"payment_type"`
	RecordedBy          uuid.UUID       `json:"recorded_by"`
	RepaymentScheduleID *uuid.UUID      `json:"repayment_schedule_id,omitempty"`
	CreatedAt           string          `json:"created_at"`
}

func toOrderResponse(o model.Order) orderResponse {
	items := make([]orderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemPayload{Name: it.Name, Quantity: it.Quantity, PricePerUnit: it.PricePerUnit})
	}

	var approvedAt *string
	if o.ApprovedAt != nil {
		s := o.ApprovedAt.Format(time.RFC3339)
		approvedAt = &s
	}

	return orderResponse{
		ID:                  o.ID,
		FarmerID:            o.FarmerID,
		AgentID:             o.AgentID,
		TotalCost:           o.TotalCost,
		DownPaymentRequired: o.DownPaymentRequired,
		DownPaymentReceived: o.DownPaymentReceived,
		RemainingBalance:    o.RemainingBalance,
		Status:              string(o.Status),
		Items:               items,
		ApprovedBy:          o.ApprovedBy,
		ApprovedAt:          approvedAt,
		ApprovalComment:     o.ApprovalComment,
		CreatedAt:           o.CreatedAt.Format(time.RFC3339),
	}
}

func toScheduleResponse(s model.RepaymentSchedule) scheduleResponse {
	return scheduleResponse{
		ID:                s.ID,
		OrderID:           s.OrderID,
		InstallmentNumber: s.InstallmentNumber,
		DueDate:           s.DueDate.Format(time.RFC3339),
		AmountDue:         s.AmountDue,
		AmountPaid:        s.AmountPaid,
		Status:            string(s.Status),
	}
}

func toPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:                  p.ID,
		OrderID:             p.OrderID,
		Amount:              p.Amount,
		PaymentType:         string(p.PaymentType),
		RecordedBy:          p.RecordedBy,
		RepaymentScheduleID: p.RepaymentScheduleID,
		CreatedAt:           p.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

type createOrderResponse struct {
	Order     orderResponse      `json:"order"`
	Schedules []scheduleResponse `json:"repayment_schedule"`
}

// CreateOrder оформляет заказ от имени агента: позиции, первоначальный взнос
// и график погашения сохраняются одной транзакцией.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.FarmerID == uuid.Nil || len(req.Items) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Name == "" || !it.Quantity.GreaterThan(decimal.Zero) || it.PricePerUnit.LessThan(decimal.Zero) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		items = append(items, model.OrderItem{Name: it.Name, Quantity: it.Quantity, PricePerUnit: it.PricePerUnit})
	}

	created, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		FarmerID:            req.FarmerID,
		AgentID:             &userID,
		Items:               items,
		DownPaymentReceived: req.DownPaymentReceived,
		RecordedBy:          userID,
	})
	if err != nil {
		var mismatch *calc.DownPaymentMismatchError
		if errors.As(err, &mismatch) {
			h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":    "down payment does not match required amount",
				"required": mismatch.Required.String(),
			})
			return
		}
		h.logger.Error("create order error", zap.Error(err), zap.String("farmerID", req.FarmerID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := createOrderResponse{Order: toOrderResponse(*created.Order)}
	resp.Schedules = make([]scheduleResponse, 0, len(created.Schedules))
	for _, s := range created.Schedules {
		resp.Schedules = append(resp.Schedules, toScheduleResponse(s))
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// ListOrders возвращает заказы, видимые текущему пользователю согласно его роли.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), model.Profile{ID: userID, Role: role})
	if err != nil {
		h.logger.Error("list orders error", zap.Error(err), zap.String("userID", userID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type orderDetailResponse struct {
	Order     orderResponse      `json:"order"`
	Payments  []paymentResponse  `json:"payments"`
	Schedules []scheduleResponse `json:"repayment_schedule"`
}

// GetOrder возвращает заказ с историей платежей и графиком погашения.
// Фермер видит только свой заказ, агент — только оформленный им.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	detail, err := h.service.GetOrderDetail(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("orderID", orderID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	switch role {
	case model.RoleFarmer:
		if detail.Order.FarmerID != userID {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
	case model.RoleAgent:
		if detail.Order.AgentID == nil || *detail.Order.AgentID != userID {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
	}

	resp := orderDetailResponse{Order: toOrderResponse(*detail.Order)}
	resp.Payments = make([]paymentResponse, 0, len(detail.Payments))
	for _, p := range detail.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	resp.Schedules = make([]scheduleResponse, 0, len(detail.Schedules))
	for _, s := range detail.Schedules {
		resp.Schedules = append(resp.Schedules, toScheduleResponse(s))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type recordPaymentRequest struct {
	Amount              decimal.Decimal `json:"amount"`
	PaymentType         string          `json:"payment_type"`
	RepaymentScheduleID *uuid.UUID      `json:"repayment_schedule_id,omitempty"`
}

type recordPaymentResponse struct {
	Payment  paymentResponse   `json:"payment"`
	Schedule *scheduleResponse `json:"repayment_schedule,omitempty"`
	Order    orderResponse     `json:"order"`
}

// RecordPayment проводит платёж по заказу и возвращает обновлённое состояние.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	recorded, err := h.service.RecordPayment(r.Context(), service.RecordPaymentInput{
		OrderID:             orderID,
		Amount:              req.Amount,
		PaymentType:         model.PaymentType(req.PaymentType),
		RecordedBy:          userID,
		RepaymentScheduleID: req.RepaymentScheduleID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidPaymentType):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, repository.ErrScheduleNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("record payment error", zap.Error(err), zap.String("orderID", orderID.String()))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	resp := recordPaymentResponse{
		Payment: toPaymentResponse(*recorded.Payment),
		Order:   toOrderResponse(*recorded.Order),
	}
	if recorded.Schedule != nil {
		s := toScheduleResponse(*recorded.Schedule)
		resp.Schedule = &s
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type decisionRequest struct {
	Decision string  `json:"decision"`
	Comment  *string `json:"comment,omitempty"`
}

// Decide записывает решение администратора по заказу.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	updated, err := h.service.Decide(r.Context(), orderID, model.Decision(req.Decision), userID, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDecision):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("decide order error", zap.Error(err), zap.String("orderID", orderID.String()))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(*updated))
}

type farmerRequest struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	NationalID  string `json:"national_id"`
}

type farmerResponse struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	FullName     string     `json:"full_name"`
	PhoneNumber  string     `json:"phone_number"`
	NationalID   string     `json:"national_id"`
	IsRegistered bool       `json:"is_registered"`
	CreatedAt    string     `json:"created_at"`
}

func toFarmerResponse(f model.Farmer) farmerResponse {
	return farmerResponse{
		ID:           f.ID,
		UserID:       f.UserID,
		FullName:     f.FullName,
		PhoneNumber:  f.PhoneNumber,
		NationalID:   f.NationalID,
		IsRegistered: f.IsRegistered,
		CreatedAt:    f.CreatedAt.Format(time.RFC3339),
	}
}

// RegisterFarmer добавляет фермера в реестр текущего агента.
func (h *Handler) RegisterFarmer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req farmerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.FullName == "" || req.NationalID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.service.RegisterFarmer(r.Context(), model.Farmer{
		FullName:      req.FullName,
		PhoneNumber:   req.PhoneNumber,
		NationalID:    req.NationalID,
		LinkedAgentID: &userID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrFarmerExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register farmer error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, toFarmerResponse(*created))
}

// GetFarmers возвращает фермеров из реестра текущего агента.
func (h *Handler) GetFarmers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	farmers, err := h.service.GetFarmersByAgent(r.Context(), userID)
	if err != nil {
		h.logger.Error("get farmers error", zap.Error(err), zap.String("agentID", userID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(farmers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]farmerResponse, 0, len(farmers))
	for _, f := range farmers {
		resp = append(resp, toFarmerResponse(f))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetProfiles возвращает все профили пользователей. Доступно администратору.
func (h *Handler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.GetProfiles(r.Context())
	if err != nil {
		h.logger.Error("get profiles error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(profiles) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		resp = append(resp, profileResponse{
			ID:          p.ID,
			Role:        string(p.Role),
			FullName:    p.FullName,
			PhoneNumber: p.PhoneNumber,
			NationalID:  p.NationalID,
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// DeleteProfile удаляет профиль пользователя. Доступно администратору.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteProfile(r.Context(), profileID); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete profile error", zap.Error(err), zap.String("profileID", profileID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
