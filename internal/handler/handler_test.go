package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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

type stubService struct {
	createProfileErr error

	profileResp *model.Profile
	profileErr  error

	profilesResp []model.Profile
	profilesErr  error

	deleteProfileErr error

	farmerResp *model.Farmer
	farmerErr  error

	farmersResp []model.Farmer
	farmersErr  error

	createOrderResp *service.CreatedOrder
	createOrderErr  error

	ordersResp []model.Order
	ordersErr  error

	orderDetailResp *service.OrderDetail
	orderDetailErr  error

	recordPaymentResp *service.RecordedPayment
	recordPaymentErr  error

	decideResp *model.Order
	decideErr  error
}

func (s *stubService) CreateProfile(ctx context.Context, p model.Profile) error {
	return s.createProfileErr
}

func (s *stubService) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	return s.profileResp, s.profileErr
}

func (s *stubService) GetProfiles(ctx context.Context) ([]model.Profile, error) {
	return s.profilesResp, s.profilesErr
}

func (s *stubService) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return s.deleteProfileErr
}

func (s *stubService) RegisterFarmer(ctx context.Context, f model.Farmer) (*model.Farmer, error) {
	return s.farmerResp, s.farmerErr
}

func (s *stubService) GetFarmersByAgent(ctx context.Context, agentID uuid.UUID) ([]model.Farmer, error) {
	return s.farmersResp, s.farmersErr
}

func (s *stubService) CreateOrder(ctx context.Context, in service.CreateOrderInput) (*service.CreatedOrder, error) {
	return s.createOrderResp, s.createOrderErr
}

func (s *stubService) ListOrders(ctx context.Context, viewer model.Profile) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetOrderDetail(ctx context.Context, id uuid.UUID) (*service.OrderDetail, error) {
	return s.orderDetailResp, s.orderDetailErr
}

func (s *stubService) RecordPayment(ctx context.Context, in service.RecordPaymentInput) (*service.RecordedPayment, error) {
	return s.recordPaymentResp, s.recordPaymentErr
}

func (s *stubService) Decide(ctx context.Context, orderID uuid.UUID, decision model.Decision, approverID uuid.UUID, comment *string) (*model.Order, error) {
	return s.decideResp, s.decideErr
}

type stubIdentity struct {
	signUpID  uuid.UUID
	signUpErr error

	signInID  uuid.UUID
	signInErr error
}

func (s *stubIdentity) SignUp(ctx context.Context, email, password string) (uuid.UUID, error) {
	return s.signUpID, s.signUpErr
}

func (s *stubIdentity) SignIn(ctx context.Context, email, password string) (uuid.UUID, error) {
	return s.signInID, s.signInErr
}

func newTestHandler(t *testing.T, svc Service, id Identity) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, id, logger, auth)
}

func authCookie(t *testing.T, h *Handler, userID uuid.UUID, role model.Role) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID, role)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no auth cookie set")
	}
	return cookies[0]
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{}
	id := &stubIdentity{signUpID: uuid.New()}
	h := newTestHandler(t, svc, id)

	body, _ := json.Marshal(registerRequest{
		Email:    "agent@example.com",
		Password: "pass",
		Role:     "agent",
		FullName: "Test Agent",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie was not set")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{}
	id := &stubIdentity{signUpErr: identity.ErrUserExists}
	h := newTestHandler(t, svc, id)

	body, _ := json.Marshal(registerRequest{
		Email:    "agent@example.com",
		Password: "pass",
		Role:     "agent",
		FullName: "Test Agent",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestRegister_BadRole(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubIdentity{})

	body, _ := json.Marshal(registerRequest{
		Email:    "x@example.com",
		Password: "pass",
		Role:     "superuser",
		FullName: "X",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	id := &stubIdentity{signInErr: identity.ErrInvalidCredentials}
	h := newTestHandler(t, &stubService{}, id)

	body, _ := json.Marshal(loginRequest{
		Email:    "agent@example.com",
		Password: "wrong",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateOrder_Created(t *testing.T) {
	agentID := uuid.New()
	order := model.Order{
		ID:                  uuid.New(),
		FarmerID:            uuid.New(),
		AgentID:             &agentID,
		TotalCost:           decimal.RequireFromString("200"),
		DownPaymentRequired: decimal.RequireFromString("100"),
		DownPaymentReceived: decimal.RequireFromString("100"),
		RemainingBalance:    decimal.RequireFromString("100"),
		Status:              model.OrderStatusPending,
	}
	svc := &stubService{
		createOrderResp: &service.CreatedOrder{
			Order: &order,
			Schedules: []model.RepaymentSchedule{
				{OrderID: order.ID, InstallmentNumber: 1, AmountDue: decimal.RequireFromString("33.33")},
			},
		},
	}
	h := newTestHandler(t, svc, &stubIdentity{})

	body, _ := json.Marshal(createOrderRequest{
		FarmerID: order.FarmerID,
		Items: []orderItemPayload{
			{Name: "DAP", Quantity: decimal.RequireFromString("4"), PricePerUnit: decimal.RequireFromString("50")},
		},
		DownPaymentReceived: decimal.RequireFromString("100"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, agentID, model.RoleAgent))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp createOrderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != order.ID {
		t.Fatalf("order id = %s, want %s", resp.Order.ID, order.ID)
	}
	if len(resp.Schedules) != 1 {
		t.Fatalf("schedules = %d, want 1", len(resp.Schedules))
	}
}

func TestCreateOrder_DownPaymentMismatch(t *testing.T) {
	svc := &stubService{
		createOrderErr: &calc.DownPaymentMismatchError{Required: decimal.RequireFromString("100")},
	}
	h := newTestHandler(t, svc, &stubIdentity{})

	body, _ := json.Marshal(createOrderRequest{
		FarmerID: uuid.New(),
		Items: []orderItemPayload{
			{Name: "DAP", Quantity: decimal.RequireFromString("4"), PricePerUnit: decimal.RequireFromString("50")},
		},
		DownPaymentReceived: decimal.RequireFromString("99"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAgent))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestCreateOrder_ForbiddenForFarmer(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubIdentity{})

	body, _ := json.Marshal(createOrderRequest{FarmerID: uuid.New()})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleFarmer))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestListOrders_NoContent(t *testing.T) {
	svc := &stubService{ordersResp: []model.Order{}}
	h := newTestHandler(t, svc, &stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleFarmer))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestGetOrder_FarmerCannotSeeForeignOrder(t *testing.T) {
	order := model.Order{
		ID:       uuid.New(),
		FarmerID: uuid.New(),
		Status:   model.OrderStatusPending,
	}
	svc := &stubService{
		orderDetailResp: &service.OrderDetail{Order: &order},
	}
	h := newTestHandler(t, svc, &stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID.String(), nil)
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleFarmer))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := &stubService{orderDetailErr: repository.ErrOrderNotFound}
	h := newTestHandler(t, svc, &stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAdmin))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestRecordPayment_RejectsNonPositiveAmount(t *testing.T) {
	svc := &stubService{recordPaymentErr: service.ErrInvalidAmount}
	h := newTestHandler(t, svc, &stubIdentity{})

	body, _ := json.Marshal(recordPaymentRequest{
		Amount:      decimal.Zero,
		PaymentType: "installment",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+uuid.NewString()+"/payments", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAgent))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRecordPayment_JSONResponse(t *testing.T) {
	orderID := uuid.New()
	paid := decimal.RequireFromString("33.33")
	svc := &stubService{
		recordPaymentResp: &service.RecordedPayment{
			Payment: &model.Payment{ID: uuid.New(), OrderID: orderID, Amount: paid, PaymentType: model.PaymentTypeInstallment},
			Schedule: &model.RepaymentSchedule{
				OrderID:           orderID,
				InstallmentNumber: 1,
				AmountDue:         paid,
				AmountPaid:        paid,
				Status:            model.RepaymentStatusPaid,
			},
			Order: &model.Order{ID: orderID, RemainingBalance: decimal.RequireFromString("66.67"), Status: model.OrderStatusApproved},
		},
	}
	h := newTestHandler(t, svc, &stubIdentity{})

	body, _ := json.Marshal(recordPaymentRequest{
		Amount:      paid,
		PaymentType: "installment",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/payments", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAdmin))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp recordPaymentResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Schedule == nil || resp.Schedule.Status != string(model.RepaymentStatusPaid) {
		t.Fatalf("schedule in response = %+v, want paid", resp.Schedule)
	}
	if !resp.Order.RemainingBalance.Equal(decimal.RequireFromString("66.67")) {
		t.Fatalf("remaining balance = %s, want 66.67", resp.Order.RemainingBalance)
	}
	if resp.Order.Status != string(model.OrderStatusApproved) {
		t.Fatalf("order status = %s, want approved", resp.Order.Status)
	}
}

func TestDecide_ForbiddenForAgent(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubIdentity{})

	body, _ := json.Marshal(decisionRequest{Decision: "approved"})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+uuid.NewString()+"/decision", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAgent))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestDecide_Success(t *testing.T) {
	orderID := uuid.New()
	svc := &stubService{
		decideResp: &model.Order{ID: orderID, Status: model.OrderStatusRejected},
	}
	h := newTestHandler(t, svc, &stubIdentity{})

	comment := "insufficient registry data"
	body, _ := json.Marshal(decisionRequest{Decision: "rejected", Comment: &comment})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/decision", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAdmin))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(model.OrderStatusRejected) {
		t.Fatalf("status = %s, want rejected", resp.Status)
	}
}

func TestRegisterFarmer_Conflict(t *testing.T) {
	svc := &stubService{farmerErr: repository.ErrFarmerExists}
	h := newTestHandler(t, svc, &stubIdentity{})

	body, _ := json.Marshal(farmerRequest{
		FullName:   "Farmer One",
		NationalID: "1234567890",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/farmers", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAgent))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestGetProfiles_ForbiddenForAgent(t *testing.T) {
	h := newTestHandler(t, &stubService{}, &stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAgent))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestDeleteProfile_NotFound(t *testing.T) {
	svc := &stubService{deleteProfileErr: repository.ErrProfileNotFound}
	h := newTestHandler(t, svc, &stubIdentity{})

	req := httptest.NewRequest(http.MethodDelete, "/api/profiles/"+uuid.NewString(), nil)
	req.AddCookie(authCookie(t, h, uuid.New(), model.RoleAdmin))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}
