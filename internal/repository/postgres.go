// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/agrocredit-system/internal/model"
	"github.com/mmeshcher/agrocredit-system/internal/schedule"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProfileExists возвращается при попытке создать профиль с уже существующим идентификатором.
var (
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound возвращается, если профиль не найден.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrFarmerExists возвращается при попытке зарегистрировать фермера с занятым национальным номером.
	ErrFarmerExists = errors.New("farmer already registered")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrScheduleNotFound возвращается, если взнос графика не найден или относится к другому заказу.
	ErrScheduleNotFound = errors.New("repayment schedule not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных сбоях: сериализационных конфликтах,
// дедлоках и обрывах соединения. Прочие ошибки возвращаются сразу.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(1*time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateProfile сохраняет профиль пользователя с идентификатором, выданным провайдером учётных записей.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p model.Profile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (id, role, full_name, phone_number, national_id) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, string(p.Role), p.FullName, p.PhoneNumber, p.NationalID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.ID)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetProfile возвращает профиль пользователя по идентификатору.
func (r *PostgresRepository) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, role, full_name, phone_number, national_id, created_at FROM profiles WHERE id = $1`,
		id,
	)

	var (
		p    model.Profile
		role string
	)
	err := row.Scan(&p.ID, &role, &p.FullName, &p.PhoneNumber, &p.NationalID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.Role = model.Role(role)

	return &p, nil
}

// GetProfiles возвращает все профили, отсортированные по дате создания.
func (r *PostgresRepository) GetProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role, full_name, phone_number, national_id, created_at
		 FROM profiles
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var (
			p    model.Profile
			role string
		)
		if err := rows.Scan(&p.ID, &role, &p.FullName, &p.PhoneNumber, &p.NationalID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Role = model.Role(role)
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return profiles, nil
}

// DeleteProfile удаляет профиль пользователя.
func (r *PostgresRepository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// CreateFarmer регистрирует фермера в реестре агента.
func (r *PostgresRepository) CreateFarmer(ctx context.Context, f model.Farmer) (*model.Farmer, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO farmers (user_id, full_name, phone_number, national_id, is_registered, linked_agent_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, user_id, full_name, phone_number, national_id, is_registered, linked_agent_id, created_at`,
		f.UserID, f.FullName, f.PhoneNumber, f.NationalID, f.IsRegistered, f.LinkedAgentID,
	)

	var created model.Farmer
	err := row.Scan(&created.ID, &created.UserID, &created.FullName, &created.PhoneNumber,
		&created.NationalID, &created.IsRegistered, &created.LinkedAgentID, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrFarmerExists, f.NationalID)
		}
		return nil, fmt.Errorf("create farmer: %w", err)
	}

	return &created, nil
}

// GetFarmersByAgent возвращает фермеров, привязанных к указанному агенту.
func (r *PostgresRepository) GetFarmersByAgent(ctx context.Context, agentID uuid.UUID) ([]model.Farmer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, full_name, phone_number, national_id, is_registered, linked_agent_id, created_at
		 FROM farmers
		 WHERE linked_agent_id = $1
		 ORDER BY created_at DESC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("select farmers: %w", err)
	}
	defer rows.Close()

	var farmers []model.Farmer
	for rows.Next() {
		var f model.Farmer
		if err := rows.Scan(&f.ID, &f.UserID, &f.FullName, &f.PhoneNumber,
			&f.NationalID, &f.IsRegistered, &f.LinkedAgentID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan farmer: %w", err)
		}
		farmers = append(farmers, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return farmers, nil
}

const orderColumns = `id, farmer_id, agent_id, total_cost, down_payment_required, down_payment_received,
	remaining_balance, status, order_details, approved_by, approved_at, approval_comment, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o       model.Order
		status  string
		details []byte
	)
	err := row.Scan(&o.ID, &o.FarmerID, &o.AgentID, &o.TotalCost, &o.DownPaymentRequired,
		&o.DownPaymentReceived, &o.RemainingBalance, &status, &details,
		&o.ApprovedBy, &o.ApprovedAt, &o.ApprovalComment, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order details: %w", err)
		}
	}

	return &o, nil
}

// CreateOrder сохраняет заказ, график погашения и, если передан, платёж
// первоначального взноса в одной транзакции. Первоначальный взнос уже учтён
// в агрегатах заказа при вставке, поэтому его платёж пишется только в историю.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order, schedules []model.RepaymentSchedule, initialPayment *model.Payment) (*model.Order, []model.RepaymentSchedule, error) {
	details, err := json.Marshal(o.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal order details: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO orders (id, farmer_id, agent_id, total_cost, down_payment_required, down_payment_received,
			remaining_balance, status, order_details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+orderColumns,
		o.ID, o.FarmerID, o.AgentID, o.TotalCost, o.DownPaymentRequired, o.DownPaymentReceived,
		o.RemainingBalance, string(o.Status), details,
	)

	created, err := scanOrder(row)
	if err != nil {
		return nil, nil, fmt.Errorf("insert order: %w", err)
	}

	createdSchedules := make([]model.RepaymentSchedule, 0, len(schedules))
	for _, s := range schedules {
		row := tx.QueryRow(ctx,
			`INSERT INTO repayment_schedules (order_id, farmer_id, installment_number, due_date, amount_due, amount_paid, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, order_id, farmer_id, installment_number, due_date, amount_due, amount_paid, status, created_at`,
			created.ID, s.FarmerID, s.InstallmentNumber, s.DueDate, s.AmountDue, s.AmountPaid, string(s.Status),
		)

		cs, err := scanSchedule(row)
		if err != nil {
			return nil, nil, fmt.Errorf("insert repayment schedule %d: %w", s.InstallmentNumber, err)
		}
		createdSchedules = append(createdSchedules, *cs)
	}

	if initialPayment != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO payments (order_id, farmer_id, amount, payment_type, recorded_by)
			 VALUES ($1, $2, $3, $4, $5)`,
			created.ID, initialPayment.FarmerID, initialPayment.Amount,
			string(initialPayment.PaymentType), initialPayment.RecordedBy,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("insert initial payment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	return created, createdSchedules, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

func (r *PostgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetOrders возвращает все заказы, новые первыми.
func (r *PostgresRepository) GetOrders(ctx context.Context) ([]model.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// GetOrdersByFarmer возвращает заказы указанного фермера, новые первыми.
func (r *PostgresRepository) GetOrdersByFarmer(ctx context.Context, farmerID uuid.UUID) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE farmer_id = $1 ORDER BY created_at DESC`, farmerID)
}

// GetOrdersByAgent возвращает заказы, оформленные указанным агентом, новые первыми.
func (r *PostgresRepository) GetOrdersByAgent(ctx context.Context, agentID uuid.UUID) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE agent_id = $1 ORDER BY created_at DESC`, agentID)
}

// GetPaymentsByOrder возвращает историю платежей по заказу в порядке поступления.
func (r *PostgresRepository) GetPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, farmer_id, amount, payment_type, recorded_by, repayment_schedule_id, created_at
		 FROM payments
		 WHERE order_id = $1
		 ORDER BY created_at`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var (
			p           model.Payment
			paymentType string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.FarmerID, &p.Amount, &paymentType,
			&p.RecordedBy, &p.RepaymentScheduleID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.PaymentType = model.PaymentType(paymentType)
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

func scanSchedule(row pgx.Row) (*model.RepaymentSchedule, error) {
	var (
		s      model.RepaymentSchedule
		status string
	)
	err := row.Scan(&s.ID, &s.OrderID, &s.FarmerID, &s.InstallmentNumber, &s.DueDate,
		&s.AmountDue, &s.AmountPaid, &status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = model.RepaymentStatus(status)
	return &s, nil
}

// GetSchedulesByOrder возвращает график погашения заказа в порядке номеров взносов.
func (r *PostgresRepository) GetSchedulesByOrder(ctx context.Context, orderID uuid.UUID) ([]model.RepaymentSchedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, farmer_id, installment_number, due_date, amount_due, amount_paid, status, created_at
		 FROM repayment_schedules
		 WHERE order_id = $1
		 ORDER BY installment_number`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select repayment schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.RepaymentSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repayment schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return schedules, nil
}

// RecordPayment применяет платёж к заказу атомарно: вставка платежа, обновление
// взноса графика и пересчёт агрегатов заказа выполняются в одной транзакции.
// Строка заказа блокируется FOR UPDATE, поэтому параллельные платежи по одному
// заказу сериализуются и потерянные обновления исключены. Декремент остатка
// выполняется на стороне БД, а не вычитанием в памяти.
func (r *PostgresRepository) RecordPayment(ctx context.Context, p model.Payment) (*model.Payment, *model.RepaymentSchedule, *model.Order, error) {
	var (
		createdPayment  *model.Payment
		updatedSchedule *model.RepaymentSchedule
		updatedOrder    *model.Order
	)

	err := r.withRetry(ctx, func() error {
		createdPayment, updatedSchedule, updatedOrder = nil, nil, nil

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем строку заказа: параллельные платежи по одному заказу
		// не должны терять обновления остатка и взносов.
		var farmerID uuid.UUID
		err = tx.QueryRow(ctx, `SELECT farmer_id FROM orders WHERE id = $1 FOR UPDATE`, p.OrderID).Scan(&farmerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order for update: %w", err)
		}

		row := tx.QueryRow(ctx,
			`INSERT INTO payments (order_id, farmer_id, amount, payment_type, recorded_by, repayment_schedule_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, order_id, farmer_id, amount, payment_type, recorded_by, repayment_schedule_id, created_at`,
			p.OrderID, farmerID, p.Amount, string(p.PaymentType), p.RecordedBy, p.RepaymentScheduleID,
		)

		var (
			created     model.Payment
			paymentType string
		)
		err = row.Scan(&created.ID, &created.OrderID, &created.FarmerID, &created.Amount,
			&paymentType, &created.RecordedBy, &created.RepaymentScheduleID, &created.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		created.PaymentType = model.PaymentType(paymentType)

		if p.RepaymentScheduleID != nil {
			var (
				amountPaid decimal.Decimal
				amountDue  decimal.Decimal
				status     string
			)
			err = tx.QueryRow(ctx,
				`SELECT amount_paid, amount_due, status FROM repayment_schedules WHERE id = $1 AND order_id = $2`,
				*p.RepaymentScheduleID, p.OrderID,
			).Scan(&amountPaid, &amountDue, &status)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrScheduleNotFound
				}
				return fmt.Errorf("get repayment schedule: %w", err)
			}

			newAmountPaid := amountPaid.Add(p.Amount)
			newStatus := schedule.DeriveStatus(newAmountPaid, amountDue, model.RepaymentStatus(status))

			row := tx.QueryRow(ctx,
				`UPDATE repayment_schedules SET amount_paid = $2, status = $3
				 WHERE id = $1
				 RETURNING id, order_id, farmer_id, installment_number, due_date, amount_due, amount_paid, status, created_at`,
				*p.RepaymentScheduleID, newAmountPaid, string(newStatus),
			)

			updatedSchedule, err = scanSchedule(row)
			if err != nil {
				return fmt.Errorf("update repayment schedule: %w", err)
			}
		}

		orderRow := tx.QueryRow(ctx,
			`UPDATE orders
			 SET remaining_balance = remaining_balance - $2,
			     down_payment_received = down_payment_received + CASE WHEN $3 THEN $2 ELSE 0 END
			 WHERE id = $1
			 RETURNING `+orderColumns,
			p.OrderID, p.Amount, p.PaymentType == model.PaymentTypeDownPayment,
		)

		updatedOrder, err = scanOrder(orderRow)
		if err != nil {
			return fmt.Errorf("update order balance: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		createdPayment = &created
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return createdPayment, updatedSchedule, updatedOrder, nil
}

// Decide записывает решение по заказу: статус, автора, момент и комментарий.
// Повторное решение по уже решённому заказу допускается, действует последнее.
func (r *PostgresRepository) Decide(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, approverID uuid.UUID, decidedAt time.Time, comment *string) (*model.Order, error) {
	var updated *model.Order

	err := r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`UPDATE orders
			 SET status = $2, approved_by = $3, approved_at = $4, approval_comment = $5
			 WHERE id = $1
			 RETURNING `+orderColumns,
			orderID, string(status), approverID, decidedAt, comment,
		)

		o, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("update order decision: %w", err)
		}

		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
