package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"panaderia/internal/domain"
)

// PGConfig параметры подключения к Postgres
type PGConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c PGConfig) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// ConnectPG открывает пул с ретраями: база может стартовать позже сервиса
func ConnectPG(ctx context.Context, cfg PGConfig) (*pgxpool.Pool, error) {
	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		pool, err := pgxpool.New(ctx, cfg.dsn())
		if err == nil {
			pctx, cancel := context.WithTimeout(ctx, pingTTL)
			err = pool.Ping(pctx)
			cancel()
			if err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("db connect canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, lastErr)
}

// PGStore реализует репозитории поверх pgxpool
type PGStore struct{ pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

var (
	_ ProductRepository  = (*PGStore)(nil)
	_ CustomerRepository = (*PGCustomers)(nil)
	_ OrderRepository    = (*PGOrders)(nil)
)

type pgTxKey struct{}

// dbConn общий срез API pool/tx: внутри WithTransaction запросы идут через pgx.Tx из контекста
type dbConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PGStore) q(ctx context.Context) dbConn {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

func (s *PGStore) Create(ctx context.Context, p *domain.Product) error {
	row := s.q(ctx).QueryRow(ctx,
		`INSERT INTO productos (nombre, descripcion, precio, imagen, disponibilidad, activo)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Name, p.Description, p.Price, p.ImageURL, p.Stock, p.Active)
	return row.Scan(&p.ID)
}

func (s *PGStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	row := s.q(ctx).QueryRow(ctx,
		`SELECT id, nombre, descripcion, precio, imagen, disponibilidad, activo
		 FROM productos WHERE id = $1`, id)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) Update(ctx context.Context, p *domain.Product) error {
	row := s.q(ctx).QueryRow(ctx,
		`UPDATE productos SET nombre=$2, descripcion=$3, precio=$4, imagen=$5, disponibilidad=$6, activo=$7
		 WHERE id=$1 RETURNING id`,
		p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.Stock, p.Active)
	var id int64
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PGStore) Delete(ctx context.Context, id int64) error {
	row := s.q(ctx).QueryRow(ctx, `DELETE FROM productos WHERE id=$1 RETURNING id`, id)
	var got int64
	err := row.Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PGStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	sql := `SELECT id, nombre, descripcion, precio, imagen, disponibilidad, activo FROM productos WHERE 1=1`
	args := []any{}
	if f.OnlyActive {
		sql += ` AND activo`
	}
	if f.NameSubstring != "" {
		args = append(args, "%"+f.NameSubstring+"%")
		sql += fmt.Sprintf(` AND nombre ILIKE $%d`, len(args))
	}
	sql += ` ORDER BY id`

	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PGCustomers покупатели
type PGCustomers struct{ store *PGStore }

func NewPGCustomers(store *PGStore) *PGCustomers { return &PGCustomers{store: store} }

func (c *PGCustomers) Create(ctx context.Context, cu *domain.Customer) error {
	row := c.store.q(ctx).QueryRow(ctx,
		`INSERT INTO usuarios (nombre, apellido_paterno, apellido_materno, correo, rol)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		cu.FirstName, cu.PaternalName, cu.MaternalName, cu.Email, cu.Role)
	return row.Scan(&cu.ID)
}

func (c *PGCustomers) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var cu domain.Customer
	row := c.store.q(ctx).QueryRow(ctx,
		`SELECT id, nombre, apellido_paterno, apellido_materno, correo, rol FROM usuarios WHERE id=$1`, id)
	err := row.Scan(&cu.ID, &cu.FirstName, &cu.PaternalName, &cu.MaternalName, &cu.Email, &cu.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cu, nil
}

func (c *PGCustomers) List(ctx context.Context) ([]domain.Customer, error) {
	rows, err := c.store.q(ctx).Query(ctx,
		`SELECT id, nombre, apellido_paterno, apellido_materno, correo, rol FROM usuarios ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Customer, 0)
	for rows.Next() {
		var cu domain.Customer
		if err := rows.Scan(&cu.ID, &cu.FirstName, &cu.PaternalName, &cu.MaternalName, &cu.Email, &cu.Role); err != nil {
			return nil, err
		}
		out = append(out, cu)
	}
	return out, rows.Err()
}

// PGOrders заказы с детализацией в отдельной таблице
type PGOrders struct{ store *PGStore }

func NewPGOrders(store *PGStore) *PGOrders { return &PGOrders{store: store} }

func (o *PGOrders) Create(ctx context.Context, ord *domain.Order) error {
	now := time.Now().UTC()
	ord.CreatedAt = now
	ord.UpdatedAt = now
	row := o.store.q(ctx).QueryRow(ctx,
		`INSERT INTO pedidos (numero, usuario_id, metodo_pago, tipo_entrega, notas, total, estado, creado_en, actualizado_en)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		ord.Number, ord.CustomerID, string(ord.Payment), string(ord.Delivery), ord.Notes, ord.Total, string(ord.Status), now)
	if err := row.Scan(&ord.ID); err != nil {
		return err
	}
	for _, it := range ord.Items {
		r := o.store.q(ctx).QueryRow(ctx,
			`INSERT INTO pedido_detalles (pedido_id, producto_id, cantidad, precio_unitario)
			 VALUES ($1, $2, $3, $4) RETURNING pedido_id`,
			ord.ID, it.ProductID, it.Quantity, it.UnitPrice)
		var discard int64
		if err := r.Scan(&discard); err != nil {
			return err
		}
	}
	return nil
}

func (o *PGOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var ord domain.Order
	row := o.store.q(ctx).QueryRow(ctx,
		`SELECT id, numero, usuario_id, metodo_pago, tipo_entrega, notas, total, estado, creado_en, actualizado_en
		 FROM pedidos WHERE id=$1`, id)
	err := row.Scan(&ord.ID, &ord.Number, &ord.CustomerID, &ord.Payment, &ord.Delivery,
		&ord.Notes, &ord.Total, &ord.Status, &ord.CreatedAt, &ord.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := o.loadItems(ctx, &ord); err != nil {
		return nil, err
	}
	return &ord, nil
}

func (o *PGOrders) loadItems(ctx context.Context, ord *domain.Order) error {
	rows, err := o.store.q(ctx).Query(ctx,
		`SELECT producto_id, cantidad, precio_unitario FROM pedido_detalles WHERE pedido_id=$1`, ord.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return err
		}
		ord.Items = append(ord.Items, it)
	}
	return rows.Err()
}

func (o *PGOrders) Update(ctx context.Context, ord *domain.Order) error {
	ord.UpdatedAt = time.Now().UTC()
	row := o.store.q(ctx).QueryRow(ctx,
		`UPDATE pedidos SET estado=$2, notas=$3, actualizado_en=$4 WHERE id=$1 RETURNING id`,
		ord.ID, string(ord.Status), ord.Notes, ord.UpdatedAt)
	var id int64
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (o *PGOrders) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := o.store.q(ctx).Query(ctx,
		`SELECT id, numero, usuario_id, metodo_pago, tipo_entrega, notas, total, estado, creado_en, actualizado_en
		 FROM pedidos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var ord domain.Order
		if err := rows.Scan(&ord.ID, &ord.Number, &ord.CustomerID, &ord.Payment, &ord.Delivery,
			&ord.Notes, &ord.Total, &ord.Status, &ord.CreatedAt, &ord.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := o.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (o *PGOrders) CountCreatedOn(ctx context.Context, day string) (int64, error) {
	var n int64
	row := o.store.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM pedidos WHERE to_char(creado_en, 'YYYYMMDD') = $1`, day)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// PGTx транзакции поверх pgx
type PGTx struct{ pool *pgxpool.Pool }

func NewPGTx(pool *pgxpool.Pool) *PGTx { return &PGTx{pool: pool} }

func (t *PGTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, pgTxKey{}, tx)
	if err := fn(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
