package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// PostgresRepository stores each cart as a JSONB document next to the columns the
// queries filter on.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(ctx context.Context, cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.PingContext(ctx); e2 != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	logging.New("repository").Info("connected to postgres", "host", cred.Host, "db", cred.DBName)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "carts_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *PostgresRepository) GetActiveCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	query := `SELECT data, version FROM carts WHERE owner_id = $1 AND is_active`

	var data []byte
	var version int64
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query active cart: %w", err)
	}

	return decodeCart(data, version)
}

func (r *PostgresRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	cart.Version = 1
	data, err := json.Marshal(cart)
	if err != nil {
		cart.Version = 0
		return fmt.Errorf("marshal cart: %w", err)
	}

	query := `INSERT INTO carts (id, owner_id, is_active, currency, total_amount, expires_at, version, data, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, insertErr := r.db.ExecContext(ctx, query,
		cart.ID,
		cart.OwnerID,
		cart.IsActive,
		cart.Currency.String(),
		cart.TotalAmount.String(),
		cart.ExpiresAt(),
		cart.Version,
		data,
		cart.CreatedAt,
		cart.LastUpdated)

	if insertErr != nil {
		cart.Version = 0
		if isUniqueViolation(insertErr) {
			return duplicateOwner(cart.OwnerID)
		}
		return fmt.Errorf("insert cart: %w", insertErr)
	}
	return nil
}

func (r *PostgresRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	expected := cart.Version
	next := *cart
	next.Version = expected + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	query := `UPDATE carts
	          SET is_active = $3, total_amount = $4, expires_at = $5, version = $6, data = $7, updated_at = $8
	          WHERE id = $1 AND version = $2`

	res, err := r.db.ExecContext(ctx, query,
		cart.ID,
		expected,
		cart.IsActive,
		cart.TotalAmount.String(),
		cart.ExpiresAt(),
		next.Version,
		data,
		cart.LastUpdated)
	if err != nil {
		if isUniqueViolation(err) {
			return duplicateOwner(cart.OwnerID)
		}
		return fmt.Errorf("update cart: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM carts WHERE id = $1)`, cart.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check cart: %w", err)
		}
		if !exists {
			return ErrCartNotFound
		}
		return ErrConcurrentModification
	}

	cart.Version = next.Version
	return nil
}

func (r *PostgresRepository) ListActiveCarts(ctx context.Context) ([]domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data, version FROM carts WHERE is_active ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("query active carts: %w", err)
	}
	defer rows.Close()

	var carts []domain.Cart
	for rows.Next() {
		var data []byte
		var version int64
		if err := rows.Scan(&data, &version); err != nil {
			return nil, fmt.Errorf("scan cart row: %w", err)
		}
		c, err := decodeCart(data, version)
		if err != nil {
			return nil, err
		}
		carts = append(carts, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return carts, nil
}

func (r *PostgresRepository) DeleteInactiveExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE NOT is_active AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired carts: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func decodeCart(data []byte, version int64) (*domain.Cart, error) {
	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	c.Version = version
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "uniq_active_owner"
}
