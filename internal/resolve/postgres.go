package resolve

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
)

// PostgresStore reads the reference database through a pgx pool. The pool is
// read-only from this service's perspective and shared across channel
// workers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a reference store over an existing pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPool dials the reference database
func OpenPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "reference database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "reference database", err)
	}
	return pool, nil
}

// ClientByTaxID finds a client code by tax id; 0 when nothing matches
func (s *PostgresStore) ClientByTaxID(ctx context.Context, taxID string) (int, error) {
	var clientCode int
	err := s.pool.QueryRow(ctx,
		`SELECT cod_cliente FROM gen_clientes WHERE nit = $1`,
		taxID,
	).Scan(&clientCode)

	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryResolution, errors.CodeClientNotFound,
			"client lookup by tax id failed")
	}

	return clientCode, nil
}

// PointByCode finds a point by the code partners use for it; nil when
// nothing matches
func (s *PostgresStore) PointByCode(ctx context.Context, clientCode int, code string) (*models.ResolvedPoint, error) {
	return s.scanPoint(ctx,
		`SELECT p.cod_cliente, p.cod_sucursal, p.id_punto, COALESCE(p.id_fondo::text, '')
		   FROM gen_puntos p
		  WHERE p.cod_cliente = $1 AND p.cod_punto = $2`,
		clientCode, code)
}

// PointByPair finds a point by the internal client/point pair
func (s *PostgresStore) PointByPair(ctx context.Context, clientCode int, pointCode string) (*models.ResolvedPoint, error) {
	return s.scanPoint(ctx,
		`SELECT p.cod_cliente, p.cod_sucursal, p.id_punto, COALESCE(p.id_fondo::text, '')
		   FROM gen_puntos p
		  WHERE p.cod_cliente = $1 AND p.cod_punto_interno = $2`,
		clientCode, pointCode)
}

func (s *PostgresStore) scanPoint(ctx context.Context, query string, args ...interface{}) (*models.ResolvedPoint, error) {
	var point models.ResolvedPoint
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&point.ClientCode,
		&point.BranchCode,
		&point.PointKey,
		&point.FundKey,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryResolution, errors.CodePointNotFound,
			"point lookup failed")
	}

	return &point, nil
}
