package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// insertStatement calls the ledger's combined insert routine. The parameter
// order is fixed by the routine and must not change: positions 1-45 populate
// the service row, 46-69 the declared-value transaction row. It returns the
// generated order reference.
const insertStatement = `SELECT add_service_transaction(
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,
	$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
	$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,
	$31,$32,$33,$34,$35,$36,$37,$38,$39,$40,
	$41,$42,$43,$44,$45,$46,$47,$48,$49,$50,
	$51,$52,$53,$54,$55,$56,$57,$58,$59,$60,
	$61,$62,$63,$64,$65,$66,$67,$68,$69)`

const existsQuery = `SELECT COUNT(*) FROM cgs_servicios WHERE numero_pedido = $1`

// PostgresGateway writes pairs through the ledger database directly
type PostgresGateway struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPostgresGateway creates a direct-database gateway over an existing pool
func NewPostgresGateway(pool *pgxpool.Pool, log logger.Logger) *PostgresGateway {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &PostgresGateway{
		pool:   pool,
		logger: log.WithComponent("ledger_postgres"),
	}
}

// Insert checks for the business order id and, when absent, runs the
// combined insert routine. Check and insert share one transaction so a
// concurrent duplicate cannot slip between them.
func (g *PostgresGateway) Insert(ctx context.Context, service *models.ServiceRecord, transaction *models.TransactionRecord) (Result, error) {
	if err := checkPair(service, transaction); err != nil {
		return Result{}, err
	}

	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, errors.LedgerError(errors.CodeWriteFailed, service.OrderID, err)
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, existsQuery, service.OrderID).Scan(&count); err != nil {
		return Result{}, errors.LedgerError(errors.CodeExistsCheck, service.OrderID, err)
	}
	if count > 0 {
		g.logger.WithField("order_id", service.OrderID).Info("Order already in ledger, skipping")
		return Result{Outcome: AlreadyExists}, nil
	}

	var orderRef *string
	if err := tx.QueryRow(ctx, insertStatement, insertArgs(service, transaction)...).Scan(&orderRef); err != nil {
		return Result{}, errors.LedgerError(errors.CodeWriteFailed, service.OrderID, err)
	}
	if orderRef == nil || *orderRef == "" {
		return Result{}, errors.LedgerError(errors.CodeNoOrderRef, service.OrderID, nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, errors.LedgerError(errors.CodeWriteFailed, service.OrderID, err)
	}

	g.logger.WithFields(logger.Fields{
		"order_id":  service.OrderID,
		"order_ref": *orderRef,
		"total":     service.TotalValue.String(),
	}).Info("Pair inserted")

	return Result{Outcome: Inserted, OrderRef: *orderRef}, nil
}

// insertArgs flattens the pair into the routine's positional parameters.
// Lifecycle fields the ingestion never sets (acceptance, attention,
// cancellation, rejection) travel as NULL.
func insertArgs(service *models.ServiceRecord, transaction *models.TransactionRecord) []interface{} {
	var scheduledDate, scheduledTime interface{}
	if service.ScheduledFor != nil {
		scheduledDate = service.ScheduledFor.Format("2006-01-02")
		scheduledTime = service.ScheduledFor.Format("15:04:05")
	}

	var externalRef interface{}
	if service.ExternalID != "" {
		externalRef = service.ExternalID
	}

	return []interface{}{
		// Service row.
		service.OrderID,                          // 1 numero_pedido
		service.ClientCode,                       // 2 cod_cliente
		externalRef,                              // 3 cod_os_cliente
		service.BranchCode,                       // 4 cod_sucursal
		service.RequestedAt.Format("2006-01-02"), // 5 fecha_solicitud
		service.RequestedAt.Format("15:04:05"),   // 6 hora_solicitud
		int(service.Concept),                     // 7 cod_concepto
		service.TransferKind,                     // 8 tipo_traslado
		int(service.State),                       // 9 cod_estado
		service.ClientCode,                       // 10 cod_cliente_origen
		service.OriginPoint,                      // 11 cod_punto_origen
		string(service.OriginIndicator),          // 12 indicador_tipo_origen
		service.ClientCode,                       // 13 cod_cliente_destino
		service.DestinationPoint,                 // 14 cod_punto_destino
		string(service.DestinationIndicator),     // 15 indicador_tipo_destino
		nil, nil,                                 // 16-17 acceptance
		scheduledDate, scheduledTime, // 18-19 schedule
		nil, nil, nil, nil, // 20-23 attention
		nil, nil, nil, nil, // 24-27 cancellation, rejection
		service.Failed,          // 28 fallido
		nil, nil, nil, nil, nil, // 29-33 failure and cancellation detail
		service.Modality,      // 34 modalidad_servicio
		service.Observation,   // 35 observaciones
		uuid.NewString(),      // 36 clave
		nil,                   // 37 operador_cgs_id
		nil,                   // 38 sucursal_cgs
		nil,                   // 39 ip_operador
		service.BanknoteValue, // 40 valor_billete
		service.CoinValue,     // 41 valor_moneda
		service.TotalValue,    // 42 valor_servicio
		service.KitCount,      // 43 numero_kits_cambio
		service.CoinBagCount,  // 44 numero_bolsas_moneda
		service.SourceFile,    // 45 archivo_detalle

		// Transaction row.
		nullable(transaction.RouteCode),         // 46 cod_ruta
		nullableInt(transaction.ManifestNumber), // 47 numero_planilla
		transaction.Currency,                    // 48 divisa
		string(transaction.Kind),                // 49 tipo_transaccion
		nil,                                     // 50 numero_mesa_conteo
		transaction.DeclaredBags,                // 51
		transaction.DeclaredEnvelopes,           // 52
		transaction.DeclaredChecks,              // 53
		transaction.DeclaredDocuments,           // 54
		transaction.DeclaredBanknotes,           // 55
		transaction.DeclaredCoins,               // 56
		transaction.DeclaredDocumentValues,      // 57
		transaction.DeclaredTotal,               // 58
		nil, nil,                                // 59-60 amounts in words
		nullable(transaction.Note), // 61 novedad_informativa
		false,                      // 62 es_custodia
		false,                      // 63 es_punto_a_punto
		string(transaction.State),  // 64 estado_transaccion
		transaction.RegisteredAt,   // 65 fecha_registro
		transaction.RegisteredBy,   // 66 usuario_registro_id
		nil,                        // 67 ip_registro
		nil, nil,                   // 68-69 delivery/receipt responsibles
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// OpenPool dials the ledger database and verifies the connection
func OpenPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "ledger_database", connString, err)
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "ledger database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.NetworkError(errors.CodeConnectionFailed, "ledger database", err)
	}
	return pool, nil
}
