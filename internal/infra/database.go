package infra

import (
	"fmt"

	"alquicaja/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// for the three ledger tables, then applies the idempotent SQL patches GORM
// cannot express (the partial unique index in particular).
//
// TranslateError is on so a unique-constraint violation surfaces as
// gorm.ErrDuplicatedKey; the open-session race and concurrent numero_operacion
// claims both rely on that mapping.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates the schema. Integration tests call this
// directly against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.SesionCaja{},
		&model.MovimientoCaja{},
		&model.CierreCaja{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement is guarded by an existence check so re-running on an
// already-patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open session per punto de venta. This index is the
		// storage-level compare-and-set backing Abrir: two concurrent opens
		// both pass the application check, one insert loses here.
		{"partial unique index uni_sesion_abierta_pdv", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_sesion_abierta_pdv') THEN
    CREATE UNIQUE INDEX uni_sesion_abierta_pdv
        ON sesiones_caja (punto_de_venta)
        WHERE estado = 'abierta';
  END IF;
END $$`},
		// History search filters on a date range first; keep that path indexed
		// together with created_at so page ordering stays cheap.
		{"index idx_movimientos_fecha_created", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_movimientos_fecha_created') THEN
    CREATE INDEX idx_movimientos_fecha_created
        ON movimientos_caja (fecha, created_at);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
