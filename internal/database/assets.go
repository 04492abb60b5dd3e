package database

import (
	"context"

	"github.com/quasarhq/quasar/internal/model"
)

// UpsertAsset inserts or updates a row in assets, keyed on (class_name,
// class_type, symbol). The xmax sentinel distinguishes insert (returned
// inserted=true, xmax=0) from update (inserted=false), per §4.J.
func (d *DB) UpsertAsset(ctx context.Context, a model.Asset) (inserted bool, err error) {
	pool, err := d.requirePool()
	if err != nil {
		return false, err
	}

	var xmax uint32
	row := pool.QueryRow(ctx, `
		INSERT INTO assets
			(class_name, class_type, symbol, external_id, isin, name, exchange, asset_class, base_currency, quote_currency, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (class_name, class_type, symbol) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			isin = EXCLUDED.isin,
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			asset_class = EXCLUDED.asset_class,
			base_currency = EXCLUDED.base_currency,
			quote_currency = EXCLUDED.quote_currency,
			country = EXCLUDED.country
		RETURNING xmax
	`, a.ClassName, string(a.ClassType), a.Symbol, a.ExternalID, a.ISIN, a.Name, a.Exchange, a.AssetClass, a.BaseCurrency, a.QuoteCurrency, a.Country)

	if err := row.Scan(&xmax); err != nil {
		return false, err
	}
	return xmax == 0, nil
}

// CreateAssetMapping inserts a new asset_mapping row.
func (d *DB) CreateAssetMapping(ctx context.Context, m model.AssetMapping) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO asset_mapping (common_symbol, class_name, class_type, class_symbol, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, m.CommonSymbol, m.ClassName, string(m.ClassType), m.ClassSymbol, m.IsActive)
	return err
}

// ListAssetMappings returns all asset_mapping rows, optionally filtered
// by common symbol.
func (d *DB) ListAssetMappings(ctx context.Context, commonSymbol string) ([]model.AssetMapping, error) {
	pool, err := d.requirePool()
	if err != nil {
		return nil, err
	}

	query := `SELECT common_symbol, class_name, class_type, class_symbol, is_active FROM asset_mapping`
	args := []any{}
	if commonSymbol != "" {
		query += ` WHERE common_symbol = $1`
		args = append(args, commonSymbol)
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AssetMapping
	for rows.Next() {
		var m model.AssetMapping
		var classType string
		if err := rows.Scan(&m.CommonSymbol, &m.ClassName, &classType, &m.ClassSymbol, &m.IsActive); err != nil {
			return nil, err
		}
		m.ClassType = model.ClassType(classType)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateAssetMapping updates the mutable fields (common_symbol,
// is_active) of a mapping keyed by (class_name, class_type, class_symbol).
func (d *DB) UpdateAssetMapping(ctx context.Context, className string, classType model.ClassType, classSymbol, newCommonSymbol string, isActive bool) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		UPDATE asset_mapping SET common_symbol = $4, is_active = $5
		WHERE class_name = $1 AND class_type = $2 AND class_symbol = $3
	`, className, string(classType), classSymbol, newCommonSymbol, isActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAssetMapping deletes a mapping keyed by (class_name, class_type,
// class_symbol).
func (d *DB) DeleteAssetMapping(ctx context.Context, className string, classType model.ClassType, classSymbol string) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		DELETE FROM asset_mapping WHERE class_name = $1 AND class_type = $2 AND class_symbol = $3
	`, className, string(classType), classSymbol)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAssetIdentities reports how many rows exist in asset_identity,
// used to decide whether startup seeding should run (§4.H identity
// seeding).
func (d *DB) CountAssetIdentities(ctx context.Context) (int64, error) {
	pool, err := d.requirePool()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM asset_identity`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertAssetIdentity inserts one seeded identity row. Errors are
// returned to the caller, which logs a warning and continues per §4.H
// ("invalid YAML or missing directory logs a warning and continues --
// never fatal").
func (d *DB) InsertAssetIdentity(ctx context.Context, identity model.AssetIdentity) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO asset_identity (common_symbol, name, asset_class, country)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (common_symbol) DO NOTHING
	`, identity.CommonSymbol, identity.Name, identity.AssetClass, identity.Country)
	return err
}
