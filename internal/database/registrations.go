package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quasarhq/quasar/internal/model"
)

// GetRegistration looks up a code_registry row by (class_name,
// class_type), satisfying providerloader.RegistrationStore.
func (d *DB) GetRegistration(ctx context.Context, className string, classType model.ClassType) (model.ProviderRegistration, error) {
	pool, err := d.requirePool()
	if err != nil {
		return model.ProviderRegistration{}, err
	}

	var (
		reg        model.ProviderRegistration
		prefsJSON  []byte
		fileHash   []byte
		nonce      []byte
		classTypeV string
	)

	row := pool.QueryRow(ctx, `
		SELECT class_name, class_type, class_subtype, file_path, file_hash, nonce, ciphertext, preferences, uploaded_at
		FROM code_registry
		WHERE class_name = $1 AND class_type = $2
	`, className, string(classType))

	var classSubtype string
	if err := row.Scan(&reg.ClassName, &classTypeV, &classSubtype, &reg.FilePath, &fileHash, &nonce, &reg.Ciphertext, &prefsJSON, &reg.UploadedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ProviderRegistration{}, ErrNotFound
		}
		return model.ProviderRegistration{}, err
	}

	reg.ClassType = model.ClassType(classTypeV)
	reg.ClassSubtype = model.ClassSubtype(classSubtype)
	copy(reg.FileHash[:], fileHash)
	copy(reg.Nonce[:], nonce)

	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &reg.Preferences); err != nil {
			return model.ProviderRegistration{}, err
		}
	} else {
		reg.Preferences = map[string]any{}
	}

	return reg, nil
}

// UpsertRegistration inserts or fully replaces a code_registry row, keyed
// on the (class_name, class_type) unique constraint (§3).
func (d *DB) UpsertRegistration(ctx context.Context, reg model.ProviderRegistration) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}

	prefsJSON, err := json.Marshal(reg.Preferences)
	if err != nil {
		return err
	}

	uploadedAt := reg.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO code_registry
			(class_name, class_type, class_subtype, file_path, file_hash, nonce, ciphertext, preferences, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (class_name, class_type) DO UPDATE SET
			class_subtype = EXCLUDED.class_subtype,
			file_path = EXCLUDED.file_path,
			file_hash = EXCLUDED.file_hash,
			nonce = EXCLUDED.nonce,
			ciphertext = EXCLUDED.ciphertext,
			preferences = EXCLUDED.preferences
	`, reg.ClassName, string(reg.ClassType), string(reg.ClassSubtype), reg.FilePath,
		reg.FileHash[:], reg.Nonce[:], reg.Ciphertext, prefsJSON, uploadedAt)
	return err
}

// UpdatePreferences merge-persists a preferences patch for an existing
// registration (§4.H PUT /api/registry/config). Callers validate and
// merge the patch before calling this; this method only persists the
// already-merged document.
func (d *DB) UpdatePreferences(ctx context.Context, className string, classType model.ClassType, prefs map[string]any) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		UPDATE code_registry SET preferences = $3
		WHERE class_name = $1 AND class_type = $2
	`, className, string(classType), prefsJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSecrets re-encrypts and persists a new (nonce, ciphertext) pair
// for a registration, leaving the file_hash untouched (§4.H PATCH
// .../secrets).
func (d *DB) UpdateSecrets(ctx context.Context, className string, classType model.ClassType, nonce [12]byte, ciphertext []byte) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		UPDATE code_registry SET nonce = $3, ciphertext = $4
		WHERE class_name = $1 AND class_type = $2
	`, className, string(classType), nonce[:], ciphertext)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRegistration removes a code_registry row. It does not touch the
// backing file; that is the caller's (registry HTTP handler's)
// responsibility, so a file-delete failure after a successful row delete
// can be reported distinctly (§7 item 5, 207 partial success).
func (d *DB) DeleteRegistration(ctx context.Context, className string, classType model.ClassType) error {
	pool, err := d.requirePool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM code_registry WHERE class_name = $1 AND class_type = $2`, className, string(classType))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRegistrations returns all registrations, optionally filtered by
// class_type.
func (d *DB) ListRegistrations(ctx context.Context, classType model.ClassType) ([]model.ProviderRegistration, error) {
	pool, err := d.requirePool()
	if err != nil {
		return nil, err
	}

	query := `SELECT class_name, class_type, class_subtype, file_path, file_hash, nonce, ciphertext, preferences, uploaded_at FROM code_registry`
	args := []any{}
	if classType != "" {
		query += ` WHERE class_type = $1`
		args = append(args, string(classType))
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProviderRegistration
	for rows.Next() {
		var (
			reg          model.ProviderRegistration
			classTypeV   string
			classSubtype string
			fileHash     []byte
			nonce        []byte
			prefsJSON    []byte
		)
		if err := rows.Scan(&reg.ClassName, &classTypeV, &classSubtype, &reg.FilePath, &fileHash, &nonce, &reg.Ciphertext, &prefsJSON, &reg.UploadedAt); err != nil {
			return nil, err
		}
		reg.ClassType = model.ClassType(classTypeV)
		reg.ClassSubtype = model.ClassSubtype(classSubtype)
		copy(reg.FileHash[:], fileHash)
		copy(reg.Nonce[:], nonce)
		if len(prefsJSON) > 0 {
			if err := json.Unmarshal(prefsJSON, &reg.Preferences); err != nil {
				return nil, err
			}
		} else {
			reg.Preferences = map[string]any{}
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// ClassSummaryRow is the result of left-joining registrations with asset
// counts for GET /internal/classes/summary, additionally reporting
// class_subtype and uploaded_at alongside the asset count.
type ClassSummaryRow struct {
	ClassName    string
	ClassType    model.ClassType
	ClassSubtype model.ClassSubtype
	UploadedAt   time.Time
	AssetCount   int64
}

// ClassSummary left-joins code_registry with assets, counting assets per
// (class_name, class_type).
func (d *DB) ClassSummary(ctx context.Context) ([]ClassSummaryRow, error) {
	pool, err := d.requirePool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT r.class_name, r.class_type, r.class_subtype, r.uploaded_at, COUNT(a.symbol)
		FROM code_registry r
		LEFT JOIN assets a ON a.class_name = r.class_name AND a.class_type = r.class_type
		GROUP BY r.class_name, r.class_type, r.class_subtype, r.uploaded_at
		ORDER BY r.class_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClassSummaryRow
	for rows.Next() {
		var row ClassSummaryRow
		var classType, classSubtype string
		if err := rows.Scan(&row.ClassName, &classType, &classSubtype, &row.UploadedAt, &row.AssetCount); err != nil {
			return nil, err
		}
		row.ClassType = model.ClassType(classType)
		row.ClassSubtype = model.ClassSubtype(classSubtype)
		out = append(out, row)
	}
	return out, rows.Err()
}
