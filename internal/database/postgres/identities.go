package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

const identityColumns = `id, name, surname, contact, embedding, created_at`

// ListIdentities returns all identities ordered by ID.
func (s *Store) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return nil, database.StorageError("query identities", err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

// GetIdentity retrieves an identity by ID.
func (s *Store) GetIdentity(ctx context.Context, id int64) (*database.Identity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	identity, err := scanIdentityRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %d: %w", id, database.ErrIdentityNotFound)
	}
	if err != nil {
		return nil, database.StorageError("get identity", err)
	}
	return &identity, nil
}

// CountIdentities returns the number of identities.
func (s *Store) CountIdentities(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, database.StorageError("count identities", err)
	}
	return count, nil
}

// EnrollIdentity locks the identities table against concurrent writers, runs guard
// over the current rows and inserts. Readers are not blocked.
func (s *Store) EnrollIdentity(ctx context.Context, identity database.NewIdentity, guard database.EnrollGuard) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.StorageError("begin enrollment", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "LOCK TABLE identities IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		return 0, database.StorageError("lock identities", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return 0, database.StorageError("load identities", err)
	}
	existing, err := scanIdentities(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	if guard != nil {
		if err := guard(existing); err != nil {
			return 0, err
		}
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO identities (name, surname, contact, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, identity.Name, identity.Surname, identity.Contact, pgvector.NewVector(identity.Embedding)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert identity %q: %w", identity.Contact, database.ErrDuplicateContact)
		}
		return 0, database.StorageError("insert identity", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, database.StorageError("commit enrollment", err)
	}
	return id, nil
}

// DeleteIdentity removes an identity and its detection events.
func (s *Store) DeleteIdentity(ctx context.Context, id int64) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return database.StorageError("begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM detection_events WHERE identity_id = $1", id); err != nil {
		return database.StorageError("delete detections", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return database.StorageError("delete identity", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("identity %d: %w", id, database.ErrIdentityNotFound)
	}

	if err := tx.Commit(); err != nil {
		return database.StorageError("commit delete", err)
	}
	return nil
}

// EnsureEmbeddingDim records dim on first use and rejects a different dimensionality later.
func (s *Store) EnsureEmbeddingDim(ctx context.Context, dim int) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO settings (setting, value) VALUES ($1, $2)
		ON CONFLICT (setting) DO NOTHING
	`, database.SettingEmbeddingDim, strconv.Itoa(dim)); err != nil {
		return database.StorageError("record embedding dimension", err)
	}

	var value string
	if err := s.pool.QueryRow(ctx,
		"SELECT value FROM settings WHERE setting = $1", database.SettingEmbeddingDim,
	).Scan(&value); err != nil {
		return database.StorageError("read embedding dimension", err)
	}

	stored, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid stored embedding dimension %q: %w", value, err)
	}
	if stored != dim {
		return fmt.Errorf("%w: database has %d, configured %d", facematch.ErrDimensionMismatch, stored, dim)
	}
	return nil
}

func scanIdentities(rows *sql.Rows) ([]database.Identity, error) {
	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentityRow(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// scanIdentityRow scans a single row into an Identity.
func scanIdentityRow(scanner interface{ Scan(...any) error }) (database.Identity, error) {
	var identity database.Identity
	var vec pgvector.Vector

	if err := scanner.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Surname,
		&identity.Contact,
		&vec,
		&identity.CreatedAt,
	); err != nil {
		return identity, fmt.Errorf("scan identity: %w", err)
	}

	identity.Embedding = vec.Slice()
	return identity, nil
}
