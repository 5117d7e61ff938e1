package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/facematch"
)

const identityColumns = `id, name, surname, contact, embedding, created_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListIdentities returns all identities ordered by ID.
func (s *Store) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	identities, err := listIdentities(ctx, s.db)
	if err != nil {
		return nil, database.StorageError("list identities", err)
	}
	return identities, nil
}

func listIdentities(ctx context.Context, q querier) ([]database.Identity, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
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

// GetIdentity retrieves an identity by ID.
func (s *Store) GetIdentity(ctx context.Context, id int64) (*database.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	identity, err := scanIdentity(row)
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
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, database.StorageError("count identities", err)
	}
	return count, nil
}

// EnrollIdentity runs guard and inserts inside one IMMEDIATE transaction.
func (s *Store) EnrollIdentity(ctx context.Context, identity database.NewIdentity, guard database.EnrollGuard) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.StorageError("begin enrollment", err)
	}
	defer tx.Rollback()

	existing, err := listIdentities(ctx, tx)
	if err != nil {
		return 0, database.StorageError("load identities", err)
	}
	if guard != nil {
		if err := guard(existing); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO identities (name, surname, contact, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, identity.Name, identity.Surname, identity.Contact,
		database.EncodeEmbedding(identity.Embedding), formatTime(s.now()))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert identity %q: %w", identity.Contact, database.ErrDuplicateContact)
		}
		return 0, database.StorageError("insert identity", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get inserted id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, database.StorageError("commit enrollment", err)
	}
	return id, nil
}

// DeleteIdentity removes an identity and its detection events.
func (s *Store) DeleteIdentity(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return database.StorageError("begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM detection_events WHERE identity_id = ?", id); err != nil {
		return database.StorageError("delete detections", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM identities WHERE id = ?", id)
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
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO settings (setting, value) VALUES (?, ?)",
		database.SettingEmbeddingDim, strconv.Itoa(dim),
	); err != nil {
		return database.StorageError("record embedding dimension", err)
	}

	var value string
	if err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE setting = ?", database.SettingEmbeddingDim,
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

func scanIdentity(scanner interface{ Scan(...any) error }) (database.Identity, error) {
	var identity database.Identity
	var embedding, createdAt string

	if err := scanner.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Surname,
		&identity.Contact,
		&embedding,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity, err
		}
		return identity, fmt.Errorf("scan identity: %w", err)
	}

	vec, err := database.DecodeEmbedding(embedding)
	if err != nil {
		return identity, fmt.Errorf("identity %d: %w", identity.ID, err)
	}
	identity.Embedding = vec

	if identity.CreatedAt, err = parseTime(createdAt); err != nil {
		return identity, fmt.Errorf("identity %d: %w", identity.ID, err)
	}
	return identity, nil
}
