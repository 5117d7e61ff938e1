package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/facematch"
)

const (
	identityColumns = `id, name, surname, contact, embedding, created_at`

	// enrollLockName is the advisory lock that serializes enrollments across clients.
	enrollLockName    = "facemood_enroll"
	enrollLockTimeout = 10 // seconds
)

// ErrLockTimeout is returned when the enrollment lock cannot be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for enrollment lock")

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListIdentities returns all identities ordered by ID.
func (s *Store) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	identities, err := listIdentities(ctx, s.pool.db)
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
	row := s.pool.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
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
	if err := s.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, database.StorageError("count identities", err)
	}
	return count, nil
}

// EnrollIdentity holds a named advisory lock on a pinned connection while it reads
// the current identities, runs guard and inserts.
func (s *Store) EnrollIdentity(ctx context.Context, identity database.NewIdentity, guard database.EnrollGuard) (int64, error) {
	conn, err := s.pool.db.Conn(ctx)
	if err != nil {
		return 0, database.StorageError("acquire connection", err)
	}
	defer conn.Close()

	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", enrollLockName, enrollLockTimeout).Scan(&acquired); err != nil {
		return 0, database.StorageError("acquire enrollment lock", err)
	}
	if !acquired.Valid || acquired.Int64 != 1 {
		return 0, ErrLockTimeout
	}
	defer func() {
		// Released on a fresh context so a cancelled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(releaseCtx, "DO RELEASE_LOCK(?)", enrollLockName)
	}()

	tx, err := conn.BeginTx(ctx, nil)
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
		VALUES (?, ?, ?, ?, UTC_TIMESTAMP(6))
	`, identity.Name, identity.Surname, identity.Contact, database.EncodeEmbedding(identity.Embedding))
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
	tx, err := s.pool.db.BeginTx(ctx, nil)
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
	if _, err := s.pool.db.ExecContext(ctx,
		"INSERT IGNORE INTO settings (setting, value) VALUES (?, ?)",
		database.SettingEmbeddingDim, strconv.Itoa(dim),
	); err != nil {
		return database.StorageError("record embedding dimension", err)
	}

	var value string
	if err := s.pool.db.QueryRowContext(ctx,
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
	var embedding string

	if err := scanner.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Surname,
		&identity.Contact,
		&embedding,
		&identity.CreatedAt,
	); err != nil {
		return identity, fmt.Errorf("scan identity: %w", err)
	}

	vec, err := database.DecodeEmbedding(embedding)
	if err != nil {
		return identity, fmt.Errorf("identity %d: %w", identity.ID, err)
	}
	identity.Embedding = vec
	return identity, nil
}
