package data

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps snapshots in a sqlite database. Each snapshot and its instance rows are
// written in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, errors.Wrap(err, "applying snapshot schema")
	}
	return &SQLiteStore{db: db}, nil
}

// Put stores the snapshot.
func (st *SQLiteStore) Put(ctx context.Context, s *Snapshot) error {
	raw, err := MarshalSnapshot(s)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	digest := blake3.Sum256(raw)

	tx, err := st.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, sequence, timestamp_ns, label, limited, map_version, digest, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Sequence, s.Timestamp.UnixNano(), s.Label, s.Limited, s.MapVersion, digest[:], raw,
	); err != nil {
		return errors.Wrap(err, "inserting snapshot")
	}
	for _, inst := range s.Instances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_instances
				(session_id, sequence, instance_id, category_id, score, min_x, min_y, min_z, max_x, max_y, max_z)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.SessionID, s.Sequence, inst.ID, inst.CategoryID, inst.Score,
			inst.Min[0], inst.Min[1], inst.Min[2], inst.Max[0], inst.Max[1], inst.Max[2],
		); err != nil {
			return errors.Wrapf(err, "inserting instance %d", inst.ID)
		}
	}
	return tx.Commit()
}

// Get reads one snapshot.
func (st *SQLiteStore) Get(ctx context.Context, sessionID string, sequence uint64) (*Snapshot, error) {
	row := st.db.QueryRowContext(ctx,
		`SELECT digest, payload FROM snapshots WHERE session_id = ? AND sequence = ?`, sessionID, sequence)
	return scanSnapshot(row)
}

// Latest reads the snapshot with the newest timestamp.
func (st *SQLiteStore) Latest(ctx context.Context) (*Snapshot, error) {
	row := st.db.QueryRowContext(ctx,
		`SELECT digest, payload FROM snapshots ORDER BY timestamp_ns DESC, sequence DESC LIMIT 1`)
	return scanSnapshot(row)
}

// Count is the number of stored snapshots.
func (st *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

// InstanceCount is the number of instance rows stored for a snapshot.
func (st *SQLiteStore) InstanceCount(ctx context.Context, sessionID string, sequence uint64) (int, error) {
	var n int
	err := st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshot_instances WHERE session_id = ? AND sequence = ?`, sessionID, sequence).Scan(&n)
	return n, err
}

// Close closes the database.
func (st *SQLiteStore) Close() error {
	return st.db.Close()
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var digest, payload []byte
	if err := row.Scan(&digest, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	if sum := blake3.Sum256(payload); !bytes.Equal(sum[:], digest) {
		return nil, errors.Wrap(ErrCorruptSnapshot, "digest mismatch")
	}
	s, err := UnmarshalSnapshot(payload)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "decoding: %v", err)
	}
	return s, nil
}
