package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// PayloadHash returns the dedupe key for payload.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// StoreRawPayload stores a gzip-compressed provider payload.
// Returns the payload ID, or 0 if the payload was a duplicate (same hash).
func (s *Store) StoreRawPayload(source, endpoint string, locationID *string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	var loc sql.NullString
	if locationID != nil {
		loc = sql.NullString{String: *locationID, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads
		(fetched_at, source, endpoint, location_id, payload_compressed, payload_hash, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(payload_hash) DO NOTHING
	`, time.Now().UTC(), source, endpoint, loc, buf.Bytes(), PayloadHash(payload))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// GetRawPayload retrieves and decompresses a stored payload by ID.
func (s *Store) GetRawPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// RawPayloadStats contains storage statistics for raw payloads.
type RawPayloadStats struct {
	TotalCount     int              `json:"total_count"`
	TotalSizeBytes int64            `json:"total_size_bytes"`
	CountBySource  map[string]int   `json:"count_by_source"`
	SizeBySource   map[string]int64 `json:"size_by_source"`
}

// GetRawPayloadStats returns storage statistics for raw payloads.
func (s *Store) GetRawPayloadStats() (*RawPayloadStats, error) {
	stats := &RawPayloadStats{
		CountBySource: make(map[string]int),
		SizeBySource:  make(map[string]int64),
	}

	rows, err := s.db.Query(`
		SELECT source, COUNT(*), COALESCE(SUM(LENGTH(payload_compressed)), 0)
		FROM raw_payloads
		GROUP BY source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		var size int64
		if err := rows.Scan(&source, &count, &size); err != nil {
			return nil, err
		}
		stats.CountBySource[source] = count
		stats.SizeBySource[source] = size
		stats.TotalCount += count
		stats.TotalSizeBytes += size
	}

	return stats, rows.Err()
}

// CleanupOldRawPayloads deletes raw payloads fetched before now minus the
// retention period. Returns the number of deleted records.
func (s *Store) CleanupOldRawPayloads(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result, err := s.db.Exec(`DELETE FROM raw_payloads WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete raw payloads: %w", err)
	}
	return result.RowsAffected()
}
