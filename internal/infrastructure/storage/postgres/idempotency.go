package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"numerus/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// pendingStaleAfter is how long a pending claim stays exclusive. A request
// that crashed between claim and completion releases its key after this.
const pendingStaleAfter = time.Minute

// IdempotencyRecord is one row of sys_idempotency.
type IdempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
	ExpiresAt   time.Time         `db:"expires_at"`
}

// IdempotencyReplay is the cached HTTP response handed back for a repeated
// key.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (r *IdempotencyRecord) replay() *IdempotencyReplay {
	rp := &IdempotencyReplay{
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Body:        r.Response,
	}
	// Rows written before the response columns existed fall back to a
	// plain JSON 200.
	if rp.StatusCode == 0 {
		rp.StatusCode = 200
	}
	if rp.ContentType == "" {
		rp.ContentType = "application/json"
	}
	return rp
}

// IdempotencyStore claims and completes idempotency keys in the tenant
// database. All statements run through the TxManager, so a claim made
// inside a request transaction commits or rolls back with it.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates an idempotency store. ttl is how long
// completed responses stay replayable.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		ttl:       ttl,
	}
}

// AcquireKey claims an idempotency key for this request.
//
//	(nil, nil)     the key is ours, proceed with the operation
//	(replay, nil)  the operation already ran, return the cached response
//	(nil, err)     the key is held by an in-flight request, or was reused
//	               for a different request
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := time.Now().UTC()

	// One round trip decides everything: the upsert either creates a
	// pending claim or returns the existing row. (xmax = 0) is true only
	// for rows our own INSERT created.
	var row struct {
		IdempotencyRecord
		Inserted bool `db:"inserted"`
	}
	err := pgxscan.Get(ctx, s.txManager.GetQuerier(ctx), &row, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			expires_at = GREATEST(sys_idempotency.expires_at, $7)
		RETURNING idempotency_key, user_id, operation, status, request_hash, response,
		          response_status, response_content_type, created_at, updated_at, expires_at,
		          (xmax = 0) AS inserted
	`, key, userID, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	if row.Inserted {
		return nil, nil
	}

	// The key predates this request: refuse reuse for a different one.
	if row.UserID != userID || row.Operation != operation || row.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_user_id", row.UserID).
			WithDetail("request_user_id", userID).
			WithDetail("stored_operation", row.Operation).
			WithDetail("request_operation", operation).
			WithDetail("stored_request_hash", row.RequestHash).
			WithDetail("request_request_hash", requestHash)
	}

	switch row.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return row.replay(), nil

	case IdempotencyStatusPending:
		if time.Since(row.UpdatedAt) <= pendingStaleAfter {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		// The previous claimant is presumed dead. Refresh the claim
		// timestamp and take over; racers past this line are tolerated,
		// the operation behind the key is idempotent by contract.
		_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE sys_idempotency
			SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3
		`, now, key, IdempotencyStatusPending)
		if err != nil {
			return nil, fmt.Errorf("reclaim stale key: %w", err)
		}
		return nil, nil
	}

	return nil, nil
}

// CompleteKey stores the successful response under the key.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finishKey(ctx, key, IdempotencyStatusSuccess, statusCode, contentType, response)
}

// FailKey stores a failed response under the key, so retries replay the
// failure instead of re-running the operation.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finishKey(ctx, key, IdempotencyStatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finishKey(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, response any) error {
	var body []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			if status == IdempotencyStatusSuccess {
				return fmt.Errorf("marshal response: %w", err)
			}
			// A failure must be recorded even when its body won't marshal.
			b, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		body = b
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, status, body, statusCode, contentType, time.Now().UTC(), key)
	return err
}

// CleanupExpired removes keys whose replay window has passed. The worker
// runs this on its housekeeping tick.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
