// Package entity provides core domain entities.
package entity

import "time"

// CDCFields are the Change Data Capture columns embedded in every entity.
// The repositories maintain them in SQL: soft-delete paths stamp _deleted_at
// (and clear it on workspace revival) so logical replication can reconstruct
// DELETE events; _txid orders changes more reliably than xmin.
type CDCFields struct {
	DeletedAt *time.Time `db:"_deleted_at" json:"-"`
	TxID      int64      `db:"_txid" json:"-"`
}
