package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup.  Every statement is idempotent.
//
// reservations.held_slot is only non-NULL while the reservation occupies
// its date, and the unique index on it makes a second holder for the same
// date fail at commit with a duplicate key error.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		client_id BIGINT NOT NULL,
		username VARCHAR(64) NOT NULL DEFAULT '',
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		slot_date DATE NOT NULL,
		status ENUM('tentative','confirmed','brief_filed','final_confirmed','completed','cancelled') NOT NULL DEFAULT 'tentative',
		deposit_paid BOOLEAN NOT NULL DEFAULT FALSE,
		final_paid BOOLEAN NOT NULL DEFAULT FALSE,
		brief_completed BOOLEAN NOT NULL DEFAULT FALSE,
		refund_eligible BOOLEAN NOT NULL DEFAULT FALSE,
		cancel_reason VARCHAR(255) NOT NULL DEFAULT '',
		held_slot DATE AS (CASE WHEN status IN ('confirmed','brief_filed','final_confirmed') THEN slot_date END) STORED,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_reservations_held_slot (held_slot),
		KEY idx_reservations_client_date (client_id, slot_date),
		KEY idx_reservations_date_status (slot_date, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS payments (
		id VARCHAR(64) PRIMARY KEY,
		reservation_id BIGINT UNSIGNED NULL,
		client_id BIGINT NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		kind ENUM('deposit','final') NOT NULL,
		status ENUM('pending','succeeded','failed','refunding','refunded') NOT NULL DEFAULT 'pending',
		slot_date DATE NOT NULL,
		idempotency_key CHAR(36) NOT NULL,
		confirmation_url VARCHAR(512) NOT NULL DEFAULT '',
		refunded_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_payments_idempotency (idempotency_key),
		KEY idx_payments_reservation (reservation_id, kind, status),
		CONSTRAINT fk_payments_reservation FOREIGN KEY (reservation_id)
			REFERENCES reservations(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the ledger tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
