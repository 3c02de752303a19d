// Package repository implements the ledger on MySQL.  These sentinel values
// let higher layers tell failure scenarios apart without inspecting driver
// errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrSlotTaken is returned when a transition would make a second
// reservation hold the same slot date.  The unique index on held_slot
// raises it at commit time.
var ErrSlotTaken = errors.New("slot already held")

// ErrStaleState is returned when a conditional transition matched no row
// because the reservation is no longer in the expected state.
var ErrStaleState = errors.New("stale reservation state")

const errDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}
