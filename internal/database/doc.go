// Package database opens GORM connections with a tuned connection pool.
// It owns dialector selection for the supported drivers (sqlite, postgres,
// mysql), applies pool limits to the underlying sql.DB, and verifies
// connectivity before handing the connection out. Store code never touches
// driver packages directly.
package database
