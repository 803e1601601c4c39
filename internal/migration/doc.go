/*
Package migration manages the behavior store schema on PostgreSQL and MySQL
through golang-migrate, with the SQL migration files embedded per dialect.

The schema it owns is small: the behavior_models table holding one serialized
behavior model per user, matching what the GORM store auto-migrates on SQLite
for development setups. SQLite therefore has no migration files here and
ParseDatabaseType rejects it outright.

Migrator is the operation set (Up, Down, DownAll, Steps, Force, Version,
Status, Info), DefaultMigrator the golang-migrate-backed implementation, and
CLI the formatting layer behind `smalltalk migrate`. Factory functions build
a migrator from the application config, its database section or a raw URL.
*/
package migration
