package models

// ModelRegistry lists every model covered by --auto-migrate.
var ModelRegistry = []interface{}{
	&WaitlistEntry{},
}
