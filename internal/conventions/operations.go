package conventions

import "github.com/slok/opstrack/internal/model"

// Surface names.
const (
	BackupLogSurface       = "backup-log"
	BackupStatusSurface    = "backup-status"
	RestoreLogSurface      = "restore-log"
	RestoreStatusSurface   = "restore-status"
	OperationLogSurface    = "operation-log"
	OperationStatusSurface = "operation-status"
)

// Server endpoints.
const (
	PingEndpoint       = "/ping"
	BackupsEndpoint    = "/api/backups"
	TaskStatusEndpoint = "/api/task/%s/status"
)

// HeartbeatSurfaces is the preference order of the log surfaces used to report
// keepalive failures.
var HeartbeatSurfaces = []string{BackupLogSurface, RestoreLogSurface, OperationLogSurface}

var defaultEndpoints = map[model.OperationType]string{
	model.OperationBackup:     "/api/backup/create",
	model.OperationRestore:    "/api/backup/restore",
	model.OperationVerify:     "/api/backup/verify",
	model.OperationDelete:     "/api/backup/delete",
	model.OperationBulkDelete: "/api/backup/bulk-delete",
	model.OperationDryRun:     "/api/backup/restore/dry-run",
}

// DefaultEndpoint returns the built-in launch endpoint of an operation type.
func DefaultEndpoint(op model.OperationType) string { return defaultEndpoints[op] }

// Surfaces returns the log and status surfaces where an operation type reports.
func Surfaces(op model.OperationType) (logSurface, statusSurface string) {
	switch op {
	case model.OperationBackup:
		return BackupLogSurface, BackupStatusSurface
	case model.OperationRestore, model.OperationDryRun:
		return RestoreLogSurface, RestoreStatusSurface
	default:
		return OperationLogSurface, OperationStatusSurface
	}
}

// RefreshesBackups returns true for the operation types that change the available backups.
func RefreshesBackups(op model.OperationType) bool {
	switch op {
	case model.OperationBackup, model.OperationDelete, model.OperationBulkDelete:
		return true
	}
	return false
}
