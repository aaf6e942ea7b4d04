package models

import "errors"

var (
	// ErrRunNotFound 运行记录不存在
	ErrRunNotFound = errors.New("setup run not found")

	// ErrInvalidRunStatus 无效的运行状态
	ErrInvalidRunStatus = errors.New("invalid setup run status")
)

// ValidRunStatus 判断状态是否合法
func ValidRunStatus(status RunStatus) bool {
	switch status {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}
