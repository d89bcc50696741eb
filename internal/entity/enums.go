package entity

// Status represents the progress state of a feature.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// ValidStatuses returns all valid status values in board order.
func ValidStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// IsValidStatus returns true if s is a valid status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Priority represents the urgency of a feature.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities returns all valid priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValidPriority returns true if p is a valid priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// TaskType classifies the layer a task touches.
type TaskType string

const (
	TaskTypeUI      TaskType = "UI"
	TaskTypeBackend TaskType = "Backend"
	TaskTypeDB      TaskType = "DB"
)

// ValidTaskTypes returns all valid task types.
func ValidTaskTypes() []TaskType {
	return []TaskType{TaskTypeUI, TaskTypeBackend, TaskTypeDB}
}

// IsValidTaskType returns true if tt is a valid task type.
func IsValidTaskType(tt TaskType) bool {
	switch tt {
	case TaskTypeUI, TaskTypeBackend, TaskTypeDB:
		return true
	default:
		return false
	}
}
