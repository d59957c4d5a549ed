package protocol

// TodoStatus represents the status of a todo item
type TodoStatus string

const (
	// TodoStatusPending indicates the task has not been started
	TodoStatusPending TodoStatus = "pending"
	// TodoStatusInProgress indicates the task is currently being worked on
	TodoStatusInProgress TodoStatus = "in_progress"
	// TodoStatusCompleted indicates the task has been finished
	TodoStatusCompleted TodoStatus = "completed"
)

// TodoItem represents a single item in the agent's task list.
type TodoItem struct {
	// Content is the description of the task to be completed
	Content string `json:"content"`
	// Status is the current state of the task
	Status TodoStatus `json:"status"`
}

// CountByStatus returns the count of items with each status.
func CountByStatus(items []TodoItem) (pending, inProgress, completed int) {
	for _, item := range items {
		switch item.Status {
		case TodoStatusPending:
			pending++
		case TodoStatusInProgress:
			inProgress++
		case TodoStatusCompleted:
			completed++
		}
	}
	return
}
