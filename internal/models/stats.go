package models

// DashboardStats is the aggregate shown on the dashboard for one user
type DashboardStats struct {
	TotalTasks         int `json:"totalTasks"`
	CompletedTasks     int `json:"completedTasks"`
	ActiveTasks        int `json:"activeTasks"`
	CompletionRate     int `json:"completionRate"`
	ProductivityChange int `json:"productivityChange"`
	TasksChange        int `json:"tasksChange"`
	ThisWeekCompleted  int `json:"thisWeekCompleted"`
}
