package services

// ProgressUpdate describes how far a long-running operation has advanced.
// Frames are pushed to connected admin dashboards through the websocket hub.
type ProgressUpdate struct {
	JobID     string `json:"job_id,omitempty"`
	Operation string `json:"operation"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
}

// ProgressBroadcaster pushes progress frames. The websocket hub satisfies it;
// tests use a recording fake.
type ProgressBroadcaster interface {
	BroadcastProgress(update ProgressUpdate)
}
