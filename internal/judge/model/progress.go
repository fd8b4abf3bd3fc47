package model

// RunProgress is the in-flight status of a submission.
type RunProgress struct {
	SubmissionID string `json:"submissionId"`
	State        string `json:"state"`
	Language     string `json:"language"`
	TotalTests   int    `json:"totalTests"`
	DoneTests    int    `json:"doneTests"`
	UpdatedAt    int64  `json:"updatedAt"`
	Final        bool   `json:"final"`
}

// RunEvent is published once per submission when it finishes or fails.
type RunEvent struct {
	SubmissionID string       `json:"submissionId"`
	Result       *RunResponse `json:"result,omitempty"`
	ErrorCode    int          `json:"errorCode,omitempty"`
	Error        string       `json:"error,omitempty"`
	FinishedAt   int64        `json:"finishedAt"`
}
