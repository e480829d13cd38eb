package db

// LatestAttemptView picks artifacts of the latest attempt.
//
// The latest attempt is the maximum AttemptId over all of rows, not per task.
// So when rows span tasks with different numbers of attempts,
// tasks which have not reached the maximum attempt are dropped entirely.
func LatestAttemptView(rows []Artifact) []Artifact {
	if len(rows) == 0 {
		return []Artifact{}
	}

	max := rows[0].AttemptId
	for _, r := range rows[1:] {
		if max < r.AttemptId {
			max = r.AttemptId
		}
	}

	view := make([]Artifact, 0, len(rows))
	for _, r := range rows {
		if r.AttemptId == max {
			view = append(view, r)
		}
	}
	return view
}

// AttemptView picks artifacts of the attempt pinned for each task.
//
// # Args
//
// - rows: artifacts.
//
// - attemptByTask: task id -> attempt id. Artifacts of tasks not in this are excluded.
func AttemptView(rows []Artifact, attemptByTask map[int64]int32) []Artifact {
	view := make([]Artifact, 0, len(rows))
	for _, r := range rows {
		a, ok := attemptByTask[r.TaskId]
		if !ok || a != r.AttemptId {
			continue
		}
		view = append(view, r)
	}
	return view
}
