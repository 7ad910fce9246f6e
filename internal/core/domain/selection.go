package domain

// SelectionData is the payload produced by the test-selection model for a
// push: per-task and per-group regression-confidence scores plus the
// config/group pairs and task sets the scheduler worked from.
type SelectionData struct {
	Tasks        map[string]float64  `json:"tasks"`
	Groups       map[string]float64  `json:"groups"`
	ConfigGroups map[string][]string `json:"config_groups"`
	ReducedTasks map[string]float64  `json:"reduced_tasks"`
	KnownTasks   []string            `json:"known_tasks"`
}

// GroupConfidence returns the model's confidence score for a group. The
// second return is false when the model had no opinion about the group.
func (s *SelectionData) GroupConfidence(group string) (float64, bool) {
	if s == nil || s.Groups == nil {
		return 0, false
	}
	score, ok := s.Groups[group]
	return score, ok
}
