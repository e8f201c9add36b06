package study

// QuestionsForMinutes maps a session length to its question count: 10->1, 20->2, 30->3, else 1.
func QuestionsForMinutes(minutes int) int {
	switch minutes {
	case 20:
		return 2
	case 30:
		return 3
	default:
		return 1
	}
}
