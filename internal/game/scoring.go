package game

const (
	ScoreFirstTry  = 3
	ScoreSecondTry = 1
)

// ScoreForAttempts returns the points for a round finished after wrong
// incorrect fills.
func ScoreForAttempts(wrong int, correct bool) int {
	if !correct {
		return 0
	}
	switch wrong {
	case 0:
		return ScoreFirstTry
	case 1:
		return ScoreSecondTry
	}
	return 0
}
