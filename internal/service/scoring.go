package service

import (
	"lms_backend/internal/model"
)

// ScoreSelection 按题型对一次选择计分，作答时计算一次并落库，之后不再重算，
// 题库后续被编辑也不影响已判分的作答。
//
// 单选：选中且仅选中正确项得满分，否则 0 分。
// 多选：C 个正确项中选中 S 个、误选 I 个；
//
//	I>0 时 max(0, (S-I)/C)*points，错选按比例倒扣，下限 0；
//	I=0 时 (S/C)*points，漏选不倒扣，按覆盖比例给分。
func ScoreSelection(question *model.Question, selectedIDs []uint) float64 {
	selected := make(map[uint]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	if question.Type == model.SingleAnswer {
		if len(selected) != 1 {
			return 0
		}
		for _, choice := range question.Choices {
			if choice.IsCorrect && selected[choice.ID] {
				return float64(question.Points)
			}
		}
		return 0
	}

	var totalCorrect, selectedCorrect, selectedIncorrect int
	for _, choice := range question.Choices {
		if choice.IsCorrect {
			totalCorrect++
			if selected[choice.ID] {
				selectedCorrect++
			}
		} else if selected[choice.ID] {
			selectedIncorrect++
		}
	}

	// 题库不变式保证至少一个正确项，违反时按 0 分兜底而不是除零
	if totalCorrect == 0 {
		return 0
	}

	c := float64(totalCorrect)
	s := float64(selectedCorrect)
	i := float64(selectedIncorrect)
	points := float64(question.Points)

	if selectedIncorrect > 0 {
		earned := (s/c - i/c) * points
		if earned < 0 {
			return 0
		}
		return earned
	}
	return (s / c) * points
}

// SumEarnedPoints 汇总一次作答的得分
func SumEarnedPoints(responses []model.QuestionResponse) float64 {
	var earned float64
	for _, r := range responses {
		earned += r.PointsEarned
	}
	return earned
}
