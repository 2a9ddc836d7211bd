package service

import (
	"testing"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func singleQuestion(points int) *model.Question {
	return &model.Question{
		Type:   model.SingleAnswer,
		Points: points,
		Choices: []model.Choice{
			{BaseModel: model.BaseModel{ID: 1}, IsCorrect: true},
			{BaseModel: model.BaseModel{ID: 2}},
			{BaseModel: model.BaseModel{ID: 3}},
		},
	}
}

// 4 个选项，1、2 正确
func multipleQuestion(points int) *model.Question {
	return &model.Question{
		Type:   model.MultipleAnswer,
		Points: points,
		Choices: []model.Choice{
			{BaseModel: model.BaseModel{ID: 1}, IsCorrect: true},
			{BaseModel: model.BaseModel{ID: 2}, IsCorrect: true},
			{BaseModel: model.BaseModel{ID: 3}},
			{BaseModel: model.BaseModel{ID: 4}},
		},
	}
}

func TestScoreSelectionSingle(t *testing.T) {
	q := singleQuestion(4)

	assert.Equal(t, 4.0, ScoreSelection(q, []uint{1}), "correct choice earns full points")
	assert.Equal(t, 0.0, ScoreSelection(q, []uint{2}), "wrong choice earns zero")
	assert.Equal(t, 0.0, ScoreSelection(q, []uint{1, 2}), "selecting more than one earns zero")
	assert.Equal(t, 0.0, ScoreSelection(q, nil))
}

func TestScoreSelectionMultipleFullCredit(t *testing.T) {
	q := multipleQuestion(6)
	assert.Equal(t, 6.0, ScoreSelection(q, []uint{1, 2}))
}

func TestScoreSelectionMultiplePartialNoIncorrect(t *testing.T) {
	// 漏选不倒扣：2 个正确项选中 1 个 = 一半分
	q := multipleQuestion(6)
	assert.Equal(t, 3.0, ScoreSelection(q, []uint{1}))
}

func TestScoreSelectionMultipleWithIncorrect(t *testing.T) {
	q := multipleQuestion(6)

	// S=2, I=1, C=2 → (2-1)/2 * 6 = 3
	assert.Equal(t, 3.0, ScoreSelection(q, []uint{1, 2, 3}))
	// S=1, I=1, C=2 → (1-1)/2 * 6 = 0
	assert.Equal(t, 0.0, ScoreSelection(q, []uint{1, 3}))
	// S=0, I=2 → 负数钳到 0
	assert.Equal(t, 0.0, ScoreSelection(q, []uint{3, 4}))
}

func TestScoreSelectionNoCorrectChoicesConfigured(t *testing.T) {
	q := &model.Question{
		Type:   model.MultipleAnswer,
		Points: 5,
		Choices: []model.Choice{
			{BaseModel: model.BaseModel{ID: 1}},
			{BaseModel: model.BaseModel{ID: 2}},
		},
	}
	assert.Equal(t, 0.0, ScoreSelection(q, []uint{1}))
}

func TestSumEarnedPoints(t *testing.T) {
	responses := []model.QuestionResponse{
		{PointsEarned: 2.5},
		{PointsEarned: 0},
		{PointsEarned: 4},
	}
	assert.Equal(t, 6.5, SumEarnedPoints(responses))
	assert.Equal(t, 0.0, SumEarnedPoints(nil))
}
