package practice

import (
	"fmt"

	"replaylab/internal/market"
)

// Result 是决策评估输出。核心只产出判定，讲评文案由外部协作方生成。
type Result struct {
	Decision      market.Action `json:"decision"`
	CorrectAction market.Action `json:"correct_action"`
	IsCorrect     bool          `json:"is_correct"`
}

// Evaluate 比较学员决策与剧本正确动作。纯函数、确定性。
func Evaluate(decision, correct market.Action) (Result, error) {
	decision = market.NormalizeAction(string(decision))
	if !decision.Valid() {
		return Result{}, fmt.Errorf("decision %q 非法（允许 long/short/wait）", decision)
	}
	return Result{
		Decision:      decision,
		CorrectAction: correct,
		IsCorrect:     decision == correct,
	}, nil
}
