package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"replaylab/internal/logger"
	"replaylab/internal/market"

	"github.com/tidwall/gjson"
)

// LoadScenarioFile 读取并校验单个剧本文件。
//
// 流程：schema 校验 -> 反序列化 -> 决策点归一化（time 换算为 index）->
// 业务不变式校验。任何一步失败都拒绝整个文件。
func LoadScenarioFile(path string) (*market.Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario failed: %w", err)
	}
	return ParseScenario(raw)
}

// ParseScenario 从原始 JSON 解析剧本。
func ParseScenario(raw []byte) (*market.Scenario, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("scenario 不是合法 JSON: %w", err)
	}
	if err := scenarioSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("scenario schema 校验失败: %w", err)
	}

	var sc market.Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("scenario 反序列化失败: %w", err)
	}
	sc.DecisionPoint.CorrectAction = market.NormalizeAction(string(sc.DecisionPoint.CorrectAction))

	// index 缺失时按 time 换算：取第一根时间戳 >= time 的 K 线。
	if !gjson.GetBytes(raw, "decision_point.index").Exists() {
		ts := gjson.GetBytes(raw, "decision_point.time")
		if !ts.Exists() {
			return nil, fmt.Errorf("scenario %s: decision_point 缺少 index 与 time", sc.ID)
		}
		idx, ok := market.ResolveDecisionIndex(sc.Bars, ts.Int())
		if !ok {
			return nil, fmt.Errorf("scenario %s: decision time %d 晚于全部 K 线", sc.ID, ts.Int())
		}
		sc.DecisionPoint.Index = idx
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenarioDir 扫描目录下全部 .json 剧本。坏文件跳过并告警，不拖垮整批。
func LoadScenarioDir(dir string) ([]*market.Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir failed: %w", err)
	}
	var out []*market.Scenario
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		sc, err := LoadScenarioFile(path)
		if err != nil {
			logger.Warnf("跳过剧本 %s: %v", e.Name(), err)
			continue
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
