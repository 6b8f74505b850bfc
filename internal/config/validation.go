package config

import "fmt"

func validate(c *Config) error {
	if c.Indicator.EMAFast >= c.Indicator.EMASlow {
		return fmt.Errorf("指标配置非法: ema_fast(%d) 必须小于 ema_slow(%d)", c.Indicator.EMAFast, c.Indicator.EMASlow)
	}
	if c.Practice.DefaultSpeed < 0.25 || c.Practice.DefaultSpeed > 10 {
		return fmt.Errorf("default_speed %.2f 超出允许范围 [0.25, 10]", c.Practice.DefaultSpeed)
	}
	if c.Practice.DefaultRiskPct > 100 {
		return fmt.Errorf("default_risk_pct %.2f 不能超过 100", c.Practice.DefaultRiskPct)
	}
	switch c.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q 非法", c.App.LogLevel)
	}
	return nil
}
