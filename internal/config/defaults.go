package config

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8087"
	}
	if c.Practice.ScenarioDir == "" {
		c.Practice.ScenarioDir = "scenarios"
	}
	if c.Practice.CoursesPath == "" {
		c.Practice.CoursesPath = "configs/courses.yaml"
	}
	if c.Practice.InitialBalance <= 0 {
		c.Practice.InitialBalance = 25000
	}
	if c.Practice.BaseIntervalMs <= 0 {
		c.Practice.BaseIntervalMs = 1000
	}
	if c.Practice.DefaultSpeed <= 0 {
		c.Practice.DefaultSpeed = 1
	}
	if c.Practice.DefaultRiskPct <= 0 {
		c.Practice.DefaultRiskPct = 1
	}
	if c.Indicator.EMAFast <= 0 {
		c.Indicator.EMAFast = 9
	}
	if c.Indicator.EMASlow <= 0 {
		c.Indicator.EMASlow = 21
	}
	if c.Indicator.VolumeProfileBuckets <= 0 {
		c.Indicator.VolumeProfileBuckets = 24
	}
	if c.Store.DataRoot == "" {
		c.Store.DataRoot = "data"
	}
	if c.Store.ResultsPath == "" {
		c.Store.ResultsPath = "data/results.db"
	}
}
