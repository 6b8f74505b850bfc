package config

// Config 是 replaylab 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Practice  PracticeConfig  `toml:"practice"`
	Indicator IndicatorConfig `toml:"indicator"`
	Store     StoreConfig     `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// PracticeConfig 控制回放与模拟账户的默认参数。
type PracticeConfig struct {
	ScenarioDir    string  `toml:"scenario_dir"`
	WatchScenarios bool    `toml:"watch_scenarios"`
	CoursesPath    string  `toml:"courses_path"`
	InitialBalance float64 `toml:"initial_balance"`
	BaseIntervalMs int     `toml:"base_interval_ms"`
	DefaultSpeed   float64 `toml:"default_speed"`
	DefaultRiskPct float64 `toml:"default_risk_pct"`
}

// IndicatorConfig 是指标序列的默认参数。
type IndicatorConfig struct {
	EMAFast              int `toml:"ema_fast"`
	EMASlow              int `toml:"ema_slow"`
	VolumeProfileBuckets int `toml:"volume_profile_buckets"`
}

// StoreConfig 指定场景库与结果库的落盘位置。
type StoreConfig struct {
	DataRoot    string `toml:"data_root"`
	ResultsPath string `toml:"results_path"`
}
