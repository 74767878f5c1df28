package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/betbot/utpunwind/internal/unwind"
	"github.com/betbot/utpunwind/pkg/logger"
)

// RPCConfig 链上 RPC 配置
type RPCConfig struct {
	Endpoint          string  // HTTP(S) JSON-RPC 地址
	WSEndpoint        string  // WebSocket 地址，为空时由 Endpoint 推导
	Commitment        string  // processed / confirmed / finalized
	RequestsPerSecond float64 // 发送交易的速率上限，<=0 表示不限制
}

// WalletConfig 钱包配置（按顺序取第一个非空来源）
type WalletConfig struct {
	Key        string // JSON 字节数组
	Path       string // keypair 文件路径
	Mnemonic   string
	Passphrase string
	SecretDB   string // badger 加密库路径
	SecretKey  string // badger 加密密钥（32 字节 hex/base64）
}

// BridgeConfig 协议桥接服务配置
type BridgeConfig struct {
	URL         string
	Environment string
	Timeout     time.Duration
	RetryCount  int
}

// UnwindConfig 平仓阈值与节奏
type UnwindConfig struct {
	EquityThreshold decimal.Decimal // 账户权益大于该值才提取到钱包
	MangoDust       decimal.Decimal // Mango 提取时保留的余量
	ZoDust          decimal.Decimal // 01 提取时保留的余量
	ZoMinWithdrawal decimal.Decimal // 01 最小提取金额
	SettleDelay     time.Duration   // 每次结算后的等待
	ComputeUnits    uint32          // Mango 下单的计算单元
}

// Config 应用配置
type Config struct {
	RPC     RPCConfig
	Wallet  WalletConfig
	Bridge  BridgeConfig
	Unwind  UnwindConfig
	Log     logger.Config
	Journal string // SQLite 运行日志路径，为空则不记录
	DryRun  bool   // 只模拟交易，不上链
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	RPC struct {
		Endpoint          string  `yaml:"endpoint" json:"endpoint"`
		WSEndpoint        string  `yaml:"ws_endpoint" json:"ws_endpoint"`
		Commitment        string  `yaml:"commitment" json:"commitment"`
		RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	} `yaml:"rpc" json:"rpc"`
	Wallet struct {
		Path     string `yaml:"path" json:"path"`
		SecretDB string `yaml:"secret_db" json:"secret_db"`
	} `yaml:"wallet" json:"wallet"`
	Bridge struct {
		URL         string `yaml:"url" json:"url"`
		Environment string `yaml:"environment" json:"environment"`
		Timeout     string `yaml:"timeout" json:"timeout"`
		RetryCount  *int   `yaml:"retry_count" json:"retry_count"`
	} `yaml:"bridge" json:"bridge"`
	Unwind struct {
		EquityThreshold string `yaml:"equity_threshold" json:"equity_threshold"`
		MangoDust       string `yaml:"mango_dust" json:"mango_dust"`
		ZoDust          string `yaml:"zo_dust" json:"zo_dust"`
		ZoMinWithdrawal string `yaml:"zo_min_withdrawal" json:"zo_min_withdrawal"`
		SettleDelay     string `yaml:"settle_delay" json:"settle_delay"`
		ComputeUnits    uint32 `yaml:"compute_units" json:"compute_units"`
	} `yaml:"unwind" json:"unwind"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   bool   `yaml:"compress" json:"compress"`
	} `yaml:"log" json:"log"`
	Journal string `yaml:"journal" json:"journal"`
	DryRun  bool   `yaml:"dry_run" json:"dry_run"`
}

// Default 默认配置
func Default() *Config {
	opts := unwind.DefaultOptions()
	return &Config{
		RPC: RPCConfig{
			Commitment:        "confirmed",
			RequestsPerSecond: 5,
		},
		Bridge: BridgeConfig{
			Environment: "production",
			Timeout:     60 * time.Second,
			RetryCount:  3,
		},
		Unwind: UnwindConfig{
			EquityThreshold: opts.EquityThreshold,
			MangoDust:       opts.MangoDust,
			ZoDust:          opts.ZoDust,
			ZoMinWithdrawal: opts.ZoMinWithdrawal,
			SettleDelay:     opts.SettleDelay,
			ComputeUnits:    opts.ComputeUnits,
		},
		Log: logger.Config{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Journal: "data/unwind.db",
	}
}

// Load 加载配置（优先级：环境变量 > 配置文件 > 默认值），filePath 可为空
func Load(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		cf, err := loadConfigFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "加载配置文件失败 %s", filePath)
		}
		if err := cfg.applyFile(cf); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.RPC.WSEndpoint == "" {
		cfg.RPC.WSEndpoint = deriveWSEndpoint(cfg.RPC.Endpoint)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, errors.Wrap(err, "解析 YAML 配置文件失败")
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, errors.Wrap(err, "解析 JSON 配置文件失败")
		}
	default:
		return nil, errors.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

// applyFile 用配置文件中的非零值覆盖默认值
func (c *Config) applyFile(cf *ConfigFile) error {
	c.RPC.Endpoint = firstNonEmpty(cf.RPC.Endpoint, c.RPC.Endpoint)
	c.RPC.WSEndpoint = firstNonEmpty(cf.RPC.WSEndpoint, c.RPC.WSEndpoint)
	c.RPC.Commitment = firstNonEmpty(cf.RPC.Commitment, c.RPC.Commitment)
	if cf.RPC.RequestsPerSecond != 0 {
		c.RPC.RequestsPerSecond = cf.RPC.RequestsPerSecond
	}

	c.Wallet.Path = firstNonEmpty(cf.Wallet.Path, c.Wallet.Path)
	c.Wallet.SecretDB = firstNonEmpty(cf.Wallet.SecretDB, c.Wallet.SecretDB)

	c.Bridge.URL = firstNonEmpty(cf.Bridge.URL, c.Bridge.URL)
	c.Bridge.Environment = firstNonEmpty(cf.Bridge.Environment, c.Bridge.Environment)
	if cf.Bridge.RetryCount != nil {
		c.Bridge.RetryCount = *cf.Bridge.RetryCount
	}

	var err error
	if c.Bridge.Timeout, err = durationOr(cf.Bridge.Timeout, c.Bridge.Timeout, "bridge.timeout"); err != nil {
		return err
	}
	if c.Unwind.SettleDelay, err = durationOr(cf.Unwind.SettleDelay, c.Unwind.SettleDelay, "unwind.settle_delay"); err != nil {
		return err
	}
	if c.Unwind.EquityThreshold, err = decimalOr(cf.Unwind.EquityThreshold, c.Unwind.EquityThreshold, "unwind.equity_threshold"); err != nil {
		return err
	}
	if c.Unwind.MangoDust, err = decimalOr(cf.Unwind.MangoDust, c.Unwind.MangoDust, "unwind.mango_dust"); err != nil {
		return err
	}
	if c.Unwind.ZoDust, err = decimalOr(cf.Unwind.ZoDust, c.Unwind.ZoDust, "unwind.zo_dust"); err != nil {
		return err
	}
	if c.Unwind.ZoMinWithdrawal, err = decimalOr(cf.Unwind.ZoMinWithdrawal, c.Unwind.ZoMinWithdrawal, "unwind.zo_min_withdrawal"); err != nil {
		return err
	}
	if cf.Unwind.ComputeUnits != 0 {
		c.Unwind.ComputeUnits = cf.Unwind.ComputeUnits
	}

	c.Log.Level = firstNonEmpty(cf.Log.Level, c.Log.Level)
	c.Log.OutputFile = firstNonEmpty(cf.Log.File, c.Log.OutputFile)
	if cf.Log.MaxSize > 0 {
		c.Log.MaxSize = cf.Log.MaxSize
	}
	if cf.Log.MaxBackups > 0 {
		c.Log.MaxBackups = cf.Log.MaxBackups
	}
	if cf.Log.MaxAge > 0 {
		c.Log.MaxAge = cf.Log.MaxAge
	}
	c.Log.Compress = c.Log.Compress || cf.Log.Compress

	c.Journal = firstNonEmpty(cf.Journal, c.Journal)
	c.DryRun = c.DryRun || cf.DryRun
	return nil
}

// applyEnv 环境变量覆盖（秘密只从环境变量读取）
func (c *Config) applyEnv() error {
	c.RPC.Endpoint = getEnv("RPC_ENDPOINT", c.RPC.Endpoint)
	c.RPC.WSEndpoint = getEnv("RPC_WS_ENDPOINT", c.RPC.WSEndpoint)
	c.RPC.Commitment = getEnv("RPC_COMMITMENT", c.RPC.Commitment)
	c.RPC.RequestsPerSecond = parseFloatEnv("RPC_REQUESTS_PER_SECOND", c.RPC.RequestsPerSecond)

	c.Wallet.Key = getEnv("WALLET_KEY", c.Wallet.Key)
	c.Wallet.Path = getEnv("WALLET", c.Wallet.Path)
	c.Wallet.Mnemonic = getEnv("WALLET_MNEMONIC", c.Wallet.Mnemonic)
	c.Wallet.Passphrase = getEnv("WALLET_PASSPHRASE", c.Wallet.Passphrase)
	c.Wallet.SecretDB = getEnv("WALLET_SECRET_DB", c.Wallet.SecretDB)
	c.Wallet.SecretKey = getEnv("WALLET_SECRET_KEY", c.Wallet.SecretKey)

	c.Bridge.URL = getEnv("MARGINFI_BRIDGE_URL", c.Bridge.URL)
	c.Bridge.Environment = getEnv("MARGINFI_ENVIRONMENT", c.Bridge.Environment)

	var err error
	if c.Unwind.EquityThreshold, err = decimalOr(os.Getenv("UNWIND_EQUITY_THRESHOLD"), c.Unwind.EquityThreshold, "UNWIND_EQUITY_THRESHOLD"); err != nil {
		return err
	}
	if c.Unwind.SettleDelay, err = durationOr(os.Getenv("UNWIND_SETTLE_DELAY"), c.Unwind.SettleDelay, "UNWIND_SETTLE_DELAY"); err != nil {
		return err
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.OutputFile = getEnv("LOG_FILE", c.Log.OutputFile)
	c.Journal = getEnv("JOURNAL_PATH", c.Journal)
	c.DryRun = parseBoolEnv("DRY_RUN", c.DryRun)
	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := validateURL("RPC_ENDPOINT", c.RPC.Endpoint, "http", "https"); err != nil {
		return err
	}
	if c.RPC.WSEndpoint != "" {
		if err := validateURL("RPC_WS_ENDPOINT", c.RPC.WSEndpoint, "ws", "wss"); err != nil {
			return err
		}
	}
	switch c.RPC.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return errors.Errorf("RPC_COMMITMENT 无效: %q (processed/confirmed/finalized)", c.RPC.Commitment)
	}
	if err := validateURL("MARGINFI_BRIDGE_URL", c.Bridge.URL, "http", "https"); err != nil {
		return err
	}
	if c.Bridge.RetryCount < 0 {
		return errors.New("bridge.retry_count 不能为负数")
	}
	if c.Bridge.Timeout <= 0 {
		return errors.New("bridge.timeout 必须大于 0")
	}

	w := c.Wallet
	if w.Key == "" && w.Path == "" && w.Mnemonic == "" && w.SecretDB == "" {
		return errors.New("钱包未配置: 需要 WALLET_KEY、WALLET、WALLET_MNEMONIC 或 WALLET_SECRET_DB 之一")
	}
	if w.Key == "" && w.Path == "" && w.Mnemonic == "" && w.SecretKey == "" {
		return errors.New("使用 WALLET_SECRET_DB 时必须设置 WALLET_SECRET_KEY")
	}

	u := c.Unwind
	for name, v := range map[string]decimal.Decimal{
		"unwind.equity_threshold":  u.EquityThreshold,
		"unwind.mango_dust":        u.MangoDust,
		"unwind.zo_dust":           u.ZoDust,
		"unwind.zo_min_withdrawal": u.ZoMinWithdrawal,
	} {
		if v.IsNegative() {
			return errors.Errorf("%s 不能为负数", name)
		}
	}
	if u.SettleDelay < 0 {
		return errors.New("unwind.settle_delay 不能为负数")
	}
	if u.ComputeUnits == 0 {
		return errors.New("unwind.compute_units 必须大于 0")
	}
	return nil
}

// UnwindOptions 转换为平仓参数
func (c *Config) UnwindOptions() unwind.Options {
	return unwind.Options{
		EquityThreshold: c.Unwind.EquityThreshold,
		MangoDust:       c.Unwind.MangoDust,
		ZoDust:          c.Unwind.ZoDust,
		ZoMinWithdrawal: c.Unwind.ZoMinWithdrawal,
		SettleDelay:     c.Unwind.SettleDelay,
		ComputeUnits:    c.Unwind.ComputeUnits,
	}
}

func validateURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return errors.Errorf("%s 未配置", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return errors.Errorf("%s 不是有效的 URL: %q", name, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return errors.Errorf("%s 协议必须是 %s: %q", name, strings.Join(schemes, "/"), raw)
}

// deriveWSEndpoint http(s) -> ws(s)，同主机同路径
func deriveWSEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func decimalOr(raw string, def decimal.Decimal, name string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return def, errors.Errorf("%s 不是有效的数字: %q", name, raw)
	}
	return d, nil
}

func durationOr(raw string, def time.Duration, name string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, errors.Errorf("%s 不是有效的时长: %q", name, raw)
	}
	return d, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseFloatEnv 解析浮点数环境变量
func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
