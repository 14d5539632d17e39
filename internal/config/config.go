package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`
}

type WS struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

type SFU struct {
	Workers         int `mapstructure:"workers"`
	MaxRooms        int `mapstructure:"max_rooms"`
	MaxParticipants int `mapstructure:"max_participants_per_room"`
}

type Audio struct {
	SampleRate    int     `mapstructure:"sample_rate"`
	ASRSampleRate int     `mapstructure:"asr_sample_rate"`
	SilenceRMS    float64 `mapstructure:"silence_rms"`
}

type Pipeline struct {
	TargetLatency time.Duration `mapstructure:"target_latency"`
	CacheCapacity int           `mapstructure:"cache_capacity"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
}

type OpenAI struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type Models struct {
	Engine        string        `mapstructure:"engine"`
	Warmup        bool          `mapstructure:"warmup"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	OpenAI        OpenAI        `mapstructure:"openai"`
}

type BatchStage struct {
	MaxSize int           `mapstructure:"max_size"`
	MaxWait time.Duration `mapstructure:"max_wait"`
}

type Batch struct {
	MT  BatchStage `mapstructure:"mt"`
	TTS BatchStage `mapstructure:"tts"`
}

type Profile struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type Config struct {
	Server   Server   `mapstructure:"server"`
	WS       WS       `mapstructure:"ws"`
	SFU      SFU      `mapstructure:"sfu"`
	Audio    Audio    `mapstructure:"audio"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Models   Models   `mapstructure:"models"`
	Batch    Batch    `mapstructure:"batch"`
	Profile  Profile  `mapstructure:"profile"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("ORBIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Workers: %d | Engine: %s\n",
		cfg.Server.Mode, cfg.Server.Port, cfg.SFU.Workers, cfg.Models.Engine)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.secret", "orbis-dev-secret")

	v.SetDefault("ws.read_limit", 1<<20)
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("ws.ping_period", "54s")

	v.SetDefault("sfu.workers", 4)
	v.SetDefault("sfu.max_rooms", 1000)
	v.SetDefault("sfu.max_participants_per_room", 100)

	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.asr_sample_rate", 16000)
	v.SetDefault("audio.silence_rms", 0.001)

	v.SetDefault("pipeline.target_latency", "150ms")
	v.SetDefault("pipeline.cache_capacity", 1000)
	v.SetDefault("pipeline.queue_capacity", 100)
	v.SetDefault("pipeline.poll_timeout", "1s")

	v.SetDefault("models.engine", "fake")
	v.SetDefault("models.warmup", false)
	v.SetDefault("models.idle_timeout", "1h")
	v.SetDefault("models.check_interval", "5m")
	v.SetDefault("models.openai.model", "gpt-4o-mini")

	v.SetDefault("batch.mt.max_size", 8)
	v.SetDefault("batch.mt.max_wait", "20ms")
	v.SetDefault("batch.tts.max_size", 4)
	v.SetDefault("batch.tts.max_wait", "20ms")

	v.SetDefault("profile.backend", "memory")
	v.SetDefault("profile.dir", "./data/profiles")
}
