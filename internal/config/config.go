package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the orchestrator. The numeric defaults are
// product-tuning values, not structural requirements, so all of them can be
// overridden from a YAML file or environment variables.
type Config struct {
	// ListenAddr is the address of the transcript ingress websocket server.
	ListenAddr string `yaml:"listen_addr"`

	// Bot identity used for addressed-speech detection.
	BotName    string   `yaml:"bot_name"`
	BotAliases []string `yaml:"bot_aliases"`

	// Lexicons used by the transcript classifier and interrupt handler.
	Greetings     []string `yaml:"greetings"`
	ActionPhrases []string `yaml:"action_phrases"`
	StopPhrases   []string `yaml:"stop_phrases"`
	FillerWords   []string `yaml:"filler_words"`

	// Classifier thresholds.
	MinWords          int           `yaml:"min_words"`
	DuplicateWindow   time.Duration `yaml:"-"`
	PauseGap          time.Duration `yaml:"-"`
	InactivityTimeout time.Duration `yaml:"-"`

	// Route merger weighting. The three weights should sum to 1.0.
	HistoryWeight          float64 `yaml:"history_weight"`
	IntentWeight           float64 `yaml:"intent_weight"`
	InterruptWeight        float64 `yaml:"interrupt_weight"`
	LogOnlyThreshold       float64 `yaml:"log_only_threshold"`
	FullReasoningThreshold float64 `yaml:"full_reasoning_threshold"`
	HistoryWindow          int     `yaml:"history_window"`

	// Sentence chunking and TTS pacing.
	MinUnitChars  int     `yaml:"min_unit_chars"`
	MaxBatchChars int     `yaml:"max_batch_chars"`
	LowWaterSec   float64 `yaml:"low_water_sec"`

	// AudioBytesPerSec converts generated audio bytes to an estimated spoken
	// duration (PCM16 mono at 24 kHz by default).
	AudioBytesPerSec int `yaml:"audio_bytes_per_sec"`

	// TTS provider.
	TTSURL       string        `yaml:"tts_url"`
	TTSAuthToken string        `yaml:"tts_auth_token"`
	TTSVoice     string        `yaml:"tts_voice"`
	TTSTimeout   time.Duration `yaml:"-"`

	// Reasoning agent (OpenAI-compatible chat completions endpoint).
	AgentURL          string        `yaml:"agent_url"`
	AgentAPIKey       string        `yaml:"agent_api_key"`
	AgentModel        string        `yaml:"agent_model"`
	AgentFallback     string        `yaml:"agent_fallback_model"`
	AgentTimeout      time.Duration `yaml:"-"`
	MaxToolIterations int           `yaml:"max_tool_iterations"`
	SystemPrompt      string        `yaml:"system_prompt"`

	// Optional MCP tool server used by the reasoning agent adapter.
	MCPServerURL string `yaml:"mcp_server_url"`

	// Optional audit webhook receiving turn results.
	AuditWebhookURL string        `yaml:"audit_webhook_url"`
	AuditSecret     string        `yaml:"audit_secret"`
	AuditTimeout    time.Duration `yaml:"-"`

	// Audio transport: "log" discards audio, "discord" plays into a voice
	// channel.
	AudioTransport string `yaml:"audio_transport"`
	DiscordToken   string `yaml:"discord_token"`
	GuildID        string `yaml:"guild_id"`
	VoiceChannelID string `yaml:"voice_channel_id"`

	// Session store backend: "memory" or "redis".
	SessionBackend string        `yaml:"session_backend"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisTTL       time.Duration `yaml:"-"`
}

// UnmarshalYAML decodes the config from YAML, accepting "5m"/"15s" style
// duration strings for the time.Duration fields.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig Config
	aux := struct {
		*rawConfig        `yaml:",inline"`
		DuplicateWindow   string `yaml:"duplicate_window"`
		PauseGap          string `yaml:"pause_gap"`
		InactivityTimeout string `yaml:"inactivity_timeout"`
		TTSTimeout        string `yaml:"tts_timeout"`
		AgentTimeout      string `yaml:"agent_timeout"`
		AuditTimeout      string `yaml:"audit_timeout"`
		RedisTTL          string `yaml:"redis_ttl"`
	}{rawConfig: (*rawConfig)(c)}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	for _, f := range []struct {
		raw string
		dst *time.Duration
	}{
		{aux.DuplicateWindow, &c.DuplicateWindow},
		{aux.PauseGap, &c.PauseGap},
		{aux.InactivityTimeout, &c.InactivityTimeout},
		{aux.TTSTimeout, &c.TTSTimeout},
		{aux.AgentTimeout, &c.AgentTimeout},
		{aux.AuditTimeout, &c.AuditTimeout},
		{aux.RedisTTL, &c.RedisTTL},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("config: bad duration %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Default returns the configuration with all reference defaults applied.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		BotName:    "scribe",
		BotAliases: []string{"hey scribe", "ok scribe", "scribe bot"},
		Greetings: []string{
			"hi", "hello", "hey", "hi there", "hello there", "hey there",
			"good morning", "good afternoon", "good evening", "greetings",
		},
		ActionPhrases: []string{
			"send an email", "send email", "email", "schedule", "set up a meeting",
			"create a task", "add a task", "remind me", "take a note", "look up",
			"search for", "can you send", "follow up",
		},
		StopPhrases: []string{
			"stop", "stop talking", "be quiet", "shut up", "hold on", "pause",
			"never mind", "nevermind", "cancel that",
		},
		FillerWords: []string{
			"um", "uh", "hmm", "mhm", "mm", "er", "ah", "like", "you know", "okay", "ok",
		},
		MinWords:          3,
		DuplicateWindow:   15 * time.Second,
		PauseGap:          1200 * time.Millisecond,
		InactivityTimeout: 5 * time.Minute,

		HistoryWeight:          0.4,
		IntentWeight:           0.4,
		InterruptWeight:        0.2,
		LogOnlyThreshold:       0.25,
		FullReasoningThreshold: 0.5,
		HistoryWindow:          10,

		MinUnitChars:  20,
		MaxBatchChars: 300,
		LowWaterSec:   5.0,

		AudioBytesPerSec: 48000,

		TTSVoice:   "alloy",
		TTSTimeout: 10 * time.Second,

		AgentURL:          "http://127.0.0.1:8000/v1",
		AgentModel:        "",
		AgentTimeout:      30 * time.Second,
		MaxToolIterations: 5,
		SystemPrompt: "You are a helpful meeting assistant. Answer briefly and " +
			"conversationally; your replies are spoken aloud in a live call.",

		AuditTimeout: 10 * time.Second,

		AudioTransport: "log",

		SessionBackend: "memory",
		RedisAddr:      "127.0.0.1:6379",
		RedisTTL:       24 * time.Hour,
	}
}

// Load builds a Config from defaults, an optional YAML file, and finally
// environment-variable overrides (highest precedence).
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.MinWords < 1 {
		return fmt.Errorf("config: min_words must be >= 1, got %d", c.MinWords)
	}
	if c.MinUnitChars < 1 {
		return fmt.Errorf("config: min_unit_chars must be >= 1, got %d", c.MinUnitChars)
	}
	if c.MaxBatchChars < c.MinUnitChars {
		return fmt.Errorf("config: max_batch_chars %d below min_unit_chars %d", c.MaxBatchChars, c.MinUnitChars)
	}
	sum := c.HistoryWeight + c.IntentWeight + c.InterruptWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("config: route weights must sum to 1.0, got %.2f", sum)
	}
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown session_backend %q", c.SessionBackend)
	}
	switch c.AudioTransport {
	case "log", "discord":
	default:
		return fmt.Errorf("config: unknown audio_transport %q", c.AudioTransport)
	}
	if c.AudioTransport == "discord" && (c.DiscordToken == "" || c.GuildID == "" || c.VoiceChannelID == "") {
		return fmt.Errorf("config: discord transport requires discord_token, guild_id and voice_channel_id")
	}
	return nil
}

func (c *Config) applyEnv() {
	setStr(&c.ListenAddr, "LISTEN_ADDR")
	setStr(&c.BotName, "BOT_NAME")
	setList(&c.BotAliases, "BOT_ALIASES")
	setList(&c.Greetings, "GREETING_PHRASES")
	setList(&c.ActionPhrases, "ACTION_PHRASES")
	setList(&c.StopPhrases, "STOP_PHRASES")
	setInt(&c.MinWords, "MIN_WORDS")
	setDur(&c.DuplicateWindow, "DUPLICATE_WINDOW")
	setDur(&c.InactivityTimeout, "INACTIVITY_TIMEOUT")
	setStr(&c.TTSURL, "TTS_URL")
	setStr(&c.TTSAuthToken, "TTS_AUTH_TOKEN")
	setStr(&c.TTSVoice, "TTS_VOICE")
	setDur(&c.TTSTimeout, "TTS_TIMEOUT")
	setStr(&c.AgentURL, "AGENT_BASE_URL")
	setStr(&c.AgentAPIKey, "AGENT_API_KEY")
	setStr(&c.AgentModel, "AGENT_MODEL")
	setStr(&c.AgentFallback, "AGENT_FALLBACK_MODEL")
	setDur(&c.AgentTimeout, "AGENT_TIMEOUT")
	setInt(&c.MaxToolIterations, "AGENT_MAX_TOOL_ITERATIONS")
	setStr(&c.MCPServerURL, "MCP_SERVER_URL")
	setStr(&c.AuditWebhookURL, "AUDIT_WEBHOOK_URL")
	setStr(&c.AuditSecret, "AUDIT_WEBHOOK_SECRET")
	setStr(&c.AudioTransport, "AUDIO_TRANSPORT")
	setStr(&c.DiscordToken, "DISCORD_TOKEN")
	setStr(&c.GuildID, "GUILD_ID")
	setStr(&c.VoiceChannelID, "VOICE_CHANNEL_ID")
	setStr(&c.SessionBackend, "SESSION_BACKEND")
	setStr(&c.RedisAddr, "REDIS_ADDR")
	setStr(&c.RedisPassword, "REDIS_PASSWORD")
	setDur(&c.RedisTTL, "REDIS_TTL")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDur(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setList(dst *[]string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
