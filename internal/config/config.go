package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Ghost Rooms environment variables.
const EnvPrefix = "GHOST_ROOMS_"

// DefaultEncodings is the capture encoding preference order. The empty entry is
// the platform default and is always available.
var DefaultEncodings = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/mp4",
	"audio/ogg;codecs=opus",
	"",
}

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	Server        Server        `yaml:"server"`
	Client        Client        `yaml:"client"`
	Audio         Audio         `yaml:"audio"`
	Transcription Transcription `yaml:"transcription"`
	Summarization Summarization `yaml:"summarization"`
	Share         Share         `yaml:"share"`

	// Secrets come from env vars only and are never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

type Server struct {
	Addr      string `yaml:"addr"`
	DBPath    string `yaml:"db_path"`
	PublicURL string `yaml:"public_url"`
}

type Client struct {
	ServerURL     string `yaml:"server_url"`
	PollInterval  string `yaml:"poll_interval"`
	NoticeTimeout string `yaml:"notice_timeout"`
	RestartGrace  string `yaml:"restart_grace"`
	PrefsPath     string `yaml:"prefs_path"`
	LogPath       string `yaml:"log_path"`
}

type Audio struct {
	Backend       string   `yaml:"backend"`
	FFmpegCommand string   `yaml:"ffmpeg_command"`
	InputFormat   string   `yaml:"input_format"`
	InputDevice   string   `yaml:"input_device"`
	SampleRate    int      `yaml:"sample_rate"`
	SampleRates   []int    `yaml:"sample_rates"`
	Encodings     []string `yaml:"encodings"`
}

type Transcription struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type Summarization struct {
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

type Share struct {
	Targets               []string `yaml:"targets"`
	ExportDir             string   `yaml:"export_dir"`
	GDriveFolderID        string   `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string   `yaml:"google_credentials_file"`
}

const defaultSummaryPrompt = "You condense chat transcripts. Each line is `author: text`. " +
	"Write a short summary in the same language as the transcript, covering the main topics and any decisions."

func defaults() Config {
	return Config{
		Server: Server{
			Addr:      ":8080",
			DBPath:    "data/ghost-rooms.db",
			PublicURL: "http://127.0.0.1:8080",
		},
		Client: Client{
			ServerURL:     "http://127.0.0.1:8080",
			PollInterval:  "2s",
			NoticeTimeout: "3s",
			RestartGrace:  "150ms",
			PrefsPath:     defaultPrefsPath(),
			LogPath:       "data/ghost-rooms.log",
		},
		Audio: Audio{
			Backend:       "ffmpeg",
			FFmpegCommand: "ffmpeg",
			InputFormat:   "pulse",
			InputDevice:   "default",
			SampleRate:    16000,
			SampleRates:   []int{48000, 44100, 32000, 24000},
			Encodings:     append([]string(nil), DefaultEncodings...),
		},
		Transcription: Transcription{
			Provider: "openai",
			Model:    "whisper-1",
			Language: "ur",
		},
		Summarization: Summarization{
			Model:        "openai/gpt-4o-mini",
			SystemPrompt: defaultSummaryPrompt,
		},
		Share: Share{
			Targets:               []string{"gdrive", "file", "clipboard"},
			ExportDir:             "data/exports",
			GoogleCredentialsFile: "./service-account.json",
		},
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "data/prefs.yaml"
	}
	return dir + string(os.PathSeparator) + "ghost-rooms" + string(os.PathSeparator) + "prefs.yaml"
}

// Load reads a .env file from the working directory (if present), then the YAML
// file (if it exists), applies environment variable overrides, loads secrets, and
// validates the result. It returns the config, any validation warnings, and an
// error if a file exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, nil, fmt.Errorf("load .env file: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedPollInterval returns the reconciliation poll period, falling back to 2s.
func (c *Config) ParsedPollInterval() time.Duration {
	return parseDurationOr(c.Client.PollInterval, 2*time.Second)
}

// ParsedNoticeTimeout returns how long user-visible notices stay up, falling back to 3s.
func (c *Config) ParsedNoticeTimeout() time.Duration {
	return parseDurationOr(c.Client.NoticeTimeout, 3*time.Second)
}

// ParsedRestartGrace returns the pause between releasing and re-acquiring the
// microphone on restart, falling back to 150ms.
func (c *Config) ParsedRestartGrace() time.Duration {
	return parseDurationOr(c.Client.RestartGrace, 150*time.Millisecond)
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.Audio.SampleRates)+len(hardcoded))
	combined = append(combined, c.Audio.SampleRate)
	combined = append(combined, c.Audio.SampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

// APIKeyFor returns the secret for a provider name, or "" when unknown.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	case "deepgram":
		return c.DeepgramAPIKey
	default:
		return ""
	}
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv(EnvPrefix + "SERVER_URL"); v != "" {
		cfg.Client.ServerURL = v
	}
	if v := os.Getenv(EnvPrefix + "POLL_INTERVAL"); v != "" {
		cfg.Client.PollInterval = v
	}
	if v := os.Getenv(EnvPrefix + "PREFS_PATH"); v != "" {
		cfg.Client.PrefsPath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_PATH"); v != "" {
		cfg.Client.LogPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_BACKEND"); v != "" {
		cfg.Audio.Backend = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_INPUT_DEVICE"); v != "" {
		cfg.Audio.InputDevice = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.Audio.SampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.Audio.SampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_PROVIDER"); v != "" {
		cfg.Transcription.Provider = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_MODEL"); v != "" {
		cfg.Transcription.Model = v
	}
	if v := os.Getenv(EnvPrefix + "LANGUAGE"); v != "" {
		cfg.Transcription.Language = v
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_MODEL"); v != "" {
		cfg.Summarization.Model = v
	}
	if v := os.Getenv(EnvPrefix + "EXPORT_DIR"); v != "" {
		cfg.Share.ExportDir = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.Share.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.Share.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.APIKeyFor(cfg.Transcription.Provider) == "" {
		warnings = append(warnings, fmt.Sprintf(
			"No API key for transcription provider %q. Recording will fail at transcription. Set %s%s_API_KEY.",
			cfg.Transcription.Provider, EnvPrefix, strings.ToUpper(cfg.Transcription.Provider)))
	}

	if provider, _, ok := strings.Cut(cfg.Summarization.Model, "/"); !ok {
		warnings = append(warnings, fmt.Sprintf("Invalid summarization model %q. Expected provider/model_name.", cfg.Summarization.Model))
	} else if cfg.APIKeyFor(provider) == "" {
		warnings = append(warnings, fmt.Sprintf(
			"No API key for summarization provider %q. Summaries are disabled. Set %s%s_API_KEY.",
			provider, EnvPrefix, strings.ToUpper(provider)))
	}

	for name, raw := range map[string]string{
		"poll_interval":  cfg.Client.PollInterval,
		"notice_timeout": cfg.Client.NoticeTimeout,
		"restart_grace":  cfg.Client.RestartGrace,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q. Using the default.", name, raw))
		}
	}

	switch cfg.Audio.Backend {
	case "ffmpeg", "portaudio":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown audio backend %q. Using ffmpeg.", cfg.Audio.Backend))
		cfg.Audio.Backend = "ffmpeg"
	}

	if len(cfg.Audio.Encodings) == 0 {
		cfg.Audio.Encodings = append([]string(nil), DefaultEncodings...)
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
