package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/language"
)

const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	EngineTesseract = "tesseract"
	EngineYandex    = "yandex"

	DefaultMaxAttempts   = 3
	DefaultMinConfidence = 0.30
	DefaultLanguage      = "es"
	DefaultModel         = "llama3.2:3b"
	DefaultOllamaURL     = "http://localhost:11434"
)

type Config struct {
	Notion    Notion    `yaml:"notion"`
	Model     Model     `yaml:"model"`
	Interpret Interpret `yaml:"interpret"`
	OCR       OCR       `yaml:"ocr"`
	Yandex    Yandex    `yaml:"yandex"`
	Telegram  Telegram  `yaml:"telegram"`
	Log       Log       `yaml:"log"`

	Workers     int    `yaml:"workers"`
	DatabaseURL string `yaml:"database_url"`
	Port        string `yaml:"port"`
}

type Notion struct {
	Token        string `yaml:"token"`
	ParentPageID string `yaml:"parent_page_id"`
}

type Model struct {
	Provider     string `yaml:"provider"`
	Name         string `yaml:"name"`
	OllamaURL    string `yaml:"ollama_url"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

type Interpret struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Language    string `yaml:"language"`
}

type OCR struct {
	Engine        string   `yaml:"engine"`
	Languages     []string `yaml:"languages"`
	MinConfidence float64  `yaml:"min_confidence"`
	DebugDir      string   `yaml:"debug_dir"`
}

type Yandex struct {
	OAuthToken string `yaml:"oauth_token"`
	FolderID   string `yaml:"folder_id"`
}

type Telegram struct {
	Token string `yaml:"token"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Model: Model{
			Provider:  ProviderOllama,
			Name:      DefaultModel,
			OllamaURL: DefaultOllamaURL,
		},
		Interpret: Interpret{
			MaxAttempts: DefaultMaxAttempts,
			Language:    DefaultLanguage,
		},
		OCR: OCR{
			Engine:        EngineTesseract,
			Languages:     []string{"eng"},
			MinConfidence: DefaultMinConfidence,
		},
		Log:     Log{Level: "info", Format: "text"},
		Workers: 2,
		Port:    "8080",
	}
}

// Load builds the config: defaults, then the YAML file (path or QUIZDOC_CONFIG), then env.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv("QUIZDOC_CONFIG"))
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Notion.Token = getEnv("NOTION_TOKEN", c.Notion.Token)
	c.Notion.ParentPageID = getEnv("NOTION_PARENT_PAGE_ID", c.Notion.ParentPageID)

	c.Model.Provider = strings.ToLower(getEnv("MODEL_PROVIDER", c.Model.Provider))
	c.Model.Name = getEnv("MODEL_NAME", c.Model.Name)
	c.Model.OllamaURL = getEnv("OLLAMA_URL", c.Model.OllamaURL)
	c.Model.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Model.GeminiAPIKey)
	c.Model.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.Model.OpenAIAPIKey)

	c.Interpret.Language = getEnv("EXPLANATION_LANGUAGE", c.Interpret.Language)
	c.OCR.Engine = strings.ToLower(getEnv("OCR_ENGINE", c.OCR.Engine))
	c.OCR.DebugDir = getEnv("OCR_DEBUG_DIR", c.OCR.DebugDir)
	if v := getEnv("OCR_LANGUAGES", ""); v != "" {
		c.OCR.Languages = splitList(v)
	}

	c.Yandex.OAuthToken = getEnv("YC_OAUTH_TOKEN", c.Yandex.OAuthToken)
	c.Yandex.FolderID = getEnv("YC_FOLDER_ID", c.Yandex.FolderID)
	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Port = getEnv("PORT", c.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	var err error
	if c.Interpret.MaxAttempts, err = getEnvInt("INTERPRET_MAX_ATTEMPTS", c.Interpret.MaxAttempts); err != nil {
		return err
	}
	if c.Workers, err = getEnvInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if c.OCR.MinConfidence, err = getEnvFloat("OCR_MIN_CONFIDENCE", c.OCR.MinConfidence); err != nil {
		return err
	}
	return nil
}

// Validate checks the core configuration surface. Credentials for optional
// surfaces (bot, ledger) are checked by the commands that need them.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Notion.ParentPageID) == "" {
		errs = append(errs, errors.New("notion parent page id is required (NOTION_PARENT_PAGE_ID)"))
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		errs = append(errs, errors.New("model name is required (MODEL_NAME)"))
	}
	if c.Interpret.MaxAttempts < 1 || c.Interpret.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("interpret max attempts must be in 1..10, got %d", c.Interpret.MaxAttempts))
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("ocr min confidence must be in [0,1], got %v", c.OCR.MinConfidence))
	}
	if _, err := language.Parse(c.Interpret.Language); err != nil {
		errs = append(errs, fmt.Errorf("explanation language %q: %w", c.Interpret.Language, err))
	}
	switch c.Model.Provider {
	case ProviderOllama:
	case ProviderGemini:
		if c.Model.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is empty"))
		}
	case ProviderOpenAI:
		if c.Model.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q; use ollama | gemini | openai", c.Model.Provider))
	}
	switch c.OCR.Engine {
	case EngineTesseract:
	case EngineYandex:
		if c.Yandex.OAuthToken == "" || c.Yandex.FolderID == "" {
			errs = append(errs, errors.New("yandex engine needs YC_OAUTH_TOKEN and YC_FOLDER_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ocr engine %q; use tesseract | yandex", c.OCR.Engine))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return n, nil
}

func getEnvFloat(k string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' || r == ' ' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
