package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/segment"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentPages int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL  time.Duration
	DataDir string

	// Vocabulary
	VocabularyFile string
	Languages      []string

	// Recognition
	OCRLanguages    []string
	RenderDPI       int
	MaxRenderPixels int
	PreferTextLayer bool
	PdftoppmPath    string
	StatsWindow     time.Duration

	// Export
	NameTemplate string

	// Classification and grouping
	PolicyFile string
	Policy     Policy
}

// Policy collects the classification and grouping thresholds.
type Policy struct {
	TopFraction           float64 `toml:"top_fraction"`
	MinTitleLength        int     `toml:"min_title_length"`
	PrefilterFloor        float64 `toml:"prefilter_floor"`
	AcceptThreshold       float64 `toml:"accept_threshold"`
	ConfidentThreshold    float64 `toml:"confident_threshold"`
	UnidentifiedRun       int     `toml:"unidentified_run"`
	MinUnidentifiedLength int     `toml:"min_unidentified_length"`
}

func DefaultPolicy() Policy {
	c := classify.DefaultPolicy()
	s := segment.DefaultPolicy()
	return Policy{
		TopFraction:           c.TopFraction,
		MinTitleLength:        c.MinTitleLength,
		PrefilterFloor:        c.PrefilterFloor,
		AcceptThreshold:       c.AcceptThreshold,
		ConfidentThreshold:    c.ConfidentThreshold,
		UnidentifiedRun:       s.UnidentifiedRun,
		MinUnidentifiedLength: s.MinUnidentifiedLength,
	}
}

func (p Policy) Classify() classify.Policy {
	return classify.Policy{
		TopFraction:        p.TopFraction,
		MinTitleLength:     p.MinTitleLength,
		PrefilterFloor:     p.PrefilterFloor,
		AcceptThreshold:    p.AcceptThreshold,
		ConfidentThreshold: p.ConfidentThreshold,
	}
}

func (p Policy) Segment() segment.Policy {
	return segment.Policy{
		UnidentifiedRun:       p.UnidentifiedRun,
		MinUnidentifiedLength: p.MinUnidentifiedLength,
	}
}

func (p Policy) Validate() error {
	if p.TopFraction <= 0 || p.TopFraction > 1 {
		return fmt.Errorf("top_fraction must be in (0, 1], got %v", p.TopFraction)
	}
	if p.AcceptThreshold < 0 || p.AcceptThreshold > 1 {
		return fmt.Errorf("accept_threshold must be in [0, 1], got %v", p.AcceptThreshold)
	}
	if p.ConfidentThreshold < p.AcceptThreshold || p.ConfidentThreshold > 1 {
		return fmt.Errorf("confident_threshold must be in [accept_threshold, 1], got %v", p.ConfidentThreshold)
	}
	if p.PrefilterFloor < 0 || p.PrefilterFloor > 1 {
		return fmt.Errorf("prefilter_floor must be in [0, 1], got %v", p.PrefilterFloor)
	}
	if p.MinTitleLength < 0 || p.UnidentifiedRun < 0 || p.MinUnidentifiedLength < 0 {
		return fmt.Errorf("lengths must not be negative")
	}
	return nil
}

// LoadPolicyFile overlays the TOML file at path onto base. Keys missing from
// the file keep base's value.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	p := base
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return base, fmt.Errorf("policy file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return base, fmt.Errorf("policy file %s: unknown keys %v", path, undecoded)
	}
	return p, nil
}

// Load reads configuration from the environment. Policy values come from
// defaults, then POLICY_FILE, then POLICY_* variables.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("SCORESLICE_API_KEY"),

		WorkerCount:        envInt("WORKER_COUNT", 2),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentPages: envInt("MAX_CONCURRENT_PAGES", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 209715200), // 200MB

		JobTTL:  envDuration("JOB_TTL", 6*time.Hour),
		DataDir: envOr("DATA_DIR", os.TempDir()),

		VocabularyFile: os.Getenv("VOCABULARY_FILE"),
		Languages:      envList("VOCABULARY_LANGUAGES"),

		OCRLanguages:    envList("OCR_LANGUAGES"),
		RenderDPI:       envInt("RENDER_DPI", 200),
		MaxRenderPixels: envInt("MAX_RENDER_PIXELS", 2400),
		PreferTextLayer: envBool("PREFER_TEXT_LAYER", true),
		PdftoppmPath:    envOr("PDFTOPPM_PATH", "pdftoppm"),
		StatsWindow:     envDuration("STATS_WINDOW", time.Hour),

		NameTemplate: envOr("NAME_TEMPLATE", "{title}_{part}"),

		PolicyFile: os.Getenv("POLICY_FILE"),
		Policy:     DefaultPolicy(),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentPages <= 0 {
		cfg.MaxConcurrentPages = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 209715200
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 6 * time.Hour
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 200
	}
	if len(cfg.OCRLanguages) == 0 {
		cfg.OCRLanguages = []string{"eng"}
	}

	if cfg.PolicyFile != "" {
		p, err := LoadPolicyFile(cfg.PolicyFile, cfg.Policy)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = p
	}
	cfg.Policy = policyFromEnv(cfg.Policy)

	return cfg, nil
}

func policyFromEnv(p Policy) Policy {
	p.TopFraction = envFloat("POLICY_TOP_FRACTION", p.TopFraction)
	p.MinTitleLength = envInt("POLICY_MIN_TITLE_LENGTH", p.MinTitleLength)
	p.PrefilterFloor = envFloat("POLICY_PREFILTER_FLOOR", p.PrefilterFloor)
	p.AcceptThreshold = envFloat("POLICY_ACCEPT_THRESHOLD", p.AcceptThreshold)
	p.ConfidentThreshold = envFloat("POLICY_CONFIDENT_THRESHOLD", p.ConfidentThreshold)
	p.UnidentifiedRun = envInt("POLICY_UNIDENTIFIED_RUN", p.UnidentifiedRun)
	p.MinUnidentifiedLength = envInt("POLICY_MIN_UNIDENTIFIED_LENGTH", p.MinUnidentifiedLength)
	return p
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("SCORESLICE_API_KEY is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
