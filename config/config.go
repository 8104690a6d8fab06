package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the full runtime configuration. The core components only read it.
type Settings struct {
	Server     ServerSettings    `yaml:"server"`
	Catalog    CatalogSettings   `yaml:"catalog"`
	Categories CategorySettings  `yaml:"categories"`
	Cache      CacheSettings     `yaml:"cache"`
	Intros     IntroSettings     `yaml:"intros"`
	Download   DownloadSettings  `yaml:"download"`
	Library    LibrarySettings   `yaml:"library"`
	Logging    LoggingSettings   `yaml:"logging"`
	Schedule   ScheduleSettings  `yaml:"schedule"`
	Reconcile  ReconcileSettings `yaml:"reconcile"`
	Resolver   ResolverSettings  `yaml:"resolver"`
}

type ServerSettings struct {
	Addr string `yaml:"addr"`
	// Reconcile trigger limit, requests per minute per client.
	ReconcilePerMinute int `yaml:"reconcile_per_minute"`
	// Proxies (addresses or CIDR ranges) whose forwarding headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type CatalogSettings struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	ImageBaseURL      string  `yaml:"image_base_url"`
	Language          string  `yaml:"language"`
	Region            string  `yaml:"region"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	// ItemLimit bounds how many movies are aggregated per category.
	ItemLimit int `yaml:"item_limit"`
	// MaxConcurrentLookups bounds the per-movie video fan-out.
	MaxConcurrentLookups int `yaml:"max_concurrent_lookups"`
}

// CategorySettings toggles which listings feed the channel and the intro reel.
type CategorySettings struct {
	Upcoming   bool `yaml:"upcoming"`
	NowPlaying bool `yaml:"now_playing"`
	Popular    bool `yaml:"popular"`
	TopRated   bool `yaml:"top_rated"`
}

type CacheSettings struct {
	TTLHours               int `yaml:"ttl_hours"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

type IntroSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Count    int    `yaml:"count"`
	CacheDir string `yaml:"cache_dir"`
}

type DownloadSettings struct {
	FFmpegPath     string `yaml:"ffmpeg_path"`
	TimeoutMinutes int    `yaml:"timeout_minutes"`
}

type LibrarySettings struct {
	DBPath string `yaml:"db_path"`
}

type LoggingSettings struct {
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ScheduleSettings struct {
	// ReconcileSpec is a cron expression or descriptor ("@every 12h").
	ReconcileSpec  string `yaml:"reconcile_spec"`
	RunOnStart     bool   `yaml:"run_on_start"`
	TimeoutMinutes int    `yaml:"timeout_minutes"`
}

type ReconcileSettings struct {
	// MarkFailedDownloadsCached registers an item as cached even when its download
	// failed. Dead links then stop showing up as pending work.
	MarkFailedDownloadsCached bool `yaml:"mark_failed_downloads_cached"`
}

type ResolverSettings struct {
	YtDlpPath      string `yaml:"ytdlp_path"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MemoTTLMinutes int    `yaml:"memo_ttl_minutes"`
	MemoSize       int    `yaml:"memo_size"`
}

// DefaultSettings returns the configuration used when no file is present.
func DefaultSettings() Settings {
	dataDir := defaultDataDir()
	return Settings{
		Server: ServerSettings{
			Addr:               ":7788",
			ReconcilePerMinute: 2,
		},
		Catalog: CatalogSettings{
			BaseURL:              "https://api.themoviedb.org/3",
			ImageBaseURL:         "https://image.tmdb.org/t/p/original",
			Language:             "en-US",
			Region:               "US",
			RequestsPerSecond:    20,
			TimeoutSeconds:       15,
			ItemLimit:            20,
			MaxConcurrentLookups: 8,
		},
		Categories: CategorySettings{
			Upcoming:   true,
			NowPlaying: true,
			Popular:    false,
			TopRated:   false,
		},
		Cache: CacheSettings{
			TTLHours:               24,
			CleanupIntervalMinutes: 30,
		},
		Intros: IntroSettings{
			Enabled:  true,
			Count:    2,
			CacheDir: filepath.Join(dataDir, "trailers"),
		},
		Download: DownloadSettings{
			FFmpegPath:     "ffmpeg",
			TimeoutMinutes: 5,
		},
		Library: LibrarySettings{
			DBPath: filepath.Join(dataDir, "library.db"),
		},
		Logging: LoggingSettings{
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Schedule: ScheduleSettings{
			ReconcileSpec:  "@every 12h",
			RunOnStart:     true,
			TimeoutMinutes: 60,
		},
		Reconcile: ReconcileSettings{
			MarkFailedDownloadsCached: true,
		},
		Resolver: ResolverSettings{
			YtDlpPath:      "",
			TimeoutSeconds: 45,
			MemoTTLMinutes: 30,
			MemoSize:       512,
		},
	}
}

func defaultDataDir() string {
	if dir := strings.TrimSpace(os.Getenv("TRAILERREEL_DATA_DIR")); dir != "" {
		return dir
	}
	return "./data"
}

// CacheTTL is the default metadata cache entry lifetime.
func (s Settings) CacheTTL() time.Duration {
	if s.Cache.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.Cache.TTLHours) * time.Hour
}

// EnabledCategories reports the toggles in channel folder order.
func (s Settings) EnabledCategories() []string {
	var out []string
	if s.Categories.Upcoming {
		out = append(out, "upcoming")
	}
	if s.Categories.NowPlaying {
		out = append(out, "nowplaying")
	}
	if s.Categories.Popular {
		out = append(out, "popular")
	}
	if s.Categories.TopRated {
		out = append(out, "toprated")
	}
	return out
}

// Validate rejects settings that cannot produce a working service.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Catalog.BaseURL) == "" {
		errs = append(errs, errors.New("catalog.base_url is required"))
	}
	if s.Catalog.ItemLimit < 0 {
		errs = append(errs, fmt.Errorf("catalog.item_limit must not be negative (got %d)", s.Catalog.ItemLimit))
	}
	if s.Catalog.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("catalog.requests_per_second must not be negative (got %v)", s.Catalog.RequestsPerSecond))
	}
	if s.Intros.Count < 0 {
		errs = append(errs, fmt.Errorf("intros.count must not be negative (got %d)", s.Intros.Count))
	}
	if s.Intros.Enabled && strings.TrimSpace(s.Intros.CacheDir) == "" {
		errs = append(errs, errors.New("intros.cache_dir is required when intros are enabled"))
	}
	if strings.TrimSpace(s.Library.DBPath) == "" {
		errs = append(errs, errors.New("library.db_path is required"))
	}
	return errors.Join(errs...)
}

// Manager loads settings from a YAML file, a .env file and the environment.
type Manager struct {
	path    string
	envFile string

	mu     sync.RWMutex
	cached *Settings
}

// NewManager creates a manager for the given YAML path. An empty path means
// defaults plus environment only.
func NewManager(path string) *Manager {
	return &Manager{path: path, envFile: ".env"}
}

// WithEnvFile overrides the dotenv file consulted by Load.
func (m *Manager) WithEnvFile(path string) *Manager {
	m.envFile = path
	return m
}

// Load reads the configuration. The result is memoized until Reload.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	if m.cached != nil {
		s := *m.cached
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()
	return m.Reload()
}

// Reload re-reads the configuration from disk and the environment.
func (m *Manager) Reload() (Settings, error) {
	if m.envFile != "" {
		if err := godotenv.Load(m.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[config] failed to load %s: %v", m.envFile, err)
		}
	}

	settings := DefaultSettings()
	if m.path != "" {
		data, err := os.ReadFile(m.path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &settings); err != nil {
				return Settings{}, fmt.Errorf("parse config %s: %w", m.path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			log.Printf("[config] %s not found, using defaults", m.path)
		default:
			return Settings{}, fmt.Errorf("read config %s: %w", m.path, err)
		}
	}

	applyEnv(&settings)

	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}

	m.mu.Lock()
	m.cached = &settings
	m.mu.Unlock()
	return settings, nil
}

func applyEnv(s *Settings) {
	if v := firstEnv("TRAILERREEL_TMDB_API_KEY", "TMDB_API_KEY"); v != "" {
		s.Catalog.APIKey = v
	}
	if v := firstEnv("TRAILERREEL_LANGUAGE"); v != "" {
		s.Catalog.Language = v
	}
	if v := firstEnv("TRAILERREEL_REGION"); v != "" {
		s.Catalog.Region = v
	}
	if v := firstEnv("TRAILERREEL_ADDR"); v != "" {
		s.Server.Addr = v
	}
	if v := firstEnv("TRAILERREEL_CACHE_DIR"); v != "" {
		s.Intros.CacheDir = v
	}
	if v := firstEnv("TRAILERREEL_LIBRARY_DB"); v != "" {
		s.Library.DBPath = v
	}
	if v := firstEnv("TRAILERREEL_FFMPEG_PATH"); v != "" {
		s.Download.FFmpegPath = v
	}
	if v := firstEnv("TRAILERREEL_YTDLP_PATH"); v != "" {
		s.Resolver.YtDlpPath = v
	}
	if v := firstEnv("TRAILERREEL_LOG_FILE"); v != "" {
		s.Logging.FilePath = v
	}
	if v := firstEnv("TRAILERREEL_ITEM_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Catalog.ItemLimit = n
		} else {
			log.Printf("[config] ignoring TRAILERREEL_ITEM_LIMIT=%q: %v", v, err)
		}
	}
	if v := firstEnv("TRAILERREEL_INTRO_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Intros.Count = n
		} else {
			log.Printf("[config] ignoring TRAILERREEL_INTRO_COUNT=%q: %v", v, err)
		}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
