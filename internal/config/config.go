package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1 << 20

type Config struct {
	ListenAddr    string
	PublicBaseURL string

	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	LogLevel  string
	LogFormat string

	WordListBackend string
	WordListPath    string

	LangDetectEnabled       bool
	LangDetectURL           string
	LangDetectTimeout       time.Duration
	LangDetectMinConfidence float64

	DuplicateWindow time.Duration

	MailSender             string
	MailFrom               string
	MailReplyTo            string
	SMTPHost               string
	SMTPPort               int
	SMTPUser               string
	SMTPPassword           string
	SMTPTLS                bool
	SMTPStartTLS           bool
	SMTPInsecureSkipVerify bool

	RateLimitBackend string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	// AdminTokens maps admin id to the argon2id hash of that admin's API secret.
	AdminTokens   map[int64]string
	SuperAdminIDs []int64

	CORSAllowedOrigins []string
	TrustProxy         bool

	ReverifyOnReactivate bool

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int
}

// Load reads the optional YAML file named by CONFIG_FILE and then overlays
// environment variables. Keys are the lower-cased variable names.
func Load() (Config, error) {
	k := koanf.New(".")
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (Config, error) {
	s := source{k: k}
	cfg := Config{
		ListenAddr:               s.str("listen_addr", ":8080"),
		PublicBaseURL:            strings.TrimRight(s.str("public_base_url", "http://localhost:8080"), "/"),
		DBDriver:                 strings.ToLower(s.str("db_driver", "sqlite")),
		DBDSN:                    s.str("db_dsn", "./data/portal.db"),
		DBMaxOpenConns:           s.int("db_max_open_conns", 4),
		DBMaxIdleConns:           s.int("db_max_idle_conns", 2),
		DBConnMaxLifetime:        time.Duration(s.int("db_conn_max_lifetime_min", 30)) * time.Minute,
		LogLevel:                 strings.ToLower(s.str("log_level", "info")),
		LogFormat:                strings.ToLower(s.str("log_format", "json")),
		WordListBackend:          strings.ToLower(s.str("wordlist_backend", "file")),
		WordListPath:             s.str("wordlist_path", "./data/banned_and_flagged_words.json"),
		LangDetectEnabled:        s.bool("langdetect_enabled", true),
		LangDetectURL:            s.str("langdetect_url", "https://libretranslate.de/detect"),
		LangDetectTimeout:        time.Duration(s.int("langdetect_timeout_ms", 3000)) * time.Millisecond,
		LangDetectMinConfidence:  s.float("langdetect_min_confidence", 0.5),
		DuplicateWindow:          time.Duration(s.int("duplicate_window_sec", 30)) * time.Second,
		MailSender:               strings.ToLower(s.str("mail_sender", "log")),
		MailFrom:                 s.str("mail_from", ""),
		MailReplyTo:              s.str("mail_reply_to", ""),
		SMTPHost:                 s.str("smtp_host", ""),
		SMTPPort:                 s.int("smtp_port", 587),
		SMTPUser:                 s.str("smtp_user", ""),
		SMTPPassword:             s.str("smtp_password", ""),
		SMTPTLS:                  s.bool("smtp_tls", false),
		SMTPStartTLS:             s.bool("smtp_starttls", true),
		SMTPInsecureSkipVerify:   s.bool("smtp_insecure_skip_verify", false),
		RateLimitBackend:         strings.ToLower(s.str("rate_limit_backend", "memory")),
		RedisAddr:                s.str("redis_addr", ""),
		RedisPassword:            s.str("redis_password", ""),
		RedisDB:                  s.int("redis_db", 0),
		CORSAllowedOrigins:       s.csv("cors_allowed_origins"),
		TrustProxy:               s.bool("trust_proxy", false),
		ReverifyOnReactivate:     s.bool("subscription_reverify_on_reactivate", false),
		HTTPReadTimeoutSec:       s.int("http_read_timeout_sec", 10),
		HTTPReadHeaderTimeoutSec: s.int("http_read_header_timeout_sec", 5),
		HTTPWriteTimeoutSec:      s.int("http_write_timeout_sec", 30),
		HTTPIdleTimeoutSec:       s.int("http_idle_timeout_sec", 60),
	}

	switch cfg.DBDriver {
	case "sqlite", "mysql", "pgx":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be one of: sqlite, mysql, pgx")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		return Config{}, fmt.Errorf("DB_DSN is required")
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return Config{}, fmt.Errorf("invalid DB pool config")
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	switch cfg.WordListBackend {
	case "file":
		if strings.TrimSpace(cfg.WordListPath) == "" {
			return Config{}, fmt.Errorf("WORDLIST_PATH is required when WORDLIST_BACKEND=file")
		}
	case "db":
	default:
		return Config{}, fmt.Errorf("WORDLIST_BACKEND must be one of: file, db")
	}
	if cfg.LangDetectTimeout <= 0 {
		return Config{}, fmt.Errorf("LANGDETECT_TIMEOUT_MS must be positive")
	}
	if cfg.LangDetectMinConfidence < 0 || cfg.LangDetectMinConfidence > 1 {
		return Config{}, fmt.Errorf("LANGDETECT_MIN_CONFIDENCE must be within [0,1]")
	}
	if cfg.LangDetectEnabled && strings.TrimSpace(cfg.LangDetectURL) == "" {
		return Config{}, fmt.Errorf("LANGDETECT_URL is required when LANGDETECT_ENABLED=true")
	}
	if cfg.DuplicateWindow < 0 {
		return Config{}, fmt.Errorf("DUPLICATE_WINDOW_SEC must not be negative")
	}
	switch cfg.MailSender {
	case "log":
	case "smtp":
		if strings.TrimSpace(cfg.SMTPHost) == "" || cfg.SMTPPort <= 0 {
			return Config{}, fmt.Errorf("SMTP_HOST and SMTP_PORT are required when MAIL_SENDER=smtp")
		}
		if strings.TrimSpace(cfg.MailFrom) == "" {
			return Config{}, fmt.Errorf("MAIL_FROM is required when MAIL_SENDER=smtp")
		}
	default:
		return Config{}, fmt.Errorf("MAIL_SENDER must be one of: log, smtp")
	}
	switch cfg.RateLimitBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return Config{}, fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return Config{}, fmt.Errorf("RATE_LIMIT_BACKEND must be one of: memory, redis")
	}

	tokens, err := parseAdminTokens(s.str("admin_tokens", ""))
	if err != nil {
		return Config{}, err
	}
	cfg.AdminTokens = tokens
	for _, raw := range s.csv("super_admin_ids") {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Config{}, fmt.Errorf("SUPER_ADMIN_IDS contains invalid id %q", raw)
		}
		cfg.SuperAdminIDs = append(cfg.SuperAdminIDs, id)
	}
	return cfg, nil
}

func (c Config) IsSuperAdmin(id int64) bool {
	for _, v := range c.SuperAdminIDs {
		if v == id {
			return true
		}
	}
	return false
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(f)
}

// parseAdminTokens accepts "id=hash;id=hash". Semicolons separate entries
// because argon2id hashes contain commas.
func parseAdminTokens(v string) (map[int64]string, error) {
	out := map[int64]string{}
	v = strings.TrimSpace(v)
	if v == "" {
		return out, nil
	}
	for _, entry := range strings.Split(v, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idRaw, hash, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("ADMIN_TOKENS entry %q must look like <id>=<argon2id hash>", entry)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idRaw), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("ADMIN_TOKENS entry has invalid admin id %q", idRaw)
		}
		hash = strings.TrimSpace(hash)
		if !strings.HasPrefix(hash, "$argon2id$") {
			return nil, fmt.Errorf("ADMIN_TOKENS entry for admin %d is not an argon2id hash", id)
		}
		out[id] = hash
	}
	return out, nil
}

type source struct {
	k *koanf.Koanf
}

func (s source) str(key, d string) string {
	if !s.k.Exists(key) {
		return d
	}
	if v := strings.TrimSpace(s.k.String(key)); v != "" {
		return v
	}
	return d
}

func (s source) int(key string, d int) int {
	v := s.str(key, "")
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func (s source) float(key string, d float64) float64 {
	v := s.str(key, "")
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return d
	}
	return f
}

func (s source) bool(key string, d bool) bool {
	v := s.str(key, "")
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func (s source) csv(key string) []string {
	v := s.str(key, "")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
