package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from the config file and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	RootDir        string `mapstructure:"root_dir"`
	PublishersFile string `mapstructure:"publishers_file"`

	Site       SiteConfig       `mapstructure:"site"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Store      StoreConfig      `mapstructure:"store"`
}

// SiteConfig describes the promotional site and the account used to claim items.
type SiteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	LoginPath         string        `mapstructure:"login_path"`
	DailyPath         string        `mapstructure:"daily_path"`
	DownloadPath      string        `mapstructure:"download_path"`
	CodePath          string        `mapstructure:"code_path"`
	NewsletterFeedURL string        `mapstructure:"newsletter_feed_url"`
	Email             string        `mapstructure:"email"`
	Password          string        `mapstructure:"password"`
	UserAgent         string        `mapstructure:"user_agent"`
	DownloadDir       string        `mapstructure:"download_dir"`
	ExtrasDir         string        `mapstructure:"extras_dir"`
	TimeoutSeconds    int64         `mapstructure:"timeout_seconds"`
	Timeout           time.Duration `mapstructure:"-"`
}

// CheckpointConfig selects where the last newsletter URL is persisted.
type CheckpointConfig struct {
	Type          string `mapstructure:"type"`
	Path          string `mapstructure:"path"`
	BBoltPath     string `mapstructure:"bbolt_path"`
	Key           string `mapstructure:"key"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// UploadConfig groups the upload destination settings.
type UploadConfig struct {
	Drive   DriveConfig   `mapstructure:"drive"`
	Dropbox DropboxConfig `mapstructure:"dropbox"`
	SCP     SCPConfig     `mapstructure:"scp"`
}

type DriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`
	Public          bool   `mapstructure:"public"`
}

type DropboxConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	AccessToken    string `mapstructure:"access_token"`
	Folder         string `mapstructure:"folder"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SCPConfig struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	User                string `mapstructure:"user"`
	Password            string `mapstructure:"password"`
	KeyFile             string `mapstructure:"key_file"`
	KnownHostsFile      string `mapstructure:"known_hosts_file"`
	InsecureSkipHostKey bool   `mapstructure:"insecure_skip_host_key"`
	RemoteDir           string `mapstructure:"remote_dir"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
}

// NotifyConfig groups the notification channel settings.
type NotifyConfig struct {
	Gmail GmailConfig `mapstructure:"gmail"`
	IFTTT IFTTTConfig `mapstructure:"ifttt"`
	Join  JoinConfig  `mapstructure:"join"`
}

type GmailConfig struct {
	CredentialsFile string   `mapstructure:"credentials_file"`
	From            string   `mapstructure:"from"`
	To              []string `mapstructure:"to"`
}

type IFTTTConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Key     string `mapstructure:"key"`
	Event   string `mapstructure:"event"`
}

type JoinConfig struct {
	BaseURL   string   `mapstructure:"base_url"`
	APIKey    string   `mapstructure:"api_key"`
	DeviceIDs []string `mapstructure:"device_ids"`
}

// StoreConfig groups the storage backend settings.
type StoreConfig struct {
	Firebase FirebaseConfig `mapstructure:"firebase"`
}

type FirebaseConfig struct {
	DatabaseURL string `mapstructure:"database_url"`
	Secret      string `mapstructure:"secret"`
	Path        string `mapstructure:"path"`
}

// Load reads configuration from the given file, overlaid with environment variables.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("config file path is empty")
	}

	_ = godotenv.Load("config/.env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "freebook-harvester")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("root_dir", ".")
	v.SetDefault("publishers_file", "")

	v.SetDefault("site.base_url", "https://www.packtpub.com")
	v.SetDefault("site.login_path", "/")
	v.SetDefault("site.daily_path", "/packt/offers/free-learning")
	v.SetDefault("site.download_path", "/ebook_download/%s/%s")
	v.SetDefault("site.code_path", "/code_download/%s")
	v.SetDefault("site.newsletter_feed_url", "")
	v.SetDefault("site.email", "")
	v.SetDefault("site.password", "")
	v.SetDefault("site.user_agent", "Mozilla/5.0 (X11; Linux x86_64) freebook-harvester")
	v.SetDefault("site.download_dir", "ebooks")
	v.SetDefault("site.extras_dir", "ebooks/extras")
	v.SetDefault("site.timeout_seconds", 60)

	v.SetDefault("checkpoint.type", "file")
	v.SetDefault("checkpoint.path", "config/lastNewsletterUrl")
	v.SetDefault("checkpoint.bbolt_path", "data/checkpoint.db")
	v.SetDefault("checkpoint.key", "last_newsletter_url")
	v.SetDefault("checkpoint.redis_addr", "")
	v.SetDefault("checkpoint.redis_password", "")
	v.SetDefault("checkpoint.redis_db", 0)

	v.SetDefault("upload.drive.credentials_file", "config/drive-credentials.json")
	v.SetDefault("upload.drive.folder_id", "")
	v.SetDefault("upload.drive.public", true)
	v.SetDefault("upload.dropbox.base_url", "https://content.dropboxapi.com")
	v.SetDefault("upload.dropbox.access_token", "")
	v.SetDefault("upload.dropbox.folder", "/freebooks")
	v.SetDefault("upload.dropbox.timeout_seconds", 300)
	v.SetDefault("upload.scp.host", "")
	v.SetDefault("upload.scp.port", 22)
	v.SetDefault("upload.scp.user", "")
	v.SetDefault("upload.scp.password", "")
	v.SetDefault("upload.scp.key_file", "")
	v.SetDefault("upload.scp.known_hosts_file", "")
	v.SetDefault("upload.scp.insecure_skip_host_key", false)
	v.SetDefault("upload.scp.remote_dir", ".")
	v.SetDefault("upload.scp.timeout_seconds", 30)

	v.SetDefault("notify.gmail.credentials_file", "config/gmail-credentials.json")
	v.SetDefault("notify.gmail.from", "")
	v.SetDefault("notify.ifttt.base_url", "https://maker.ifttt.com")
	v.SetDefault("notify.ifttt.key", "")
	v.SetDefault("notify.ifttt.event", "freebook")
	v.SetDefault("notify.join.base_url", "https://joinjoaomgcd.appspot.com")
	v.SetDefault("notify.join.api_key", "")

	v.SetDefault("store.firebase.database_url", "")
	v.SetDefault("store.firebase.secret", "")
	v.SetDefault("store.firebase.path", "books")
}

func (c *Config) finalize() error {
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	if c.Site.BaseURL == "" {
		return errors.New("site.base_url is required")
	}
	if c.Site.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid site.timeout_seconds (must be positive seconds)")
	}
	c.Site.Timeout = time.Duration(c.Site.TimeoutSeconds) * time.Second

	c.Checkpoint.Type = strings.ToLower(strings.TrimSpace(c.Checkpoint.Type))
	switch c.Checkpoint.Type {
	case "file", "bbolt", "redis":
	default:
		return fmt.Errorf("unsupported checkpoint.type %q", c.Checkpoint.Type)
	}
	if c.Checkpoint.Type == "redis" && strings.TrimSpace(c.Checkpoint.RedisAddr) == "" {
		return errors.New("checkpoint.redis_addr is required for redis checkpoints")
	}

	c.Site.DownloadDir = c.ResolvePath(c.Site.DownloadDir)
	c.Site.ExtrasDir = c.ResolvePath(c.Site.ExtrasDir)
	c.Checkpoint.Path = c.ResolvePath(c.Checkpoint.Path)
	c.Checkpoint.BBoltPath = c.ResolvePath(c.Checkpoint.BBoltPath)
	if c.PublishersFile != "" {
		c.PublishersFile = c.ResolvePath(c.PublishersFile)
	}
	return nil
}

// ResolvePath anchors relative paths at the installation root.
func (c *Config) ResolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RootDir, p)
}
