package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/faceauth/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

const (
	defaultModelsPath = "/models"
	defaultVisionURL  = "http://localhost:8000"
	defaultSQLitePath = "data/faceauth.db"
)

type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Vision   VisionConfig
	Capture  CaptureConfig
	Flow     FlowConfig
	Web      WebConfig
	MQTT     MQTTConfig
	Log      LogConfig
	Language string // UI language for user-visible messages (default en)
	Models   ModelManifest
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// StorageConfig selects where the face template and current user record live.
type StorageConfig struct {
	Backend    string // sqlite, postgres or mariadb (default sqlite)
	SQLitePath string // defaults to data/faceauth.db
	MariaDBDSN string // e.g. faceauth:faceauth@tcp(mariadb:3306)/faceauth?parseTime=true
}

type VisionConfig struct {
	Engine     string // remote or dlib (default remote)
	URL        string // inference server, defaults to http://localhost:8000
	ModelsPath string // defaults to /models
	ModelsURL  string // overrides the manifest download source for `models fetch`
}

type CaptureConfig struct {
	MaxSize int // frames are downscaled so the longer side fits (default 1280)
	Device  int // camera index for the device source
}

type FlowConfig struct {
	IdleTimeout time.Duration // flows untouched for longer are closed
}

type WebConfig struct {
	AllowedOrigins []string // origins besides localhost allowed to call the API with credentials
}

type MQTTConfig struct {
	Broker      string // e.g. tcp://localhost:1883, publishing is disabled when empty
	ClientID    string
	TopicPrefix string // defaults to faceauth
	Username    string
	Password    string
}

// Enabled reports whether outcome events should be published.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

type LogConfig struct {
	Level  string // logrus level name (default info)
	Format string // text or json
	File   string // optional file tee
}

// ModelManifest lists the models the vision engine needs before detection.
type ModelManifest struct {
	Models  []ModelSpec       `yaml:"models"`
	Sources map[string]string `yaml:"sources"`
}

// ModelSpec is a single named model and its weight files per engine.
type ModelSpec struct {
	Name  string              `yaml:"name"`
	Files map[string][]string `yaml:"files"`
}

// Names returns the model names in manifest order.
func (m ModelManifest) Names() []string {
	names := make([]string, 0, len(m.Models))
	for _, spec := range m.Models {
		names = append(names, spec.Name)
	}
	return names
}

// FilesFor returns all weight files an engine needs, in manifest order.
func (m ModelManifest) FilesFor(engine string) []string {
	var files []string
	for _, spec := range m.Models {
		files = append(files, spec.Files[engine]...)
	}
	return files
}

// SourceURL returns the download base URL for an engine's weight files.
func (m ModelManifest) SourceURL(engine string) string {
	return strings.TrimSuffix(m.Sources[engine], "/")
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable, falling back to defaultVal when empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma separated environment variable, dropping empty items.
func envList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// LoadManifest parses the embedded model manifest.
func LoadManifest() ModelManifest {
	var manifest ModelManifest
	if err := yaml.Unmarshal(modelsYAML, &manifest); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}
	return manifest
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(envString("STORAGE_BACKEND", "sqlite")),
			SQLitePath: envString("SQLITE_PATH", defaultSQLitePath),
			MariaDBDSN: os.Getenv("MARIADB_DSN"),
		},
		Vision: VisionConfig{
			Engine:     strings.ToLower(envString("VISION_ENGINE", "remote")),
			URL:        envString("VISION_URL", defaultVisionURL),
			ModelsPath: envString("MODELS_PATH", defaultModelsPath),
			ModelsURL:  os.Getenv("MODELS_BASE_URL"),
		},
		Capture: CaptureConfig{
			MaxSize: envInt("CAPTURE_MAX_SIZE", constants.MaxFrameSize),
			Device:  envInt("CAPTURE_DEVICE", 0),
		},
		Flow: FlowConfig{
			IdleTimeout: time.Duration(envInt("FLOW_IDLE_TIMEOUT", constants.DefaultFlowIdleMinutes)) * time.Minute,
		},
		Web: WebConfig{
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		MQTT: MQTTConfig{
			Broker:      os.Getenv("MQTT_BROKER"),
			ClientID:    envString("MQTT_CLIENT_ID", "faceauth"),
			TopicPrefix: strings.TrimSuffix(envString("MQTT_TOPIC_PREFIX", "faceauth"), "/"),
			Username:    os.Getenv("MQTT_USERNAME"),
			Password:    os.Getenv("MQTT_PASSWORD"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
		Language: envString("APP_LANGUAGE", "en"),
		Models:   LoadManifest(),
	}
}

// ModelSource returns the base URL weight files are downloaded from.
// MODELS_BASE_URL wins over the manifest default.
func (c *Config) ModelSource() string {
	if c.Vision.ModelsURL != "" {
		return strings.TrimSuffix(c.Vision.ModelsURL, "/")
	}
	return c.Models.SourceURL(c.Vision.Engine)
}
