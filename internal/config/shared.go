package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Storage struct {
		Provider      string `mapstructure:"provider"` // "local" or "s3"
		LocalStorage  string `mapstructure:"local_storage"`
		KeyID         string `mapstructure:"key_id"`
		AppKey        string `mapstructure:"app_key"`
		Endpoint      string `mapstructure:"endpoint"`
		Region        string `mapstructure:"region"`
		BucketLibrary string `mapstructure:"bucket_library"`
		BucketIngest  string `mapstructure:"bucket_ingest"`
		Prefix        string `mapstructure:"prefix"`
	} `mapstructure:"storage"`
	Server struct {
		TempDir         string `mapstructure:"temp_dir"`
		PollingInterval int    `mapstructure:"polling_interval_seconds"`
		MetricsPort     string `mapstructure:"metrics_port"`
		APIPort         string `mapstructure:"api_port"`
	} `mapstructure:"server"`
	Catalog struct {
		Source string `mapstructure:"source"` // "default", "file" or "storage"
		File   string `mapstructure:"file"`
	} `mapstructure:"catalog"`
	Audio struct {
		PlayerBinary  string  `mapstructure:"player_binary"`
		ProbeBinary   string  `mapstructure:"probe_binary"`
		Validate      bool    `mapstructure:"validate"`
		InitialVolume float64 `mapstructure:"initial_volume"`
		VolumeStep    float64 `mapstructure:"volume_step"`
	} `mapstructure:"audio"`
	Speech struct {
		Provider       string `mapstructure:"provider"` // "command" or "log"
		Binary         string `mapstructure:"binary"`
		Locale         string `mapstructure:"locale"`
		AnnounceOnPlay bool   `mapstructure:"announce_on_play"`
	} `mapstructure:"speech"`
	Knob struct {
		DragStepDegrees float64 `mapstructure:"drag_step_degrees"`
	} `mapstructure:"knob"`
	Database struct {
		Driver   string `mapstructure:"driver"` // "sqlite" or "postgres"
		Path     string `mapstructure:"path"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	API struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"api"`
	Log struct {
		Mode string `mapstructure:"mode"`
	} `mapstructure:"log"`
}

func Load() *Config {
	viper.SetEnvPrefix("STORYPALACE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Storage
	viper.BindEnv("storage.provider")
	viper.BindEnv("storage.local_storage")
	viper.BindEnv("storage.key_id")
	viper.BindEnv("storage.app_key")
	viper.BindEnv("storage.endpoint")
	viper.BindEnv("storage.region")
	viper.BindEnv("storage.bucket_library")
	viper.BindEnv("storage.bucket_ingest")
	viper.BindEnv("storage.prefix")

	viper.BindEnv("server.temp_dir")
	viper.BindEnv("server.polling_interval_seconds")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.api_port")

	viper.BindEnv("catalog.source")
	viper.BindEnv("catalog.file")

	viper.BindEnv("audio.player_binary")
	viper.BindEnv("audio.probe_binary")
	viper.BindEnv("audio.validate")
	viper.BindEnv("audio.initial_volume")
	viper.BindEnv("audio.volume_step")

	viper.BindEnv("speech.provider")
	viper.BindEnv("speech.binary")
	viper.BindEnv("speech.locale")
	viper.BindEnv("speech.announce_on_play")

	viper.BindEnv("knob.drag_step_degrees")

	viper.BindEnv("database.driver")
	viper.BindEnv("database.path")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")

	viper.BindEnv("api.jwt_secret")
	viper.BindEnv("log.mode")

	// Defaults
	viper.SetDefault("storage.provider", "local")
	viper.SetDefault("storage.local_storage", "./data")
	viper.SetDefault("storage.bucket_library", "library")
	viper.SetDefault("storage.bucket_ingest", "ingest")
	viper.SetDefault("storage.prefix", "stories/")

	viper.SetDefault("server.temp_dir", "/tmp/")
	viper.SetDefault("server.polling_interval_seconds", 10)
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("server.api_port", ":8081")

	viper.SetDefault("catalog.source", "default")

	viper.SetDefault("audio.player_binary", "ffplay")
	viper.SetDefault("audio.probe_binary", "ffprobe")
	viper.SetDefault("audio.validate", true)
	viper.SetDefault("audio.initial_volume", 1.0)
	viper.SetDefault("audio.volume_step", 0.1)

	viper.SetDefault("speech.provider", "command")
	viper.SetDefault("speech.binary", "espeak-ng")
	viper.SetDefault("speech.locale", "en-US")
	viper.SetDefault("speech.announce_on_play", true)

	viper.SetDefault("knob.drag_step_degrees", 15.0)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "storypalace.db")

	viper.SetDefault("log.mode", "development")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if cfg.Storage.Provider == "s3" && cfg.Storage.KeyID == "" {
		log.Fatal("Critical: S3 KeyID is missing (STORYPALACE_STORAGE_KEY_ID)")
	}

	return &cfg
}
