package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Display  DisplayConfig  `yaml:"display" mapstructure:"display"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input datasets. File names are relative to Dir
// unless absolute.
type DataConfig struct {
	Dir               string `yaml:"dir" mapstructure:"dir"`
	BlockShapefile    string `yaml:"block_shapefile" mapstructure:"block_shapefile"`
	DistrictShapefile string `yaml:"district_shapefile" mapstructure:"district_shapefile"`
	GPShapefile       string `yaml:"gp_shapefile" mapstructure:"gp_shapefile"`
	GPIndicators      string `yaml:"gp_indicators" mapstructure:"gp_indicators"`
	GPBlockMapping    string `yaml:"gp_block_mapping" mapstructure:"gp_block_mapping"`
	VillageGPJoin     string `yaml:"village_gp_join" mapstructure:"village_gp_join"`
	Definitions       string `yaml:"definitions" mapstructure:"definitions"`
	GPDistrict        string `yaml:"gp_district" mapstructure:"gp_district"`
}

// Path resolves a data file name against Dir.
func (d DataConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// GeometryConfig controls geometry preparation.
type GeometryConfig struct {
	SimplifyTolerance float64 `yaml:"simplify_tolerance" mapstructure:"simplify_tolerance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// DisplayConfig points at an optional display-config override file.
type DisplayConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExportConfig configures database exports.
type ExportConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEAF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.block_shapefile", "4DSS_VAR_2.0.shp")
	v.SetDefault("data.district_shapefile", "Block_assam.shp")
	v.SetDefault("data.gp_shapefile", "grampanchayat.shp")
	v.SetDefault("data.gp_indicators", "Tinsukia_GP_data.xlsx")
	v.SetDefault("data.gp_block_mapping", "Block_GPs.xlsx")
	v.SetDefault("data.village_gp_join", "Vill_Gp_join.csv")
	v.SetDefault("data.definitions", "DSS_input2.csv")
	v.SetDefault("data.gp_district", "Tinsukia")
	v.SetDefault("geometry.simplify_tolerance", 0.001)
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("display.path", "")
	v.SetDefault("export.database_url", "")
	v.SetDefault("export.schema", "public")
	v.SetDefault("export.table", "leaf_units")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by mode ("engine", "serve" or
// "postgres"). Every problem found is reported in one error.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "engine", "serve", "postgres":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if strings.TrimSpace(c.Data.Dir) == "" {
		problems = append(problems, "data.dir is required")
	}
	if c.Data.BlockShapefile == "" {
		problems = append(problems, "data.block_shapefile is required")
	}
	if c.Data.Definitions == "" {
		problems = append(problems, "data.definitions is required")
	}
	if c.Geometry.SimplifyTolerance < 0 {
		problems = append(problems, fmt.Sprintf("geometry.simplify_tolerance must be >= 0, got %g", c.Geometry.SimplifyTolerance))
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			problems = append(problems, fmt.Sprintf("server.rate_limit must be >= 0, got %g", c.Server.RateLimit))
		}
	case "postgres":
		if c.Export.DatabaseURL == "" {
			problems = append(problems, "export.database_url is required")
		}
		if c.Export.Table == "" {
			problems = append(problems, "export.table is required")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
