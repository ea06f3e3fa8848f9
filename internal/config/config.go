package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Grid      GridConfig      `yaml:"grid" mapstructure:"grid"`
	Delineate DelineateConfig `yaml:"delineate" mapstructure:"delineate"`
	Metric    MetricConfig    `yaml:"metric" mapstructure:"metric"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Routing   RoutingConfig   `yaml:"routing" mapstructure:"routing"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// GridConfig describes the population raster geometry.
type GridConfig struct {
	ResolutionMeters float64 `yaml:"resolution_meters" mapstructure:"resolution_meters"`
}

// DelineateConfig configures urban centre detection. Extent is
// "minx,miny,maxx,maxy" in projected coordinates; empty means the full
// raster extent.
type DelineateConfig struct {
	CellThreshold    float64 `yaml:"cell_threshold" mapstructure:"cell_threshold"`
	ClusterThreshold float64 `yaml:"cluster_threshold" mapstructure:"cluster_threshold"`
	FillThreshold    int     `yaml:"fill_threshold" mapstructure:"fill_threshold"`
	BufferMeters     float64 `yaml:"buffer_meters" mapstructure:"buffer_meters"`
	SeedX            float64 `yaml:"seed_x" mapstructure:"seed_x"`
	SeedY            float64 `yaml:"seed_y" mapstructure:"seed_y"`
	Extent           string  `yaml:"extent" mapstructure:"extent"`
}

// ExtentBounds parses the configured extent. The zero Bounds is returned
// when no extent is set.
func (d DelineateConfig) ExtentBounds() (model.Bounds, error) {
	if d.Extent == "" {
		return model.Bounds{}, nil
	}
	parts := strings.Split(d.Extent, ",")
	if len(parts) != 4 {
		return model.Bounds{}, eris.Wrapf(model.ErrConfiguration,
			"config: extent %q must be minx,miny,maxx,maxy", d.Extent)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Bounds{}, eris.Wrapf(model.ErrConfiguration,
				"config: extent value %q is not a number", p)
		}
		vals[i] = v
	}
	b := model.Bounds{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if b.MinX >= b.MaxX || b.MinY >= b.MaxY {
		return model.Bounds{}, eris.Wrapf(model.ErrConfiguration,
			"config: extent %q is empty", d.Extent)
	}
	return b, nil
}

// MetricConfig configures the performance metric itself.
type MetricConfig struct {
	TimeBudgetMinutes float64 `yaml:"time_budget_minutes" mapstructure:"time_budget_minutes"`
	SpeedKMH          float64 `yaml:"speed_kmh" mapstructure:"speed_kmh"`
	DistanceCapKM     float64 `yaml:"distance_cap_km" mapstructure:"distance_cap_km"`
}

// RunConfig configures the run loop.
type RunConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	CoverageTolerance float64 `yaml:"coverage_tolerance" mapstructure:"coverage_tolerance"`
}

// RoutingConfig configures the travel time matrix source. When MatrixDir
// is set, matrices are read from CSV files instead of the HTTP service.
type RoutingConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
	MatrixDir string  `yaml:"matrix_dir" mapstructure:"matrix_dir"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields required for the given mode. Shared limits
// are checked for every mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Run.Workers < 1 || c.Run.Workers > 64 {
		problems = append(problems, "run.workers must be between 1 and 64")
	}
	if c.Run.CoverageTolerance < 0 || c.Run.CoverageTolerance >= 1 {
		problems = append(problems, "run.coverage_tolerance must be in [0, 1)")
	}
	if _, err := c.Delineate.ExtentBounds(); err != nil {
		problems = append(problems, "delineate.extent must be minx,miny,maxx,maxy")
	}

	switch mode {
	case "run":
		if c.Grid.ResolutionMeters <= 0 {
			problems = append(problems, "grid.resolution_meters must be > 0")
		}
		if c.Metric.TimeBudgetMinutes <= 0 {
			problems = append(problems, "metric.time_budget_minutes must be > 0")
		}
		if c.Metric.SpeedKMH <= 0 && c.Metric.DistanceCapKM <= 0 {
			problems = append(problems, "one of metric.speed_kmh or metric.distance_cap_km must be > 0")
		}
		if c.Routing.BaseURL == "" && c.Routing.MatrixDir == "" {
			problems = append(problems, "one of routing.base_url or routing.matrix_dir is required")
		}
	case "delineate":
		if c.Grid.ResolutionMeters <= 0 {
			problems = append(problems, "grid.resolution_meters must be > 0")
		}
		if c.Delineate.CellThreshold < 0 {
			problems = append(problems, "delineate.cell_threshold must be >= 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TNP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("grid.resolution_meters", 200)
	v.SetDefault("delineate.cell_threshold", 1500)
	v.SetDefault("delineate.cluster_threshold", 50000)
	v.SetDefault("delineate.fill_threshold", 5)
	v.SetDefault("delineate.buffer_meters", 10000)
	v.SetDefault("metric.time_budget_minutes", 45)
	v.SetDefault("metric.speed_kmh", 15.0)
	v.SetDefault("run.workers", 4)
	v.SetDefault("run.coverage_tolerance", 0.25)
	v.SetDefault("routing.rps", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "transport-performance.db")
	v.SetDefault("server.port", 8080)
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
