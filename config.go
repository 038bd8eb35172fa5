package trajectory

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ChristopherRabotin/trajectory/integrator"
	"github.com/go-kit/log"
	"github.com/spf13/viper"
)

// ConfigEnvVar is the environment variable holding the path of the configuration file.
const ConfigEnvVar = "TRAJECTORY_CONFIG"

// Config is the propagation configuration.
type Config struct {
	Stepper           integrator.StepperType
	LogType           integrator.LogType
	TimeStep          float64 // seconds
	RelativeTolerance float64
	AbsoluteTolerance float64

	RootSolver integrator.RootSolver

	MaximumPropagationDuration time.Duration
	Repetitions                int
	Parallelism                int
	LogLevel                   string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solver.stepper", integrator.RungeKuttaDopri5.String())
	v.SetDefault("solver.log_type", integrator.NoLog.String())
	v.SetDefault("solver.time_step", 5.0)
	v.SetDefault("solver.relative_tolerance", 1e-12)
	v.SetDefault("solver.absolute_tolerance", 1e-12)
	v.SetDefault("root_solver.maximum_iterations", 100)
	v.SetDefault("root_solver.digits", 50)
	v.SetDefault("sequence.maximum_propagation_duration", "720h")
	v.SetDefault("sequence.repetitions", 1)
	v.SetDefault("batch.parallelism", 4)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads the configuration file at path (or at $TRAJECTORY_CONFIG if path is empty), with
// TRAJECTORY_ prefixed environment overrides such as TRAJECTORY_SOLVER_TIME_STEP. Without any file,
// the defaults and the environment are used.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TRAJECTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return configFrom(v)
}

func configFrom(v *viper.Viper) (Config, error) {
	stepper, err := integrator.ParseStepperType(v.GetString("solver.stepper"))
	if err != nil {
		return Config{}, err
	}
	logType, err := integrator.ParseLogType(v.GetString("solver.log_type"))
	if err != nil {
		return Config{}, err
	}
	rootSolver, err := integrator.NewRootSolver(v.GetInt("root_solver.maximum_iterations"), v.GetInt("root_solver.digits"))
	if err != nil {
		return Config{}, err
	}
	c := Config{
		Stepper:                    stepper,
		LogType:                    logType,
		TimeStep:                   v.GetFloat64("solver.time_step"),
		RelativeTolerance:          v.GetFloat64("solver.relative_tolerance"),
		AbsoluteTolerance:          v.GetFloat64("solver.absolute_tolerance"),
		RootSolver:                 rootSolver,
		MaximumPropagationDuration: v.GetDuration("sequence.maximum_propagation_duration"),
		Repetitions:                v.GetInt("sequence.repetitions"),
		Parallelism:                v.GetInt("batch.parallelism"),
		LogLevel:                   v.GetString("log.level"),
	}
	if c.MaximumPropagationDuration <= 0 {
		return Config{}, fmt.Errorf("sequence.maximum_propagation_duration must be positive, got %s", c.MaximumPropagationDuration)
	}
	if c.Repetitions < 1 {
		return Config{}, fmt.Errorf("sequence.repetitions must be at least one, got %d", c.Repetitions)
	}
	return c, nil
}

// NumericalSolver returns the configured solver.
func (c Config) NumericalSolver(opts ...integrator.Option) (*integrator.NumericalSolver, error) {
	return integrator.NewNumericalSolver(c.LogType, c.Stepper, c.TimeStep, c.RelativeTolerance, c.AbsoluteTolerance, c.RootSolver, opts...)
}

// Logger returns a logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) (log.Logger, error) {
	return NewLogger(w, c.LogLevel)
}

// SequenceOptions returns the options of a sequence with the configured repetitions.
func (c Config) SequenceOptions(opts ...Option) []Option {
	return append([]Option{WithRepetitions(c.Repetitions)}, opts...)
}
