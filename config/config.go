package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"neural/nn"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds training configuration
type Config struct {
	Schedule     []int   `yaml:"schedule"`
	Activation   string  `yaml:"activation"`
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	StepSize     int     `yaml:"step_size"`
	Seed         int64   `yaml:"seed"`
	Limit        int     `yaml:"limit"`

	Images     string `yaml:"images"`
	Labels     string `yaml:"labels"`
	TestImages string `yaml:"test_images"`
	TestLabels string `yaml:"test_labels"`
	Report     string `yaml:"report"`
	Plot       string `yaml:"plot"`

	Split Split `yaml:"split"`
}

// Split holds the CKKS parameters used for encrypted first-layer inference.
type Split struct {
	LogN            int   `yaml:"log_n"`
	LogQ            []int `yaml:"log_q"`
	LogP            []int `yaml:"log_p"`
	LogDefaultScale int   `yaml:"log_default_scale"`
}

// Default mirrors the layout the digit viewer shipped with.
func Default() Config {
	return Config{
		Schedule:     []int{784, 600, 400, 200, 100, 10},
		Activation:   "sigmoid",
		LearningRate: 0.1,
		Epochs:       1,
		StepSize:     10,
		Images:       "data/train-images-idx3-ubyte",
		Labels:       "data/train-labels-idx1-ubyte",
		Split: Split{
			LogN:            14,
			LogQ:            []int{55, 40},
			LogP:            []int{61},
			LogDefaultScale: 40,
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, errors.Wrapf(err, "parsing config %s", path)
	}
	return c, nil
}

// ParseSchedule parses a comma or space separated list of layer sizes.
func ParseSchedule(s string) ([]int, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	schedule := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "layer size %q", p)
		}
		schedule[i] = n
	}
	return schedule, nil
}

// ActivationFunc resolves the configured activation name.
func (c Config) ActivationFunc() (nn.Activation, error) {
	a, err := nn.ParseActivation(c.Activation)
	if err != nil {
		return 0, errors.Wrap(ErrInvalid, err.Error())
	}
	return a, nil
}

// Validate validates training configuration
func (c Config) Validate() error {
	if len(c.Schedule) < 2 {
		return errors.Wrap(ErrInvalid, "schedule must have at least 2 layers (input and output)")
	}
	for i, n := range c.Schedule {
		if n <= 0 {
			return errors.Wrapf(ErrInvalid, "layer %d has %d neurons", i, n)
		}
	}
	if _, err := c.ActivationFunc(); err != nil {
		return err
	}
	if !(c.LearningRate > 0) {
		return errors.Wrap(ErrInvalid, "learning rate must be positive")
	}
	if c.Epochs <= 0 {
		return errors.Wrap(ErrInvalid, "epochs must be positive")
	}
	if c.StepSize <= 0 {
		return errors.Wrap(ErrInvalid, "step size must be positive")
	}
	if (c.TestImages == "") != (c.TestLabels == "") {
		return errors.Wrap(ErrInvalid, "test images and test labels go together")
	}
	return c.Split.Validate()
}

func (s Split) Validate() error {
	if s.LogN < 4 {
		return errors.Wrapf(ErrInvalid, "split log_n %d too small", s.LogN)
	}
	if len(s.LogQ) < 2 {
		return errors.Wrap(ErrInvalid, "split log_q needs a base prime and one rescaling prime")
	}
	if len(s.LogP) == 0 {
		return errors.Wrap(ErrInvalid, "split log_p is empty")
	}
	if s.LogDefaultScale <= 0 || s.LogDefaultScale >= s.LogQ[0] {
		return errors.Wrapf(ErrInvalid, "split scale 2^%d must be below the base prime 2^%d", s.LogDefaultScale, s.LogQ[0])
	}
	return nil
}
