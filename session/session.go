// Package session drives a network over a digit dataset the way the
// interactive viewer does: one displayed image that can be stepped through,
// and automatic train and check passes that advance a few images per tick.
//
// Nothing here draws. The texts and activation cells a window would render
// are exposed so any front end can show them.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"neural/config"
	"neural/dataset"
	"neural/nn"
)

type Mode int

const (
	ModeNone Mode = iota
	ModeTrain
	ModeCheck
)

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeCheck:
		return "check"
	}
	return "none"
}

// ErrBusy is returned for actions that need the session to be idle.
var ErrBusy = errors.New("session busy")

type Session struct {
	cfg    config.Config
	act    nn.Activation
	data   *dataset.Dataset
	net    *nn.Network
	rng    *rand.Rand
	logger *log.Logger

	displayed int
	result    int
	input     []float64
	sqError   float64

	mode      Mode
	autoIndex int
	correct   int
	losses    []float64
	trained   int
	status    string
	passError float64
	history   []Pass

	Timing Timing
}

// New builds a session and runs the network on the first image. The schedule
// must start with the image pixel count and end with one neuron per class.
func New(cfg config.Config, data *dataset.Dataset, rng *rand.Rand, logger *log.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	act, err := cfg.ActivationFunc()
	if err != nil {
		return nil, err
	}
	if data.Len() == 0 {
		return nil, errors.New("empty dataset")
	}
	if in := cfg.Schedule[0]; in != data.Size() {
		return nil, errors.Wrapf(config.ErrInvalid, "schedule starts with %d inputs, images have %d pixels", in, data.Size())
	}
	if out := cfg.Schedule[len(cfg.Schedule)-1]; out != dataset.Classes {
		return nil, errors.Wrapf(config.ErrInvalid, "schedule ends with %d outputs, want %d", out, dataset.Classes)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Session{
		cfg:    cfg,
		act:    act,
		data:   data,
		rng:    rng,
		logger: logger,
		result: -1,
	}
	if err := s.newNetwork(); err != nil {
		return nil, err
	}
	return s, s.Run(0)
}

func (s *Session) newNetwork() error {
	start := time.Now()
	net, err := nn.New(s.cfg.Schedule, s.act, s.rng)
	if err != nil {
		return errors.Wrap(err, "building network")
	}
	s.Timing.ModelInit += time.Since(start)
	s.net = net
	return nil
}

func (s *Session) Network() *nn.Network {
	return s.net
}

// Data is the dataset the session currently walks.
func (s *Session) Data() *dataset.Dataset {
	return s.data
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) Displayed() int {
	return s.displayed
}

// Result is the network's answer for the displayed image, -1 before any run.
func (s *Session) Result() int {
	return s.result
}

// Trained counts the images trained on since the network was built.
func (s *Session) Trained() int {
	return s.trained
}

// run evaluates image i and leaves the deltas for its label in the network.
func (s *Session) run(i int) error {
	s.input = s.data.Input(i, s.input)

	start := time.Now()
	out, err := s.net.Forward(s.input)
	if err != nil {
		return errors.Wrapf(err, "running image %d", i)
	}
	s.Timing.Forward += time.Since(start)
	s.result = nn.Argmax(out)

	target := s.data.Target(i)
	s.sqError = 0
	for k, v := range out {
		s.sqError += (target[k] - v) * (target[k] - v)
	}

	start = time.Now()
	if err := s.net.Backpropagate(target); err != nil {
		return errors.Wrapf(err, "backpropagating image %d", i)
	}
	s.Timing.Backward += time.Since(start)
	return nil
}

// Run shows image i and evaluates the network on it.
func (s *Session) Run(i int) error {
	if i < 0 || i >= s.data.Len() {
		return errors.Errorf("image %d out of range [0, %d)", i, s.data.Len())
	}
	s.displayed = i
	return s.run(i)
}

// Next shows the following image, if any.
func (s *Session) Next() error {
	if s.displayed >= s.data.Len()-1 {
		return nil
	}
	return s.Run(s.displayed + 1)
}

// Prev shows the preceding image, if any.
func (s *Session) Prev() error {
	if s.displayed <= 0 {
		return nil
	}
	return s.Run(s.displayed - 1)
}

// Reset replaces the network with a freshly initialized one.
func (s *Session) Reset() error {
	if s.mode != ModeNone {
		return errors.Wrapf(ErrBusy, "reset during %s", s.mode)
	}
	if err := s.newNetwork(); err != nil {
		return err
	}
	s.trained = 0
	s.correct = 0
	s.losses = s.losses[:0]
	s.status = ""
	s.history = nil
	return s.Run(s.displayed)
}

// ToggleTrain starts a training pass from the first image, or stops the
// running one.
func (s *Session) ToggleTrain() {
	if s.mode == ModeTrain {
		s.mode = ModeNone
		return
	}
	s.mode = ModeTrain
	s.autoIndex = 0
	s.passError = 0
}

// ToggleCheck starts an accuracy pass from the first image, or stops the
// running one.
func (s *Session) ToggleCheck() {
	if s.mode == ModeCheck {
		s.mode = ModeNone
		return
	}
	s.mode = ModeCheck
	s.autoIndex = 0
	s.correct = 0
	s.losses = s.losses[:0]
}

// Tick advances the running pass by up to StepSize images.
func (s *Session) Tick() error {
	switch s.mode {
	case ModeTrain:
		for k := 0; k < s.cfg.StepSize && s.mode == ModeTrain; k++ {
			if err := s.run(s.autoIndex); err != nil {
				return err
			}
			start := time.Now()
			if err := s.net.Train(s.cfg.LearningRate, s.input); err != nil {
				return errors.Wrapf(err, "training on image %d", s.autoIndex)
			}
			s.Timing.Update += time.Since(start)
			s.Timing.Samples++
			s.trained++
			s.passError += s.sqError

			s.autoIndex++
			if s.autoIndex == s.data.Len() {
				s.mode = ModeNone
				s.history = append(s.history, Pass{Trained: s.trained, MeanError: s.passError / float64(s.autoIndex)})
				s.logger.Printf("training pass complete, %d images", s.autoIndex)
			}
		}
		s.status = fmt.Sprintf("Trained on %d images.", s.autoIndex)
		return s.Run(s.displayed)

	case ModeCheck:
		for k := 0; k < s.cfg.StepSize && s.mode == ModeCheck; k++ {
			if err := s.run(s.autoIndex); err != nil {
				return err
			}
			if s.result == int(s.data.Label(s.autoIndex)) {
				s.correct++
			}
			s.losses = append(s.losses, s.sqError)

			s.autoIndex++
			if s.autoIndex == s.data.Len() {
				s.mode = ModeNone
				s.logger.Printf("check complete, %.2f%% correct", s.Accuracy())
			}
		}
		s.status = fmt.Sprintf("Correctly predicted %.2f%% (%d/%d)", s.Accuracy(), s.correct, s.autoIndex)
	}
	return nil
}

// Drive ticks until the running pass ends or ctx is done.
func (s *Session) Drive(ctx context.Context) error {
	for s.mode != ModeNone {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Accuracy is the percentage of correct answers in the latest check pass,
// rounded half away from zero to two decimals.
func (s *Session) Accuracy() float64 {
	if len(s.losses) == 0 {
		return 0
	}
	return math.Round(10000*float64(s.correct)/float64(len(s.losses))) / 100
}

// Pass is the summary of one completed training pass.
type Pass struct {
	Trained   int
	MeanError float64
}

// History lists the completed training passes since the network was built.
func (s *Session) History() []Pass {
	return append([]Pass(nil), s.history...)
}

// CheckResult summarizes the latest check pass.
type CheckResult struct {
	Correct   int
	Total     int
	Accuracy  float64
	MeanError float64
}

func (s *Session) CheckResult() CheckResult {
	r := CheckResult{Correct: s.correct, Total: len(s.losses), Accuracy: s.Accuracy()}
	if len(s.losses) > 0 {
		r.MeanError = stat.Mean(s.losses, nil)
	}
	return r
}

// UseDataset swaps the images the session walks, e.g. to check against a
// held-out set. The displayed image is reset to the first one.
func (s *Session) UseDataset(data *dataset.Dataset) error {
	if s.mode != ModeNone {
		return errors.Wrapf(ErrBusy, "switching dataset during %s", s.mode)
	}
	if data.Len() == 0 {
		return errors.New("empty dataset")
	}
	if data.Size() != s.net.InputSize() {
		return errors.Wrapf(config.ErrInvalid, "images have %d pixels, network takes %d", data.Size(), s.net.InputSize())
	}
	s.data = data
	return s.Run(0)
}

func (s *Session) LabelText() string {
	return fmt.Sprintf("Label: %d, Network output: %d", s.data.Label(s.displayed), s.result)
}

func (s *Session) ImageText() string {
	return fmt.Sprintf("(%d/%d)", s.displayed, s.data.Len())
}

func (s *Session) StatusText() string {
	return s.status
}
