package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"neural/config"
	"neural/dataset"
	"neural/nn"
	"neural/session"
	"neural/split"
)

var logger = log.New(os.Stderr, "neural: ", log.LstdFlags)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("a command must be specified: train, show or infer")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	subCommand := os.Args[1]
	switch subCommand {
	case "train":
		cfg, _ := parseTrainFlags("train", os.Args[2:])
		if _, err := train(ctx, cfg); err != nil {
			fail("training network", err)
		}

	case "show":
		showFlags := flag.NewFlagSet("show", flag.ExitOnError)
		flagImages := showFlags.String("images", config.Default().Images, "images file")
		flagLabels := showFlags.String("labels", config.Default().Labels, "labels file")
		flagIndex := showFlags.Int("index", 0, "image to draw")
		if err := showFlags.Parse(os.Args[2:]); err != nil {
			fail("parsing show flags", err)
		}
		if err := show(*flagImages, *flagLabels, *flagIndex); err != nil {
			fail("showing image", err)
		}

	case "infer":
		cfg, count := parseTrainFlags("infer", os.Args[2:])
		s, err := train(ctx, cfg)
		if err != nil {
			fail("training network", err)
		}
		if err := infer(ctx, cfg, s, count); err != nil {
			fail("split inference", err)
		}

	default:
		fmt.Printf("unknown command %q\n", subCommand)
		os.Exit(1)
	}
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", action, err.Error())
	os.Exit(1)
}

// parseTrainFlags loads -config and applies every flag given explicitly on
// top of it.
func parseTrainFlags(name string, args []string) (config.Config, int) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flagConfig := fs.String("config", "", "YAML config file")
	flagImages := fs.String("images", "", "training images (IDX, optionally gzipped, or CSV)")
	flagLabels := fs.String("labels", "", "training labels (IDX)")
	flagTestImages := fs.String("test-images", "", "held-out images checked after training")
	flagTestLabels := fs.String("test-labels", "", "held-out labels")
	flagSchedule := fs.String("schedule", "", "neurons per layer, comma-separated, input first")
	flagActivation := fs.String("activation", "", "activation function (sigmoid or relu)")
	flagRate := fs.Float64("rate", 0, "learning rate")
	flagEpochs := fs.Int("epochs", 0, "training passes over the images")
	flagSeed := fs.Int64("seed", 0, "weight initialization seed, 0 picks one from the clock")
	flagLimit := fs.Int("limit", 0, "use only the first n images")
	flagReport := fs.String("report", "", "CSV file a summary row is appended to")
	flagPlot := fs.String("plot", "", "image file the training error per epoch is charted to")
	flagCount := fs.Int("count", 10, "images sent through split inference")
	if err := fs.Parse(args); err != nil {
		fail("parsing "+name+" flags", err)
	}

	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		if cfg, err = config.Load(*flagConfig); err != nil {
			fail("loading config", err)
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "images":
			cfg.Images = *flagImages
		case "labels":
			cfg.Labels = *flagLabels
		case "test-images":
			cfg.TestImages = *flagTestImages
		case "test-labels":
			cfg.TestLabels = *flagTestLabels
		case "schedule":
			cfg.Schedule, err = config.ParseSchedule(*flagSchedule)
		case "activation":
			cfg.Activation = *flagActivation
		case "rate":
			cfg.LearningRate = *flagRate
		case "epochs":
			cfg.Epochs = *flagEpochs
		case "seed":
			cfg.Seed = *flagSeed
		case "limit":
			cfg.Limit = *flagLimit
		case "report":
			cfg.Report = *flagReport
		case "plot":
			cfg.Plot = *flagPlot
		}
	})
	if err != nil {
		fail("parsing schedule", err)
	}
	if err := cfg.Validate(); err != nil {
		fail("validating config", err)
	}
	return cfg, *flagCount
}

func loadData(images, labels string) (*dataset.Dataset, error) {
	if strings.HasSuffix(images, ".csv") {
		file, err := os.Open(images)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return dataset.LoadCSV(file, 28, 28)
	}
	return dataset.Load(images, labels)
}

func train(ctx context.Context, cfg config.Config) (*session.Session, error) {
	start := time.Now()
	data, err := loadData(cfg.Images, cfg.Labels)
	if err != nil {
		return nil, err
	}
	if cfg.Limit > 0 {
		data = data.Limit(cfg.Limit)
	}
	loading := time.Since(start)
	logger.Printf("loaded %d images of %dx%d", data.Len(), data.Width, data.Height)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	s, err := session.New(cfg, data, rand.New(rand.NewSource(seed)), logger)
	if err != nil {
		return nil, err
	}
	s.Timing.DataLoading = loading

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		s.ToggleTrain()
		if err := s.Drive(ctx); err != nil {
			return nil, err
		}
		logger.Printf("epoch %d: %s", epoch, s.StatusText())
	}

	if cfg.TestImages != "" {
		test, err := loadData(cfg.TestImages, cfg.TestLabels)
		if err != nil {
			return nil, err
		}
		if err := s.UseDataset(test); err != nil {
			return nil, err
		}
	}
	s.ToggleCheck()
	if err := s.Drive(ctx); err != nil {
		return nil, err
	}
	fmt.Println(s.StatusText())
	s.Timing.Print(os.Stdout)

	if cfg.Plot != "" {
		if err := session.PlotHistory(cfg.Plot, s.History()); err != nil {
			return nil, err
		}
	}
	if cfg.Report != "" {
		err := session.AppendReport(cfg.Report, session.Record{
			Name:       strings.TrimSuffix(filepath.Base(cfg.Images), filepath.Ext(cfg.Images)),
			Activation: cfg.Activation,
			Schedule:   cfg.Schedule,
			Rate:       cfg.LearningRate,
			Epochs:     cfg.Epochs,
			Trained:    s.Trained(),
			End:        time.Now(),
			Duration:   time.Since(start),
			Result:     s.CheckResult(),
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func show(images, labels string, index int) error {
	data, err := loadData(images, labels)
	if err != nil {
		return err
	}
	if index < 0 || index >= data.Len() {
		return errors.Errorf("image %d out of range [0, %d)", index, data.Len())
	}
	fmt.Printf("Label: %d (%d/%d)\n", data.Label(index), index, data.Len())
	return session.RenderASCII(os.Stdout, data.Image(index), data.Width)
}

// infer pushes the first count images of the session dataset through split
// inference over an in-process pipe and compares with the plaintext answers.
func infer(ctx context.Context, cfg config.Config, s *session.Session, count int) error {
	params, err := split.Parameters(cfg.Split)
	if err != nil {
		return err
	}
	net := s.Network()
	client, err := split.NewClient(params, net.InputSize())
	if err != nil {
		return err
	}
	server, err := split.NewServer(params, client.EvaluationKeys(), net.Layers()[0])
	if err != nil {
		return err
	}

	est := split.EstimateLayer(params, net.InputSize(), net.Layers()[0].Size())
	logger.Printf("per image: %d rotations, %d plaintext multiplications, %.1f MB exchanged",
		est.Rotations, est.Multiplications, float64(est.RequestBytes+est.ResponseBytes)/1e6)

	p, stop := split.Connect(ctx, server)
	defer stop()

	start := time.Now()
	agree := 0
	for i := 0; i < count && i < s.Data().Len(); i++ {
		x := s.Data().Input(i, nil)
		want, err := net.Forward(x)
		if err != nil {
			return err
		}
		got, err := split.Infer(ctx, client, p, net, x)
		if err != nil {
			return err
		}
		if nn.Argmax(want) == nn.Argmax(got) {
			agree++
		}
		fmt.Println("Prediction:", strconv.Itoa(nn.Argmax(got)), "label:", s.Data().Label(i))
	}
	if err := p.SendDone(); err != nil {
		return err
	}
	if err := stop(); err != nil {
		return err
	}
	logger.Printf("split inference agreed with plaintext on %d images in %v", agree, time.Since(start))
	return nil
}
