// Package main provides the MobileNet CIFAR-10 command-line tool.
//
// Usage:
//
//	mobilenet [train] [flags]      train and evaluate on CIFAR-10
//	mobilenet summary [flags]      print the stage schedule and layer table
//	mobilenet predict -checkpoint model.safetensors image.png
//	mobilenet version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/dataset"
	"github.com/born-ml/mobilenet/internal/mobilenet"
	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
	"github.com/born-ml/mobilenet/internal/train"
)

const version = "v0.1.0"

func main() {
	log.SetFlags(0)

	cmd, args := "train", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd {
	case "train":
		err = runTrain(ctx, args, os.Stdout)
	case "summary":
		err = runSummary(args, os.Stdout)
	case "predict":
		err = runPredict(args, os.Stdout)
	case "version":
		fmt.Printf("mobilenet %s\n", version)
	default:
		err = fmt.Errorf("unknown command %q (available: train, summary, predict, version)", cmd)
	}
	if err != nil {
		log.Fatalf("mobilenet %s: %v", cmd, err)
	}
}

// configFlags registers the train.Config fields on fs. A -config file is
// loaded first and explicitly set flags override it.
func configFlags(fs *flag.FlagSet) func() (train.Config, error) {
	def := train.DefaultConfig()
	configPath := fs.String("config", "", "JSON config file")
	device := fs.String("device", def.Device, "compute device")
	numPrints := fs.Int("num-prints", def.NumPrints, "progress lines per training epoch")
	printStepTest := fs.Int("print-step-test", def.PrintStepTest, "evaluation batches between progress lines (0 = off)")
	epochs := fs.Int("epochs", def.Epochs, "number of epochs")
	batchSize := fs.Int("batch", def.BatchSize, "batch size")
	optimizer := fs.String("optimizer", def.Optimizer, "optimizer: sgd or adam")
	lr := fs.Float64("lr", def.LR, "learning rate")
	momentum := fs.Float64("momentum", def.Momentum, "SGD momentum")
	weightDecay := fs.Float64("weight-decay", def.WeightDecay, "L2 weight decay")
	alpha := fs.Float64("alpha", def.Alpha, "width multiplier")
	resolution := fs.Int("resolution", def.InputResolution, "input resolution")
	dropout := fs.Float64("dropout", def.Dropout, "dropout rate before the classifier")
	dataRoot := fs.String("data", def.DataRoot, "CIFAR-10 root directory")
	download := fs.Bool("download", def.Download, "download CIFAR-10 when missing")
	seed := fs.Uint64("seed", def.Seed, "random seed")
	plotPath := fs.String("plot", def.PlotPath, "write loss/accuracy curves to this file")
	checkpoint := fs.String("checkpoint", def.CheckpointPath, "model checkpoint (.safetensors)")

	return func() (train.Config, error) {
		cfg := def
		if *configPath != "" {
			var err error
			if cfg, err = train.LoadConfig(*configPath); err != nil {
				return cfg, err
			}
		}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "device":
				cfg.Device = *device
			case "num-prints":
				cfg.NumPrints = *numPrints
			case "print-step-test":
				cfg.PrintStepTest = *printStepTest
			case "epochs":
				cfg.Epochs = *epochs
			case "batch":
				cfg.BatchSize = *batchSize
			case "optimizer":
				cfg.Optimizer = *optimizer
			case "lr":
				cfg.LR = *lr
			case "momentum":
				cfg.Momentum = *momentum
			case "weight-decay":
				cfg.WeightDecay = *weightDecay
			case "alpha":
				cfg.Alpha = *alpha
			case "resolution":
				cfg.InputResolution = *resolution
			case "dropout":
				cfg.Dropout = *dropout
			case "data":
				cfg.DataRoot = *dataRoot
			case "download":
				cfg.Download = *download
			case "seed":
				cfg.Seed = *seed
			case "plot":
				cfg.PlotPath = *plotPath
			case "checkpoint":
				cfg.CheckpointPath = *checkpoint
			}
		})
		return cfg, cfg.Validate()
	}
}

func runTrain(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	config := configFlags(fs)
	synthetic := fs.Int("synthetic", 0, "train on this many generated images instead of CIFAR-10")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config()
	if err != nil {
		return err
	}

	var trainSet, testSet dataset.Dataset
	if *synthetic > 0 {
		fmt.Fprintf(w, "Using %d synthetic images\n", *synthetic)
		if trainSet, err = dataset.NewSynthetic(*synthetic, dataset.NumClasses, dataset.ImageSize, cfg.Seed, nil); err != nil {
			return err
		}
		if testSet, err = dataset.NewSynthetic(max(*synthetic/5, 1), dataset.NumClasses, dataset.ImageSize, cfg.Seed+1, nil); err != nil {
			return err
		}
	} else {
		opts := []dataset.Option{dataset.WithDownload(cfg.Download), dataset.WithProgress(w)}
		trainData, err := dataset.NewCIFAR10(ctx, cfg.DataRoot, true, nil, opts...)
		if err != nil {
			if errors.Is(err, dataset.ErrNotFound) {
				fmt.Fprintln(w, "Run with -download or -synthetic 1000 to train without the dataset.")
			}
			return err
		}
		testData, err := dataset.NewCIFAR10(ctx, cfg.DataRoot, false, nil, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Train: %d images, Test: %d images\n", trainData.Len(), testData.Len())
		trainSet, testSet = trainData, testData
	}

	_, err = train.Run(ctx, cfg, trainSet, testSet, dataset.NumClasses, w)
	return err
}

func runSummary(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	config := configFlags(fs)
	numClass := fs.Int("classes", dataset.NumClasses, "number of output classes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config()
	if err != nil {
		return err
	}

	backend := cpu.New()
	model, err := train.NewModel(cfg, *numClass, backend)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, model)
	fmt.Fprintf(w, "%6s %9s %11s\n", "stage", "channels", "resolution")
	for i, s := range model.Schedule() {
		fmt.Fprintf(w, "%6d %9d %11d\n", i, s.Channels, s.Resolution)
	}
	fmt.Fprintln(w)

	shape := tensor.Shape{3, cfg.InputResolution, cfg.InputResolution}
	return nn.Summary(w, model.Layers(), shape, backend)
}

func runPredict(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	checkpoint := fs.String("checkpoint", "mobilenet.safetensors", "model checkpoint written by train")
	top := fs.Int("top", 3, "number of classes to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no image files given")
	}

	backend := cpu.New()
	model, err := mobilenet.Load(*checkpoint, backend)
	if err != nil {
		return err
	}

	names := dataset.ClassNames()
	transform := dataset.DefaultTransform()
	for _, path := range fs.Args() {
		img, err := dataset.LoadImageFile(path)
		if err != nil {
			return err
		}
		preds, err := train.Classify[*cpu.CPUBackend](model, transform(img), *top, backend)
		if err != nil {
			return err
		}

		fmt.Fprintln(w, path)
		for _, p := range preds {
			name := fmt.Sprintf("class %d", p.Class)
			if model.NumClass() == len(names) {
				name = names[p.Class]
			}
			fmt.Fprintf(w, "  %-12s %6.2f%%\n", name, 100*p.Probability)
		}
	}
	return nil
}
