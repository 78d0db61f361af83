package relfreq

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	pb "gopkg.in/cheggaaa/pb.v1"

	humanize "github.com/dustin/go-humanize"

	"github.com/bwmills/relfreq/internal/pkg/dbsink"
	"github.com/bwmills/relfreq/internal/pkg/relfs"
)

// Driver controls the execution of a Job
type Driver struct {
	job      *Job
	config   *config
	executor executor
	runID    string
}

// config configures a Driver's execution of jobs
type config struct {
	Inputs          []string
	SplitSize       int64
	MapBinSize      int64
	NumReducers     int
	MaxConcurrency  int
	WorkingLocation string
	MaxTokenLength  int
	ClearOutput     bool
	Cleanup         bool
	DatabasePath    string
}

func newConfig() *config {
	loadConfig() // Load viper config from settings file(s) and environment
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
	return &config{
		Inputs:          []string{},
		SplitSize:       viper.GetInt64("split_size"),
		MapBinSize:      viper.GetInt64("map_bin_size"),
		NumReducers:     viper.GetInt("num_reducers"),
		MaxConcurrency:  viper.GetInt("max_concurrency"),
		WorkingLocation: viper.GetString("working_location"),
		MaxTokenLength:  viper.GetInt("max_token_length"),
		ClearOutput:     viper.GetBool("clear_output"),
		Cleanup:         viper.GetBool("cleanup"),
		DatabasePath:    viper.GetString("db_path"),
	}
}

// Option allows configuration of a Driver
type Option func(*config)

// NewDriver creates a new Driver with the provided job and optional configuration
func NewDriver(job *Job, options ...Option) *Driver {
	d := &Driver{
		job:      job,
		executor: localExecutor{},
		runID:    uuid.New().String()[:8],
	}

	c := newConfig()
	for _, f := range options {
		f(c)
	}

	if c.SplitSize > c.MapBinSize {
		log.Warn("Configured Split Size is larger than Map Bin size")
		c.SplitSize = c.MapBinSize
	}
	if c.NumReducers <= 0 {
		log.Warnf("Invalid number of reduce partitions (%d); using 1", c.NumReducers)
		c.NumReducers = 1
	}

	d.config = c
	log.Debugf("Loaded config: %#v", c)

	return d
}

// WithSplitSize sets the SplitSize of the Driver
func WithSplitSize(s int64) Option {
	return func(c *config) {
		c.SplitSize = s
	}
}

// WithMapBinSize sets the MapBinSize of the Driver
func WithMapBinSize(s int64) Option {
	return func(c *config) {
		c.MapBinSize = s
	}
}

// WithNumReducers sets the number of reduce partitions
func WithNumReducers(n int) Option {
	return func(c *config) {
		c.NumReducers = n
	}
}

// WithWorkingLocation sets the location and filesystem backend of the Driver
func WithWorkingLocation(location string) Option {
	return func(c *config) {
		c.WorkingLocation = location
	}
}

// WithInputs specifies job inputs (i.e. input files/directories)
func WithInputs(inputs ...string) Option {
	return func(c *config) {
		c.Inputs = append(c.Inputs, inputs...)
	}
}

// WithDatabase loads final results into a SQLite database at dbPath after
// the reduce phase completes.
func WithDatabase(dbPath string) Option {
	return func(c *config) {
		c.DatabasePath = dbPath
	}
}

// prepareJob points the job at its filesystem and per-run locations.
func (d *Driver) prepareJob() {
	d.job.fileSystem = relfs.InferFilesystem(d.config.Inputs[0])
	d.job.config = d.config
	d.job.intermediateBins = uint(d.config.NumReducers)
	d.job.intermediateDir = d.job.fileSystem.Join(d.config.WorkingLocation, fmt.Sprintf("job-%s", d.runID))
	d.job.outputPath = d.config.WorkingLocation

	if tokenizer, ok := d.job.Map.(*Tokenizer); ok && tokenizer.MaxTokenLength == 0 {
		tokenizer.MaxTokenLength = d.config.MaxTokenLength
	}
}

// clearOutput deletes output files left over from a previous run so that
// stale partitions cannot survive next to fresh ones.
func (d *Driver) clearOutput() {
	fs := d.job.fileSystem
	stale, err := fs.ListFiles(fs.Join(d.config.WorkingLocation, "output-part-*"))
	if err != nil {
		log.Debugf("No previous output to clear: %s", err)
		return
	}
	for _, file := range stale {
		log.Debugf("Clearing previous output file: %s", file.Name)
		if err := fs.Delete(file.Name); err != nil {
			log.Warnf("Failed to clear output file %s: %s", file.Name, err)
		}
	}
}

// cleanupIntermediates deletes the per-run shuffle directory.
func (d *Driver) cleanupIntermediates() {
	fs := d.job.fileSystem
	intermediates, err := fs.ListFiles(fs.Join(d.job.intermediateDir, "map-bin*"))
	if err != nil {
		log.Warnf("Failed to list intermediate files: %s", err)
		return
	}
	for _, file := range intermediates {
		if err := fs.Delete(file.Name); err != nil {
			log.Warnf("Failed to delete intermediate file %s: %s", file.Name, err)
		}
	}
	// Best effort; S3 has no directories and an in-use local one will refuse.
	fs.Delete(d.job.intermediateDir)
}

// phaseErr records the first error a phase's tasks hit. Later errors are
// logged by the tasks themselves; one failure already fails the job.
type phaseErr struct {
	mut sync.Mutex
	err error
}

func (p *phaseErr) record(err error) {
	p.mut.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mut.Unlock()
}

func (d *Driver) runMapPhase() error {
	inputSplits := d.job.inputSplits(d.config.Inputs, d.config.SplitSize)
	if len(inputSplits) == 0 {
		log.Warnf("No input splits")
		os.Exit(0)
	}
	log.Debugf("Number of job input splits: %d", len(inputSplits))

	inputBins := packInputSplits(inputSplits, d.config.MapBinSize)
	log.Debugf("Number of job input bins: %d", len(inputBins))
	bar := pb.New(len(inputBins)).Prefix("Map").Start()

	var wg sync.WaitGroup
	var pErr phaseErr
	sem := semaphore.NewWeighted(int64(d.config.MaxConcurrency))
	for binID, bin := range inputBins {
		sem.Acquire(context.Background(), 1)
		wg.Add(1)
		go func(bID uint, b []inputSplit) {
			defer wg.Done()
			defer sem.Release(1)
			defer bar.Increment()
			err := d.executor.RunMapper(d.job, bID, b)
			if err != nil {
				log.Errorf("Error when running mapper %d: %s", bID, err)
				pErr.record(err)
			}
		}(uint(binID), bin)
	}
	wg.Wait()
	bar.Finish()
	return pErr.err
}

func (d *Driver) runReducePhase() error {
	bar := pb.New(int(d.job.intermediateBins)).Prefix("Reduce").Start()

	var wg sync.WaitGroup
	var pErr phaseErr
	sem := semaphore.NewWeighted(int64(d.config.MaxConcurrency))
	for binID := uint(0); binID < d.job.intermediateBins; binID++ {
		sem.Acquire(context.Background(), 1)
		wg.Add(1)
		go func(bID uint) {
			defer wg.Done()
			defer sem.Release(1)
			defer bar.Increment()
			err := d.executor.RunReducer(d.job, bID)
			if err != nil {
				log.Errorf("Error when running reducer %d: %s", bID, err)
				pErr.record(err)
			}
		}(binID)
	}
	wg.Wait()
	bar.Finish()
	return pErr.err
}

// run executes the job, returning the first error any phase hit. A failed
// phase aborts the job: partial output must never reach cleanup or the
// results database looking like a completed run.
func (d *Driver) run() error {
	if runningInLambda() {
		startLambdaHandler(d.job)
	}

	if lBackend, ok := d.executor.(*lambdaExecutor); ok {
		lBackend.Deploy()
	}

	if len(d.config.Inputs) == 0 {
		log.Error("No inputs!")
		os.Exit(1)
	}

	d.prepareJob()
	if d.config.ClearOutput {
		d.clearOutput()
	}

	if err := d.runMapPhase(); err != nil {
		return err
	}
	if err := d.runReducePhase(); err != nil {
		return err
	}

	log.Infof("Job read %s and wrote %s",
		humanize.Bytes(uint64(d.job.bytesRead)),
		humanize.Bytes(uint64(d.job.bytesWritten)))

	if d.config.Cleanup {
		d.cleanupIntermediates()
	}

	if d.config.DatabasePath != "" {
		fs := d.job.fileSystem
		resultsGlob := fs.Join(d.config.WorkingLocation, "output-part-*")
		rows, err := dbsink.Load(fs, resultsGlob, d.config.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to load results into %s: %s", d.config.DatabasePath, err)
		}
		log.Infof("Loaded %d result rows into %s", rows, d.config.DatabasePath)
	}
	return nil
}

var lambdaFlag = pflag.Bool("lambda", false, "Execute on AWS Lambda")
var outputDir = pflag.StringP("out", "o", "", "Output directory (can be local or in S3)")
var numReducersFlag = pflag.IntP("reducers", "r", 0, "Number of reduce partitions")
var dbFlag = pflag.String("db", "", "Load results into a SQLite database at this path")
var verboseFlag = pflag.BoolP("verbose", "v", false, "Enable debug logging")
var memprofile = pflag.String("memprofile", "", "Write memory profile to `file`")

// Main starts the Driver, parsing command-line flags and positional
// arguments as job inputs.
func (d *Driver) Main() {
	pflag.Parse()

	if *verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	d.config.Inputs = append(d.config.Inputs, pflag.Args()...)
	if *lambdaFlag {
		d.executor = newLambdaExecutor()
	}
	if *outputDir != "" {
		d.config.WorkingLocation = *outputDir
	}
	if *numReducersFlag > 0 {
		d.config.NumReducers = *numReducersFlag
	}
	if *dbFlag != "" {
		d.config.DatabasePath = *dbFlag
	}

	start := time.Now()
	err := d.run()
	end := time.Now()
	fmt.Printf("Job Execution Time: %s\n", end.Sub(start))
	if err != nil {
		log.Fatalf("Job failed: %s", err)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			log.Fatal("could not create memory profile: ", err)
		}
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
		f.Close()
	}
}
