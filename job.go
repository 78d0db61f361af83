package relfreq

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/bwmills/relfreq/internal/pkg/relfs"
	log "github.com/sirupsen/logrus"
)

// Job is one bigram relative-frequency run over a set of input files.
// The map phase tokenizes lines into weighted bigram keys, partitioned by
// first word into intermediate bins. The reduce phase sums each bin's
// weights per key and normalizes pair counts by their first word's
// marginal total.
type Job struct {
	Map Mapper

	fileSystem       relfs.FileSystem
	config           *config
	intermediateBins uint
	intermediateDir  string
	outputPath       string

	bytesRead    int64
	bytesWritten int64
}

// NewJob creates a Job that runs the given mapper. Most callers want
// NewJob(NewTokenizer()).
func NewJob(mapper Mapper) *Job {
	return &Job{
		Map: mapper,
	}
}

// runMapper feeds the splits assigned to one mapper through the Mapper
// into a partitioned, combining emitter.
func (j *Job) runMapper(mapperID uint, splits []inputSplit) error {
	emitter := newMapperEmitter(j.intermediateBins, mapperID, j.intermediateDir, j.fileSystem)

	for _, split := range splits {
		err := j.runMapperSplit(split, &emitter)
		if err != nil {
			emitter.close()
			return err
		}
	}

	err := emitter.close()
	atomic.AddInt64(&j.bytesWritten, emitter.bytesWritten())
	return err
}

// runMapperSplit runs the mapper over a single inputSplit. A split that
// starts mid-file skips its first (partial) line; the split owning the
// preceding bytes reads past its end offset to finish that line.
func (j *Job) runMapperSplit(split inputSplit, emitter Emitter) error {
	offset := split.StartOffset
	if split.StartOffset != 0 {
		// Back up one byte so that a split boundary that lands exactly on
		// a newline still skips only the finished line.
		offset--
	}

	inputSource, err := j.fileSystem.OpenReader(split.Filename, offset)
	if err != nil {
		return err
	}
	defer inputSource.Close()

	var bytesRead int64
	splitter := countingSplitFunc(bufio.ScanLines, &bytesRead)
	scanner := bufio.NewScanner(inputSource)
	scanner.Split(splitter)

	if split.StartOffset != 0 {
		scanner.Scan()
	}

	// offset+bytesRead is the start position of the next unread line. A
	// split maps exactly the lines that start inside it: a line straddling
	// EndOffset still belongs here, and the next split discards it as its
	// partial first line. The gate must run before Map, or a skipped first
	// line that already exhausts the split would leak a neighbor's line in.
	for offset+bytesRead <= split.EndOffset && scanner.Scan() {
		j.Map.Map(scanner.Text(), emitter)
	}

	atomic.AddInt64(&j.bytesRead, bytesRead)
	return scanner.Err()
}

// runReducer aggregates and normalizes one intermediate bin. All keys
// sharing a first word live in this bin (the partitioner guarantees it),
// so the bin's marginal totals are complete before any ratio is computed.
func (j *Job) runReducer(binID uint) error {
	binGlob := j.fileSystem.Join(j.intermediateDir, fmt.Sprintf("map-bin%d-*.out", binID))
	intermediateFiles, err := j.fileSystem.ListFiles(binGlob)
	if err != nil {
		return err
	}

	sums := make(accumulator)
	for _, file := range intermediateFiles {
		err := j.sumIntermediateFile(file, sums)
		if err != nil {
			return err
		}
	}

	if len(sums) == 0 {
		return nil
	}

	keys := make([]BigramKey, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	// Marginal-first ordering within each first-word group; the
	// normalizer's precondition.
	sort.Slice(keys, func(i, k int) bool {
		return keyLess(keys[i], keys[k])
	})

	outputName := j.fileSystem.Join(j.outputPath, fmt.Sprintf("output-part-%d", binID))
	emitWriter, err := j.fileSystem.OpenWriter(outputName)
	if err != nil {
		return err
	}
	emitter := newReducerEmitter(emitWriter)

	norm := &normalizer{}
	for _, key := range keys {
		weight, err := norm.consume(key, sums[key])
		if err != nil {
			// Partial output for this partition is meaningless; remove it
			// and surface the violation instead of emitting a garbage ratio.
			emitter.close()
			j.fileSystem.Delete(outputName)
			return err
		}
		if err := emitter.Emit(key, weight); err != nil {
			emitter.close()
			j.fileSystem.Delete(outputName)
			return err
		}
	}

	err = emitter.close()
	atomic.AddInt64(&j.bytesWritten, emitter.bytesWritten())
	return err
}

func (j *Job) sumIntermediateFile(file relfs.FileInfo, sums accumulator) error {
	reader, err := j.fileSystem.OpenReader(file.Name, 0)
	if err != nil {
		return err
	}
	defer reader.Close()
	log.Debugf("Reducing on intermediate file: %s", file.Name)

	decoder := json.NewDecoder(reader)
	for decoder.More() {
		var kw keyWeight
		if err := decoder.Decode(&kw); err != nil {
			return err
		}
		sums.add(kw.key(), kw.Weight)
	}
	return nil
}

// inputSplits enumerates the given inputs and slices each file into
// splits of at most maxSplitSize bytes.
func (j *Job) inputSplits(inputs []string, maxSplitSize int64) []inputSplit {
	files := make([]relfs.FileInfo, 0)
	for _, inputPath := range inputs {
		fileInfos, err := j.fileSystem.ListFiles(inputPath)
		if err != nil {
			log.Warnf("Unable to load input: %s (%s)", inputPath, err)
			continue
		}
		files = append(files, fileInfos...)
	}

	splits := make([]inputSplit, 0)
	for _, file := range files {
		splits = append(splits, splitInputFile(file, maxSplitSize)...)
	}
	return splits
}
