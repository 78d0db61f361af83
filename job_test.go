package relfreq

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/bwmills/relfreq/internal/pkg/relfs"
	"github.com/stretchr/testify/assert"
)

// runLocalJob runs a full map+reduce pass over inputText on the local
// filesystem and returns the sorted output lines.
func runLocalJob(t *testing.T, inputText string, numBins uint, splitSize int64) []string {
	t.Helper()

	tmpdir, err := ioutil.TempDir("", "relfreq-job")
	assert.Nil(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpdir) })

	inputPath := filepath.Join(tmpdir, "input.txt")
	assert.Nil(t, ioutil.WriteFile(inputPath, []byte(inputText), 0644))

	fs := &relfs.LocalFileSystem{}
	assert.Nil(t, fs.Init())

	job := NewJob(NewTokenizer())
	job.fileSystem = fs
	job.intermediateBins = numBins
	job.intermediateDir = filepath.Join(tmpdir, "job-test")
	job.outputPath = tmpdir

	splits := job.inputSplits([]string{inputPath}, splitSize)
	assert.NotEmpty(t, splits)
	for i, split := range splits {
		assert.Nil(t, job.runMapper(uint(i), []inputSplit{split}))
	}
	for binID := uint(0); binID < numBins; binID++ {
		assert.Nil(t, job.runReducer(binID))
	}

	outputFiles, err := fs.ListFiles(filepath.Join(tmpdir, "output-part-*"))
	assert.Nil(t, err)

	lines := make([]string, 0)
	for _, file := range outputFiles {
		contents, err := ioutil.ReadFile(file.Name)
		assert.Nil(t, err)
		for _, line := range strings.Split(string(contents), "\n") {
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	sort.Strings(lines)
	return lines
}

func exampleCorpusOutput() []string {
	return []string{
		"cat\t*\t2.0",
		"cat\tran\t0.5",
		"cat\tsat\t0.5",
		"sat\t*\t1.0",
		"sat\tthe\t1.0",
		"the\t*\t2.0",
		"the\tcat\t1.0",
	}
}

func TestJobEndToEnd(t *testing.T) {
	lines := runLocalJob(t, "the cat sat the cat ran\n", 1, 1024)
	assert.Equal(t, exampleCorpusOutput(), lines)
}

func TestJobEndToEndMultiplePartitions(t *testing.T) {
	// Results are independent of the number of reduce partitions: each
	// first word's complete group (marginal included) lands in one bin.
	lines := runLocalJob(t, "the cat sat the cat ran\n", 4, 1024)
	assert.Equal(t, exampleCorpusOutput(), lines)
}

// countingMapper records how many times each line reaches Map.
type countingMapper struct {
	mut   sync.Mutex
	lines map[string]int
}

func (c *countingMapper) Map(line string, emitter Emitter) {
	c.mut.Lock()
	c.lines[line]++
	c.mut.Unlock()
}

func TestMapperSplitsMapEachLineOnce(t *testing.T) {
	input := "the cat sat the cat ran\nthe dog sat\nsat the dog down\n"

	tmpdir, err := ioutil.TempDir("", "relfreq-splits")
	assert.Nil(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpdir) })

	inputPath := filepath.Join(tmpdir, "input.txt")
	assert.Nil(t, ioutil.WriteFile(inputPath, []byte(input), 0644))

	fs := &relfs.LocalFileSystem{}
	assert.Nil(t, fs.Init())

	mapper := &countingMapper{lines: make(map[string]int)}
	job := NewJob(mapper)
	job.fileSystem = fs
	job.intermediateBins = 1
	job.intermediateDir = filepath.Join(tmpdir, "job-test")
	job.outputPath = tmpdir

	// Splits far smaller than a line, so every line straddles several
	// splits. Exactly one split owns each line's start, and a line whose
	// skipped partial prefix exhausts a split must not be mapped there.
	splits := job.inputSplits([]string{inputPath}, 7)
	assert.True(t, len(splits) > 3)
	for i, split := range splits {
		assert.Nil(t, job.runMapper(uint(i), []inputSplit{split}))
	}

	assert.Equal(t, map[string]int{
		"the cat sat the cat ran": 1,
		"the dog sat":             1,
		"sat the dog down":        1,
	}, mapper.lines)
}

func TestJobSplitSizeInvariance(t *testing.T) {
	input := "the cat sat the cat ran\nthe dog sat\nsat the dog down\n"

	wholeFile := runLocalJob(t, input, 2, 4096)
	manySplits := runLocalJob(t, input, 2, 7)

	// Split boundaries fall mid-line; every line must still be mapped
	// exactly once.
	assert.Equal(t, wholeFile, manySplits)
}

func TestJobRatiosStayWithinUnitInterval(t *testing.T) {
	input := "a b a c a b\nb a b c\n"
	lines := runLocalJob(t, input, 3, 1024)

	marginals := make(map[string]string)
	for _, line := range lines {
		fields := strings.SplitN(line, "\t", 3)
		assert.Len(t, fields, 3)
		if fields[1] == Marker {
			marginals[fields[0]] = fields[2]
			continue
		}
		var ratio float64
		_, err := fmt.Sscanf(fields[2], "%g", &ratio)
		assert.Nil(t, err)
		assert.True(t, ratio > 0 && ratio <= 1, "ratio for %s: %g", line, ratio)
	}
	// Every pair's first word has its marginal in the output.
	for _, line := range lines {
		fields := strings.SplitN(line, "\t", 3)
		assert.Contains(t, marginals, fields[0])
	}
}

func TestJobReducerOrderingViolation(t *testing.T) {
	tmpdir, err := ioutil.TempDir("", "relfreq-violation")
	assert.Nil(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpdir) })

	fs := &relfs.LocalFileSystem{}
	assert.Nil(t, fs.Init())

	job := NewJob(NewTokenizer())
	job.fileSystem = fs
	job.intermediateBins = 1
	job.intermediateDir = filepath.Join(tmpdir, "job-test")
	job.outputPath = tmpdir

	// An intermediate bin holding a pair count with no marginal key:
	// the partition ordering contract is unsatisfiable.
	writer, err := fs.OpenWriter(filepath.Join(job.intermediateDir, "map-bin0-0.out"))
	assert.Nil(t, err)
	_, err = writer.Write([]byte(`{"first":"the","second":"cat","weight":1}` + "\n"))
	assert.Nil(t, err)
	assert.Nil(t, writer.Close())

	err = job.runReducer(0)
	assert.NotNil(t, err)

	var violation *OrderingViolationError
	assert.True(t, errors.As(err, &violation))
	assert.Equal(t, BigramKey{"the", "cat"}, violation.Key)

	// The partial output file must not survive the failure; anything left
	// behind would read as valid results.
	_, err = os.Stat(filepath.Join(tmpdir, "output-part-0"))
	assert.True(t, os.IsNotExist(err))
}

func TestJobReducerEmptyBin(t *testing.T) {
	tmpdir, err := ioutil.TempDir("", "relfreq-empty")
	assert.Nil(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpdir) })

	fs := &relfs.LocalFileSystem{}
	assert.Nil(t, fs.Init())

	job := NewJob(NewTokenizer())
	job.fileSystem = fs
	job.intermediateBins = 1
	job.intermediateDir = filepath.Join(tmpdir, "job-test")
	job.outputPath = tmpdir

	// A bin that received no keys produces no output and no error.
	assert.Nil(t, job.runReducer(0))
	_, err = os.Stat(filepath.Join(tmpdir, "output-part-0"))
	assert.True(t, os.IsNotExist(err))
}
