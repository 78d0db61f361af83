package relfreq

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bwmills/relfreq/internal/pkg/relfs"
	log "github.com/sirupsen/logrus"
)

// spillThreshold is the number of distinct buffered keys a mapperEmitter
// holds before flushing its combined weights to intermediate storage.
const spillThreshold = 1 << 16

// reducerEmitter writes final (first, second, weight) records. It is
// threadsafe; a reduce partition may be written from multiple goroutines.
type reducerEmitter struct {
	writer       io.WriteCloser
	mut          *sync.Mutex
	writtenBytes int64
}

func newReducerEmitter(writer io.WriteCloser) *reducerEmitter {
	return &reducerEmitter{
		writer: writer,
		mut:    &sync.Mutex{},
	}
}

// Emit writes a key and its final weight as a tab-separated output line.
func (e *reducerEmitter) Emit(key BigramKey, weight float64) error {
	e.mut.Lock()
	defer e.mut.Unlock()

	n, err := e.writer.Write([]byte(fmt.Sprintf("%s\t%s\t%s\n", key.First, key.Second, formatWeight(weight))))
	e.writtenBytes += int64(n)
	return err
}

// close terminates the reducerEmitter. close must not be called more than once
func (e *reducerEmitter) close() error {
	return e.writer.Close()
}

func (e *reducerEmitter) bytesWritten() int64 {
	return e.writtenBytes
}

// mapperEmitter partitions keys written to it into one of numBins
// intermediate shuffle bins, each written as a separate file. Weights are
// pre-aggregated per exact key in a per-bin accumulator and spilled to the
// bin file once the buffer grows past spillThreshold, so repeated keys
// usually cross the partition boundary as a single summed record.
type mapperEmitter struct {
	numBins       uint                    // number of intermediate shuffle bins
	writers       map[uint]io.WriteCloser // maps a partition number to an open writer
	buffers       map[uint]accumulator    // per-bin combining buffers
	bufferedKeys  int                     // distinct keys currently buffered across all bins
	fs            relfs.FileSystem        // filesystem to use when opening writers
	mapperID      uint                    // numeric identifier of the mapper using this emitter
	outDir        string                  // folder to save map output to
	partitionFunc PartitionFunc           // routes keys to intermediate bins; must depend on key.First only
	writtenBytes  int64                   // counter for number of bytes written from emitted key/weight pairs
}

func newMapperEmitter(numBins uint, mapperID uint, outDir string, fs relfs.FileSystem) mapperEmitter {
	return mapperEmitter{
		numBins:       numBins,
		writers:       make(map[uint]io.WriteCloser, numBins),
		buffers:       make(map[uint]accumulator, numBins),
		fs:            fs,
		mapperID:      mapperID,
		outDir:        outDir,
		partitionFunc: firstWordPartition,
	}
}

// Emit adds a weighted key to its bin's combining buffer.
func (me *mapperEmitter) Emit(key BigramKey, weight float64) error {
	bin := me.partitionFunc(key, me.numBins)

	buf, exists := me.buffers[bin]
	if !exists {
		buf = make(accumulator)
		me.buffers[bin] = buf
	}
	if _, seen := buf[key]; !seen {
		me.bufferedKeys++
	}
	buf.add(key, weight)

	if me.bufferedKeys >= spillThreshold {
		return me.spill()
	}
	return nil
}

// spill drains every combining buffer into its bin file.
func (me *mapperEmitter) spill() error {
	for bin, buf := range me.buffers {
		err := buf.drain(func(key BigramKey, weight float64) error {
			return me.writeRecord(bin, key, weight)
		})
		if err != nil {
			return err
		}
	}
	me.bufferedKeys = 0
	return nil
}

func (me *mapperEmitter) writeRecord(bin uint, key BigramKey, weight float64) error {
	writer, exists := me.writers[bin]
	if !exists {
		var err error
		path := me.fs.Join(me.outDir, fmt.Sprintf("map-bin%d-%d.out", bin, me.mapperID))

		writer, err = me.fs.OpenWriter(path)
		if err != nil {
			return err
		}
		me.writers[bin] = writer
	}

	data, err := json.Marshal(keyWeight{
		First:  key.First,
		Second: key.Second,
		Weight: weight,
	})
	if err != nil {
		log.Error(err)
		return err
	}

	data = append(data, '\n')
	n, err := writer.Write(data)
	me.writtenBytes += int64(n)
	return err
}

// close flushes buffered weights and terminates the mapperEmitter.
// Must not be called more than once.
func (me *mapperEmitter) close() error {
	errs := make([]string, 0)
	if err := me.spill(); err != nil {
		errs = append(errs, err.Error())
	}
	for _, writer := range me.writers {
		err := writer.Close()
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n"))
	}

	return nil
}

func (me *mapperEmitter) bytesWritten() int64 {
	return me.writtenBytes
}
