package relfreq

// Mapper defines the map side of the pipeline. A Mapper consumes one line
// of input text and yields weighted bigram keys through the emitter. Lines
// are independent; implementations must not carry state across calls.
type Mapper interface {
	Map(line string, emitter Emitter)
}

// Emitter enables mappers and reducers to yield weighted keys.
type Emitter interface {
	Emit(key BigramKey, weight float64) error
	close() error
	bytesWritten() int64
}
