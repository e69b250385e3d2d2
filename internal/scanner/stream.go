package scanner

import (
	"context"

	"github.com/fenilsonani/filesearch/internal/model"
)

const (
	// DefaultBatchSize is the number of records to collect before emitting a batch
	DefaultBatchSize = 10000
	// ChannelBufferSize is the buffer size for streaming channels
	ChannelBufferSize = 10
)

// Batch is a group of records found during a streaming walk.
type Batch struct {
	Records []model.FileRecord
	Skipped int   // unreadable entries since the previous batch
	Error   error // set on the final batch when the walk failed
	Final   bool
}

// BatchCollector helps collect records into batches for streaming
type BatchCollector struct {
	ctx          context.Context
	batchSize    int
	currentBatch []model.FileRecord
	skipped      int
	channel      chan<- *Batch
}

// NewBatchCollector creates a new batch collector
func NewBatchCollector(ctx context.Context, batchSize int, channel chan<- *Batch) *BatchCollector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchCollector{
		ctx:          ctx,
		batchSize:    batchSize,
		currentBatch: make([]model.FileRecord, 0, batchSize),
		channel:      channel,
	}
}

// Add adds a record to the current batch, emitting if batch is full.
// It returns the context error when the consumer has gone away.
func (bc *BatchCollector) Add(rec model.FileRecord) error {
	bc.currentBatch = append(bc.currentBatch, rec)

	if len(bc.currentBatch) >= bc.batchSize {
		return bc.Flush()
	}
	return nil
}

// Skip counts an entry that could not be read.
func (bc *BatchCollector) Skip() {
	bc.skipped++
}

// Flush emits the current batch even if not full
func (bc *BatchCollector) Flush() error {
	if len(bc.currentBatch) == 0 {
		return nil
	}

	err := bc.send(&Batch{Records: bc.currentBatch, Skipped: bc.skipped})

	// Reset for next batch
	bc.currentBatch = make([]model.FileRecord, 0, bc.batchSize)
	bc.skipped = 0
	return err
}

// Finalize sends the final batch and marks it as complete
func (bc *BatchCollector) Finalize() {
	records := bc.currentBatch
	if records == nil {
		records = []model.FileRecord{}
	}
	_ = bc.send(&Batch{Records: records, Skipped: bc.skipped, Final: true})
	bc.currentBatch = nil
}

// SendError sends an error batch
func (bc *BatchCollector) SendError(err error) {
	_ = bc.send(&Batch{
		Records: bc.currentBatch,
		Skipped: bc.skipped,
		Error:   err,
		Final:   true,
	})
	bc.currentBatch = nil
}

func (bc *BatchCollector) send(b *Batch) error {
	select {
	case bc.channel <- b:
		return nil
	case <-bc.ctx.Done():
		return bc.ctx.Err()
	}
}

// CollectAll drains batches into a single candidate set, calling onBatch
// with the running total after each batch.
func CollectAll(ctx context.Context, batches <-chan *Batch, onBatch func(found int)) (model.CandidateSet, int, error) {
	set := model.NewCandidateSet(1024)
	skipped := 0
	var walkErr error

	for batch := range batches {
		recordsToSet(set, batch.Records)
		skipped += batch.Skipped
		if batch.Error != nil {
			walkErr = batch.Error
		}
		if onBatch != nil {
			onBatch(len(set))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, skipped, err
	}
	if walkErr != nil {
		return nil, skipped, walkErr
	}
	return set, skipped, nil
}
