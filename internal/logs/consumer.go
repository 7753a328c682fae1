// -----------------------------------------------------------------------
// Log Consumer - Persists run-correlated log events into the state store
// -----------------------------------------------------------------------

package logs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/fabrica/internal/interfaces"
	"github.com/ternarybob/fabrica/internal/models"
)

// Consumer drains log batches from arbor's context channel and persists the
// events correlated to a run. Uncorrelated events are console noise and are
// never stored; events below the configured level are dropped too.
type Consumer struct {
	storage  interfaces.StateStorage
	logger   arbor.ILogger
	channel  chan []arbormodels.LogEvent
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	minLevel arbor.LogLevel
}

// NewConsumer creates a log consumer persisting to the given state store.
func NewConsumer(storage interfaces.StateStorage, logger arbor.ILogger, minLevel string) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		storage:  storage,
		logger:   logger,
		channel:  make(chan []arbormodels.LogEvent, 10),
		ctx:      ctx,
		cancel:   cancel,
		minLevel: parseLogLevel(minLevel),
	}
}

// parseLogLevel converts a string log level to arbor.LogLevel
func parseLogLevel(levelStr string) arbor.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return arbor.DebugLevel
	case "info":
		return arbor.InfoLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

// convertTo3Letter converts full level names to 3-letter display codes
func convertTo3Letter(level string) string {
	switch strings.ToUpper(level) {
	case "INFO":
		return "INF"
	case "WARN", "WARNING":
		return "WRN"
	case "ERROR":
		return "ERR"
	case "DEBUG":
		return "DBG"
	default:
		if len(level) == 3 {
			return strings.ToUpper(level)
		}
		return "INF"
	}
}

// GetChannel returns the channel arbor sends log batches to.
func (c *Consumer) GetChannel() chan []arbormodels.LogEvent {
	return c.channel
}

// Start launches the consumer goroutine.
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go c.consume()
	return nil
}

// Stop shuts the consumer down and flushes batches still buffered in the
// channel, so the tail of a run's log is not lost.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	for {
		select {
		case batch := <-c.channel:
			c.persistBatch(batch)
		default:
			return nil
		}
	}
}

// consume processes log batches until the channel closes or the consumer
// stops.
func (c *Consumer) consume() {
	defer c.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			// Log without a correlation ID to avoid feeding the channel
			// from its own consumer.
			c.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Log consumer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-c.channel:
			if !ok {
				return
			}
			c.persistBatch(batch)
		case <-c.ctx.Done():
			return
		}
	}
}

// persistBatch groups a batch by run ID and appends each group to the store.
func (c *Consumer) persistBatch(batch []arbormodels.LogEvent) {
	entriesByRun := make(map[string][]*models.RunLogEntry)
	for _, event := range batch {
		runID := event.CorrelationID
		if runID == "" || !c.shouldPersist(event.Level) {
			continue
		}
		entriesByRun[runID] = append(entriesByRun[runID], transformEvent(event))
	}

	for runID, entries := range entriesByRun {
		if err := c.storage.AppendRunLogs(c.ctx, runID, entries); err != nil {
			c.logger.Warn().
				Err(err).
				Str("run_id", runID).
				Int("log_count", len(entries)).
				Msg("Failed to persist run logs")
		}
	}
}

// shouldPersist checks an event's level against the persistence threshold.
func (c *Consumer) shouldPersist(level log.Level) bool {
	return arborlevels.FromLogLevel(level) >= c.minLevel
}

// transformEvent converts an arbor log event into a run log entry. Structured
// fields fold into the message in stable order; the storage layer assigns the
// entry key.
func transformEvent(event arbormodels.LogEvent) *models.RunLogEntry {
	message := event.Message
	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for key := range event.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			message += fmt.Sprintf(" %s=%v", key, event.Fields[key])
		}
	}

	return &models.RunLogEntry{
		RunID:         event.CorrelationID,
		Timestamp:     event.Timestamp.Format("15:04:05"),
		FullTimestamp: event.Timestamp.Format(models.RunLogTimeFormat),
		Level:         convertTo3Letter(event.Level.String()),
		Message:       message,
	}
}
