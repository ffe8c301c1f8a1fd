package workflow

import (
	"time"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// engineImpl is the concrete implementation of WorkflowEngine.
// It holds no per-instance state; every call reads the store.
type engineImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	historyRepo    port.HistoryRepository
	txManager      port.TransactionManager

	logger   Logger
	recorder Recorder
	now      func() time.Time

	allowConcurrentInstances bool
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithLogger sets the logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) EngineOption {
	return func(e *engineImpl) {
		e.recorder = recorder
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithConcurrentInstances controls whether Start may create a second
// in-progress instance for a record that already has one
func WithConcurrentInstances(allow bool) EngineOption {
	return func(e *engineImpl) {
		e.allowConcurrentInstances = allow
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		definitionRepo:           definitionRepo,
		instanceRepo:             instanceRepo,
		historyRepo:              historyRepo,
		txManager:                txManager,
		logger:                   nopLogger{},
		recorder:                 nopRecorder{},
		now:                      func() time.Time { return time.Now().UTC() },
		allowConcurrentInstances: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type nopRecorder struct{}

func (nopRecorder) InstanceStarted(string)                   {}
func (nopRecorder) ActionExecuted(_ entity.Action, _ string) {}
