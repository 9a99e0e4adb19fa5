package dispatch

import "github.com/dispatchkit/dispatch/core"

// Re-exports of the core package's public surface, so most callers only
// need to import the root package.

type Task = core.Task
type TaskID = core.TaskID
type TaskTraits = core.TaskTraits
type TaskPriority = core.TaskPriority
type QoSClass = core.QoSClass
type Listener = core.Listener
type ListenerFuncs = core.ListenerFuncs
type TaskStore = core.TaskStore
type StoreOption = core.StoreOption
type SerialExecutor = core.SerialExecutor
type PoolExecutor = core.PoolExecutor
type PoolStats = core.PoolStats
type RunnerStats = core.RunnerStats
type TaskExecutionRecord = core.TaskExecutionRecord
type Runner = core.Runner
type CurrentExecutor = core.CurrentExecutor
type MainExecutor = core.MainExecutor
type RepeatingTaskHandle = core.RepeatingTaskHandle
type Logger = core.Logger
type Field = core.Field
type Metrics = core.Metrics
type PanicHandler = core.PanicHandler
type RejectedTaskHandler = core.RejectedTaskHandler
type Config = core.Config
type CircuitBreaker = core.CircuitBreaker
type BreakerConfig = core.BreakerConfig

const NullTaskID = core.NullTaskID

const (
	TaskPriorityBestEffort   = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking = core.TaskPriorityUserBlocking
)

const (
	QoSBackground      = core.QoSBackground
	QoSUtility         = core.QoSUtility
	QoSUserInitiated   = core.QoSUserInitiated
	QoSUserInteractive = core.QoSUserInteractive
	QoSDefault         = core.QoSDefault
)

var (
	DefaultTaskTraits  = core.DefaultTaskTraits
	TraitsUserBlocking = core.TraitsUserBlocking
	TraitsBestEffort   = core.TraitsBestEffort
	TraitsUserVisible  = core.TraitsUserVisible

	NewSerialExecutor = core.NewSerialExecutor
	NewPoolExecutor   = core.NewPoolExecutor
	NewTaskStore      = core.NewTaskStore

	WithClock        = core.WithClock
	WithLogger       = core.WithLogger
	WithMetrics      = core.WithMetrics
	WithListener     = core.WithListener
	WithPanicHandler = core.WithPanicHandler

	CurrentExecutorFromContext = core.CurrentExecutorFromContext
	SetMain                    = core.SetMain
	Main                       = core.Main

	PostRepeatingTask  = core.PostRepeatingTask
	NewCircuitBreaker  = core.NewCircuitBreaker
	DefaultBreakerConfig = core.DefaultBreakerConfig

	LoadConfig    = core.Load
	DefaultConfig = core.DefaultConfig

	NewDefaultLogger = core.NewDefaultLogger
)

// PostTaskAndReply is re-exported as a plain function wrapper since Go does
// not allow a generic function value to be assigned to a var with inferred
// type parameters at the package level.
func PostTaskAndReply[T any](source, dest Runner, task core.TaskWithResult[T], reply core.ReplyWithResult[T], traits TaskTraits) {
	core.PostTaskAndReply(source, dest, task, reply, traits)
}
